/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package buffer balances finished segments across the per-device buffer
// directories that feed the transcription workers.
package buffer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/telemetry"
)

// Allocator copies segments into the least-loaded of N buffer directories.
// Occupancy is re-read from the live directory listing on every decision, so
// the allocator stays correct after a crash mid-allocation.
type Allocator struct {
	base    string
	devices int
	logger  zerolog.Logger
}

// NewAllocator creates an allocator over {base}_1..{base}_devices.
func NewAllocator(base string, devices int, logger zerolog.Logger) *Allocator {
	return &Allocator{
		base:    base,
		devices: devices,
		logger:  logger.With().Str("component", "buffer").Logger(),
	}
}

// Dir returns the buffer directory for a 1-indexed device.
func (a *Allocator) Dir(device int) string {
	return fmt.Sprintf("%s_%d", a.base, device)
}

// Devices returns the number of buffer directories.
func (a *Allocator) Devices() int { return a.devices }

// EnsureDirs creates every buffer directory.
func (a *Allocator) EnsureDirs() error {
	for i := 1; i <= a.devices; i++ {
		if err := os.MkdirAll(a.Dir(i), 0o755); err != nil {
			return fmt.Errorf("create buffer dir %s: %w", a.Dir(i), err)
		}
	}
	return nil
}

// Allocate copies (never moves) the segment into the buffer directory with
// the fewest files, ties broken by lowest index, and returns the chosen
// 1-indexed device. The durable store keeps the authoritative original.
func (a *Allocator) Allocate(segmentPath string) (int, error) {
	device, err := a.leastLoaded()
	if err != nil {
		return 0, err
	}

	dest := filepath.Join(a.Dir(device), filepath.Base(segmentPath))
	if err := copyFile(segmentPath, dest); err != nil {
		return 0, fmt.Errorf("copy segment to buffer %d: %w", device, err)
	}

	telemetry.BufferAllocationsTotal.WithLabelValues(strconv.Itoa(device)).Inc()
	a.logger.Info().
		Str("segment", filepath.Base(segmentPath)).
		Int("device", device).
		Msg("segment buffered for transcription")
	return device, nil
}

func (a *Allocator) leastLoaded() (int, error) {
	best := 0
	bestCount := -1
	for i := 1; i <= a.devices; i++ {
		entries, err := os.ReadDir(a.Dir(i))
		if err != nil {
			return 0, fmt.Errorf("list buffer dir %s: %w", a.Dir(i), err)
		}
		if bestCount == -1 || len(entries) < bestCount {
			best = i
			bestCount = len(entries)
		}
	}
	return best, nil
}

// copyFile writes through a dot-prefixed temp name and renames into place,
// so a polling listener never picks up a half-copied segment.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest))
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

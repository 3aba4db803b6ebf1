/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func seedBuffers(t *testing.T, alloc *Allocator, counts []int) {
	t.Helper()

	if err := alloc.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	for device, count := range counts {
		for i := 0; i < count; i++ {
			name := filepath.Join(alloc.Dir(device+1), fmt.Sprintf("seed_%d.mp3", i))
			if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
				t.Fatalf("seed buffer: %v", err)
			}
		}
	}
}

func writeSegment(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "NY_ABCD_2024_01_01_08_00.mp3")
	if err := os.WriteFile(path, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	return path
}

func TestAllocateChoosesLeastLoadedBuffer(t *testing.T) {
	base := filepath.Join(t.TempDir(), "audio_buffer")
	alloc := NewAllocator(base, 3, zerolog.Nop())
	seedBuffers(t, alloc, []int{3, 1, 2})

	segment := writeSegment(t, t.TempDir())

	device, err := alloc.Allocate(segment)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if device != 2 {
		t.Fatalf("expected device 2 (lowest count), got %d", device)
	}

	// Occupancy is now [3,2,2]; devices 2 and 3 tie and the lowest index wins.
	second := filepath.Join(t.TempDir(), "NY_ABCD_2024_01_01_08_30.mp3")
	if err := os.WriteFile(second, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	device, err = alloc.Allocate(second)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if device != 2 {
		t.Fatalf("expected device 2 to win the tie at lowest index, got %d", device)
	}

	// Occupancy is now [3,3,2]; device 3 is the unique minimum.
	third := filepath.Join(t.TempDir(), "NY_ABCD_2024_01_01_09_00.mp3")
	if err := os.WriteFile(third, []byte("audio-bytes"), 0o644); err != nil {
		t.Fatalf("write segment: %v", err)
	}
	device, err = alloc.Allocate(third)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if device != 3 {
		t.Fatalf("expected device 3 once device 2 filled, got %d", device)
	}
}

func TestAllocateCopiesNotMoves(t *testing.T) {
	base := filepath.Join(t.TempDir(), "audio_buffer")
	alloc := NewAllocator(base, 1, zerolog.Nop())
	seedBuffers(t, alloc, []int{0})

	segment := writeSegment(t, t.TempDir())

	device, err := alloc.Allocate(segment)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := os.Stat(segment); err != nil {
		t.Fatalf("durable copy must remain: %v", err)
	}
	copied := filepath.Join(alloc.Dir(device), filepath.Base(segment))
	data, err := os.ReadFile(copied)
	if err != nil {
		t.Fatalf("buffered copy missing: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("buffered copy corrupted: %q", data)
	}
}

func TestAllocateIntoExactlyOneBuffer(t *testing.T) {
	base := filepath.Join(t.TempDir(), "audio_buffer")
	alloc := NewAllocator(base, 3, zerolog.Nop())
	seedBuffers(t, alloc, []int{0, 0, 0})

	segment := writeSegment(t, t.TempDir())
	if _, err := alloc.Allocate(segment); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	copies := 0
	for i := 1; i <= 3; i++ {
		entries, err := os.ReadDir(alloc.Dir(i))
		if err != nil {
			t.Fatalf("list buffer: %v", err)
		}
		copies += len(entries)
	}
	if copies != 1 {
		t.Fatalf("segment must land in exactly one buffer, found %d copies", copies)
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package backup archives the durable recording store to a remote target
// during the nightly maintenance window. A file is deleted locally only once
// the target has confirmed the upload.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/telemetry"
)

// Target stores one local file remotely under the given name.
type Target interface {
	Name() string
	Upload(ctx context.Context, localPath, name string) error
}

// Service drains a directory into a target with bounded retries per file.
type Service struct {
	target  Target
	retries int
	backoff time.Duration
	logger  zerolog.Logger
}

// NewService builds an archiver. retries is the number of re-attempts after
// the first failure for each file.
func NewService(target Target, retries int, backoff time.Duration, logger zerolog.Logger) *Service {
	if retries < 0 {
		retries = 0
	}
	return &Service{
		target:  target,
		retries: retries,
		backoff: backoff,
		logger:  logger.With().Str("component", "backup").Str("target", target.Name()).Logger(),
	}
}

// Run uploads every regular file in dir, deleting each local copy after its
// upload is confirmed. A file that exhausts its retries abandons the rest of
// the cycle; whatever remains is picked up by the next nightly run.
func (s *Service) Run(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list backup source %s: %w", dir, err)
	}

	uploaded := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		local := filepath.Join(dir, name)

		if err := s.uploadWithRetry(ctx, local, name); err != nil {
			telemetry.BackupFailuresTotal.WithLabelValues(s.target.Name()).Inc()
			s.logger.Error().Err(err).Str("file", name).Int("uploaded", uploaded).
				Msg("backup cycle abandoned")
			return err
		}

		if err := os.Remove(local); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove archived file %s: %w", local, err)
		}
		telemetry.BackupUploadsTotal.WithLabelValues(s.target.Name()).Inc()
		uploaded++
	}

	s.logger.Info().Int("uploaded", uploaded).Str("dir", dir).Msg("backup cycle finished")
	return nil
}

func (s *Service) uploadWithRetry(ctx context.Context, local, name string) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff):
			}
			s.logger.Warn().Str("file", name).Int("attempt", attempt+1).Msg("retrying upload")
		}
		if lastErr = s.target.Upload(ctx, local, name); lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("upload %s: %w", name, lastErr)
}

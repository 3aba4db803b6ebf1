/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scribe adapts an external transcription tool to the listener's
// Transcriber contract by shelling out once per batch.
package scribe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Command invokes a speech-to-text CLI for each batch of audio files. The
// tool is expected to write one JSON transcript per input into the output
// directory, named after the input file.
type Command struct {
	name   string
	args   []string
	logger zerolog.Logger
}

// NewCommand builds a transcriber around the given executable. Extra args are
// appended after the generated ones, so deployments can pin a model or
// device (for example "--model large-v2 --device cuda").
func NewCommand(name string, extraArgs []string, logger zerolog.Logger) *Command {
	return &Command{
		name:   name,
		args:   extraArgs,
		logger: logger.With().Str("component", "scribe").Logger(),
	}
}

// Transcribe runs the tool over the batch, writing JSON transcripts into
// outDir. The whole batch shares one process invocation because model load
// dominates the tool's startup cost.
func (c *Command) Transcribe(ctx context.Context, files []string, outDir string) error {
	if len(files) == 0 {
		return nil
	}

	args := make([]string, 0, len(files)+4+len(c.args))
	args = append(args, files...)
	args = append(args, "--output_dir", outDir, "--output_format", "json")
	args = append(args, c.args...)

	cmd := exec.CommandContext(ctx, c.name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error().
			Err(err).
			Int("files", len(files)).
			Str("output", truncate(string(out), 512)).
			Msg("transcription command failed")
		return fmt.Errorf("run %s: %w", c.name, err)
	}

	c.logger.Info().Int("files", len(files)).Str("out_dir", outDir).Msg("batch transcribed")
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

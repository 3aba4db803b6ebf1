/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package listener drains the per-device audio buffers into the transcription
// collaborator and the unclassified transcript buffer into the classifier.
// Listeners own their directory: nothing else deletes from a buffer once its
// listener is running.
package listener

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/telemetry"
	"github.com/wavepulse/wavepulse/internal/transcript"
)

// Transcriber turns a batch of audio files into JSON transcripts in outDir,
// one per input, named {input base}.json.
type Transcriber interface {
	Transcribe(ctx context.Context, files []string, outDir string) error
}

// Classifier labels transcript segments with content and advertisement
// classes, preserving order.
type Classifier interface {
	Classify(ctx context.Context, segments []transcript.Segment) ([]transcript.Segment, error)
}

// ScribeListener polls one device's audio buffer and hands every audio file
// it finds to the transcriber in a single batch. Inputs are deleted after the
// batch returns, success or not, so a file is never transcribed twice.
type ScribeListener struct {
	run         runstate.Store
	device      int
	bufferDir   string
	outDir      string
	transcriber Transcriber
	interval    time.Duration
	logger      zerolog.Logger
}

// NewScribeListener builds a poller over one buffer directory. device is the
// 1-indexed buffer the listener owns.
func NewScribeListener(run runstate.Store, device int, bufferDir, outDir string, tr Transcriber, interval time.Duration, logger zerolog.Logger) *ScribeListener {
	return &ScribeListener{
		run:         run,
		device:      device,
		bufferDir:   bufferDir,
		outDir:      outDir,
		transcriber: tr,
		interval:    interval,
		logger: logger.With().
			Str("component", "scribe_listener").
			Int("device", device).
			Logger(),
	}
}

// Run polls until the run-state flag clears. A batch in flight when the flag
// clears is finished before the listener exits.
func (l *ScribeListener) Run(ctx context.Context) {
	l.logger.Info().Str("buffer", l.bufferDir).Msg("scribe listener started")
	for l.run.Running(ctx) {
		files, err := l.pendingAudio()
		if err != nil {
			l.logger.Error().Err(err).Msg("listing audio buffer failed")
			if !l.sleep(ctx) {
				break
			}
			continue
		}
		if len(files) == 0 {
			if !l.sleep(ctx) {
				break
			}
			continue
		}

		batch := uuid.NewString()
		l.logger.Info().
			Str("batch", batch).
			Int("files", len(files)).
			Msg("transcribing audio batch")

		start := time.Now()
		if err := l.transcriber.Transcribe(ctx, files, l.outDir); err != nil {
			l.logger.Error().Err(err).Str("batch", batch).Msg("transcription batch failed")
		} else {
			telemetry.ScribeBatchesTotal.WithLabelValues(strconv.Itoa(l.device)).Inc()
			l.logger.Info().
				Str("batch", batch).
				Dur("elapsed", time.Since(start)).
				Msg("transcription batch finished")
		}

		// At most one transcription attempt per file: the buffer copy goes
		// away regardless of the outcome, the durable store keeps the audio.
		for _, f := range files {
			if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
				l.logger.Warn().Err(err).Str("file", f).Msg("removing buffered audio failed")
			}
		}
	}
	l.logger.Info().Str("buffer", l.bufferDir).Msg("scribe listener stopped")
}

// pendingAudio lists the buffer's audio files, skipping dot-prefixed names
// still being copied in.
func (l *ScribeListener) pendingAudio() ([]string, error) {
	entries, err := os.ReadDir(l.bufferDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, ".mp3") || strings.HasSuffix(name, ".wav") {
			files = append(files, filepath.Join(l.bufferDir, name))
		}
	}
	return files, nil
}

func (l *ScribeListener) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.interval):
		return true
	}
}

// Pool runs one scribe listener per buffer device.
type Pool struct {
	listeners []*ScribeListener
	logger    zerolog.Logger
}

// NewPool builds listeners over buffers {bufferBase}_1..{bufferBase}_devices.
func NewPool(run runstate.Store, bufferBase, outDir string, devices int, tr Transcriber, interval time.Duration, logger zerolog.Logger) *Pool {
	p := &Pool{logger: logger.With().Str("component", "scribe_pool").Logger()}
	for i := 1; i <= devices; i++ {
		dir := bufferBase + "_" + strconv.Itoa(i)
		p.listeners = append(p.listeners, NewScribeListener(run, i, dir, outDir, tr, interval, logger))
	}
	return p
}

// Run starts every listener and blocks until all of them have drained.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range p.listeners {
		wg.Add(1)
		go func(l *ScribeListener) {
			defer wg.Done()
			l.Run(ctx)
		}(l)
	}
	wg.Wait()
	p.logger.Info().Int("listeners", len(p.listeners)).Msg("scribe pool drained")
}

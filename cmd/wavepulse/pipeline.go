/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/buffer"
	"github.com/wavepulse/wavepulse/internal/classify"
	"github.com/wavepulse/wavepulse/internal/config"
	"github.com/wavepulse/wavepulse/internal/ledger"
	"github.com/wavepulse/wavepulse/internal/listener"
	"github.com/wavepulse/wavepulse/internal/recorder"
	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/schedule"
	"github.com/wavepulse/wavepulse/internal/scheduler"
	"github.com/wavepulse/wavepulse/internal/scribe"
)

// pipeline wires the recording, transcription, and classification loops and
// implements the lifecycle Runner contract. Start launches one goroutine per
// enabled loop; Drain waits for all of them after the run-state flag clears.
type pipeline struct {
	cfg       *config.Config
	run       runstate.Store
	store     *ledger.Store
	scheduler *scheduler.Service
	alloc     *buffer.Allocator
	logger    zerolog.Logger

	mu   sync.Mutex
	done chan struct{}
}

func newPipeline(cfg *config.Config, run runstate.Store, store *ledger.Store, logger zerolog.Logger) (*pipeline, error) {
	p := &pipeline{
		cfg:    cfg,
		run:    run,
		store:  store,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}

	if !cfg.DisableRecording {
		p.alloc = buffer.NewAllocator(cfg.BufferBasePath(), cfg.DeviceCount, logger)

		rec := recorder.New(recorder.Options{
			RunState:        run,
			RecordingsDir:   cfg.RecordingsPath(),
			Allocator:       p.alloc,
			Ledger:          store,
			SegmentDuration: cfg.SegmentDuration,
			Policy:          recorder.RetryPolicy{Retries: cfg.Retries, Wait: cfg.RetryWait},
		}, logger)
		disp := recorder.NewDispatcher(rec, logger)
		p.scheduler = scheduler.New(disp, cfg.Location(), time.Second, logger)
	}

	if err := p.ensureDirs(); err != nil {
		return nil, err
	}
	return p, nil
}

// ensureDirs creates the whole data tree so pollers never race directory
// creation.
func (p *pipeline) ensureDirs() error {
	dirs := []string{
		p.cfg.DataPath(),
		p.cfg.RecordingsPath(),
		p.cfg.TranscriptsPath(),
		p.cfg.UnclassifiedBufferPath(),
	}
	for _, kind := range listener.Kinds {
		dirs = append(dirs, p.cfg.ClassifiedPath(kind))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if p.alloc != nil {
		if err := p.alloc.EnsureDirs(); err != nil {
			return err
		}
	}
	return nil
}

// Start compiles today's schedule and launches every enabled loop bound to
// ctx. It is called once per daily cycle.
func (p *pipeline) Start(ctx context.Context) error {
	var wg sync.WaitGroup

	if p.scheduler != nil {
		stations, err := schedule.Load(p.cfg.SchedulePath())
		if err != nil {
			return err
		}
		compiler := schedule.NewCompiler(p.cfg.DataPath(), p.logger)
		slots, err := compiler.Compile(stations, time.Now().In(p.cfg.Location()))
		if err != nil {
			return err
		}
		if err := p.scheduler.SetSlots(slots); err != nil {
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.scheduler.Run(ctx)
			p.scheduler.Wait()
		}()
	}

	if !p.cfg.DisableTranscription {
		tr := scribe.NewCommand(p.cfg.ScribeCommand, nil, p.logger)
		pool := listener.NewPool(
			p.run,
			p.cfg.BufferBasePath(),
			p.cfg.UnclassifiedBufferPath(),
			p.cfg.DeviceCount,
			tr,
			p.cfg.PollInterval,
			p.logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Run(ctx)
		}()
	}

	if !p.cfg.DisableClassification {
		cl := classify.New(p.cfg.ClassifierURL, p.cfg.ClassifierKey, p.logger)
		cls := listener.NewClassificationListener(
			p.run,
			p.cfg.UnclassifiedBufferPath(),
			filepath.Join(p.cfg.TranscriptsPath(), "classified"),
			cl,
			p.cfg.ClassifyBatch,
			p.cfg.PollInterval,
			p.logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			cls.Run(ctx)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	p.logger.Info().Msg("pipeline loops started")
	return nil
}

// Drain blocks until every loop from the current cycle has exited, or the
// timeout elapses.
func (p *pipeline) Drain(timeout time.Duration) {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return
	}

	select {
	case <-done:
		p.logger.Info().Msg("pipeline drained")
	case <-time.After(timeout):
		p.logger.Warn().Dur("timeout", timeout).Msg("drain timeout elapsed with loops still running")
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package lifecycle drives the daily run/shutdown/backup/restart cycle. The
// controller owns the shared run-state flag: every background loop reads it
// and drains when it clears.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/telemetry"
)

// Runner starts the application's background loops bound to ctx and drains
// them after the run-state flag clears and ctx is cancelled.
type Runner interface {
	Start(ctx context.Context) error
	Drain(timeout time.Duration)
}

// Options configures the controller.
type Options struct {
	Repetitions  int
	ShutdownTime string // HH:MM
	RestartTime  string // HH:MM
	DrainWait    time.Duration
	PollInterval time.Duration
	Location     *time.Location
	Backup       func(ctx context.Context) error // optional, runs after each drain
}

// Controller runs the pipeline for a configured number of daily cycles,
// stopping each one inside the maintenance window and restarting at the
// restart time.
type Controller struct {
	run    runstate.Store
	runner Runner
	opts   Options
	logger zerolog.Logger

	shutdownMin int
	restartMin  int

	now func() time.Time
}

// New builds a controller. ShutdownTime and RestartTime must be HH:MM.
func New(run runstate.Store, runner Runner, opts Options, logger zerolog.Logger) (*Controller, error) {
	shutdownMin, err := minuteOfDay(opts.ShutdownTime)
	if err != nil {
		return nil, fmt.Errorf("shutdown time: %w", err)
	}
	restartMin, err := minuteOfDay(opts.RestartTime)
	if err != nil {
		return nil, fmt.Errorf("restart time: %w", err)
	}
	if restartMin <= shutdownMin {
		return nil, fmt.Errorf("restart time %s must be after shutdown time %s", opts.RestartTime, opts.ShutdownTime)
	}
	if opts.Repetitions < 1 {
		opts.Repetitions = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Controller{
		run:         run,
		runner:      runner,
		opts:        opts,
		logger:      logger.With().Str("component", "lifecycle").Logger(),
		shutdownMin: shutdownMin,
		restartMin:  restartMin,
		now:         time.Now,
	}, nil
}

// Run executes the configured repetitions. Each cycle starts the runner,
// polls for the maintenance window, then drains and backs up. The final
// cycle ends the application instead of waiting for the restart time.
func (c *Controller) Run(ctx context.Context) error {
	for cycle := 1; cycle <= c.opts.Repetitions; cycle++ {
		last := cycle == c.opts.Repetitions
		c.logger.Info().Int("cycle", cycle).Int("of", c.opts.Repetitions).Msg("starting cycle")

		if err := c.run.Set(ctx); err != nil {
			return fmt.Errorf("set run state: %w", err)
		}
		telemetry.RunStateGauge.Set(1)

		cycleCtx, cancel := context.WithCancel(ctx)
		if err := c.runner.Start(cycleCtx); err != nil {
			cancel()
			return fmt.Errorf("start cycle %d: %w", cycle, err)
		}

		stopped := false
	poll:
		for {
			select {
			case <-ctx.Done():
				if !stopped {
					c.stopCycle(cancel)
				}
				cancel()
				return ctx.Err()
			case <-time.After(c.opts.PollInterval):
			}

			now := c.now().In(c.opts.Location)
			minute := now.Hour()*60 + now.Minute()

			if !stopped && minute >= c.shutdownMin && minute < c.restartMin {
				c.logger.Info().Int("cycle", cycle).Bool("final", last).Msg("maintenance window reached, shutting down")
				c.stopCycle(cancel)
				stopped = true
				if last {
					break poll
				}
			}

			if stopped && minute >= c.restartMin {
				c.logger.Info().Int("cycle", cycle).Msg("restart time reached")
				break poll
			}
		}
		cancel()
	}

	c.logger.Info().Msg("all cycles complete, application stopped")
	return nil
}

// stopCycle clears the run-state flag, cancels the cycle, waits out the
// drain, and runs the backup.
func (c *Controller) stopCycle(cancel context.CancelFunc) {
	// Loops observe the cleared flag at their next boundary; the cancel
	// interrupts anything blocked mid-capture.
	if err := c.run.Clear(context.Background()); err != nil {
		c.logger.Error().Err(err).Msg("clearing run state failed")
	}
	telemetry.RunStateGauge.Set(0)
	cancel()

	c.logger.Info().Dur("wait", c.opts.DrainWait).Msg("draining background loops")
	c.runner.Drain(c.opts.DrainWait)

	if c.opts.Backup != nil {
		c.logger.Info().Msg("starting backup")
		if err := c.opts.Backup(context.Background()); err != nil {
			c.logger.Error().Err(err).Msg("backup failed")
		}
	}
}

func minuteOfDay(clock string) (int, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid HH:MM %q", clock)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

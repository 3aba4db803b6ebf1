/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recorder

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/schedule"
	"github.com/wavepulse/wavepulse/internal/telemetry"
)

// Dispatcher fans a fired time slot out to one recording goroutine per
// station. A failed station never cancels its siblings; the slot is done
// when every station has finished or given up.
type Dispatcher struct {
	recorder *Recorder
	logger   zerolog.Logger
}

// NewDispatcher wraps a recorder for slot fan-out.
func NewDispatcher(rec *Recorder, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		recorder: rec,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch records every station in the slot concurrently and blocks until
// all of them return. It reports the last finished segment per station;
// abandoned stations are absent from the map.
func (d *Dispatcher) Dispatch(ctx context.Context, slot schedule.TimeSlot) map[string]string {
	telemetry.SlotsFiredTotal.Inc()
	d.logger.Info().
		Str("slot", slot.Time).
		Int("stations", len(slot.Stations)).
		Msg("dispatching time slot")

	var (
		mu        sync.Mutex
		lastFiles = make(map[string]string, len(slot.Stations))
		wg        sync.WaitGroup
	)
	for _, spec := range slot.Stations {
		wg.Add(1)
		go func(spec schedule.StationSpec) {
			defer wg.Done()

			lastFile, err := d.recorder.Record(ctx, spec)
			if err != nil {
				if errors.Is(err, ErrStopped) {
					d.logger.Info().Str("station", spec.Name).Msg("station recording drained")
				} else {
					d.logger.Error().Err(err).Str("station", spec.Name).Msg("station recording abandoned")
				}
				return
			}

			mu.Lock()
			lastFiles[spec.Name] = lastFile
			mu.Unlock()
		}(spec)
	}
	wg.Wait()

	d.logger.Info().
		Str("slot", slot.Time).
		Int("completed", len(lastFiles)).
		Msg("time slot finished")
	return lastFiles
}

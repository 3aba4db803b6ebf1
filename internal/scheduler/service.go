/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler fires compiled time slots at their wall-clock times and
// hands each one to the recording dispatcher.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/schedule"
)

// Dispatcher records every station in a slot and returns when all are done.
type Dispatcher interface {
	Dispatch(ctx context.Context, slot schedule.TimeSlot) map[string]string
}

// entry is one slot with its next computed fire time.
type entry struct {
	slot   schedule.TimeSlot
	nextAt time.Time
}

// Service fires slots daily at their HH:MM in the configured timezone. A
// slot whose time already passed today first fires tomorrow.
type Service struct {
	dispatcher Dispatcher
	location   *time.Location
	interval   time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	entries []entry
	wg      sync.WaitGroup

	now func() time.Time
}

// New constructs the slot scheduler. interval is the tick resolution; zero
// means one second.
func New(dispatcher Dispatcher, loc *time.Location, interval time.Duration, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Service{
		dispatcher: dispatcher,
		location:   loc,
		interval:   interval,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
	}
}

// SetSlots installs the compiled plan, computing each slot's next fire time.
func (s *Service) SetSlots(slots []schedule.TimeSlot) error {
	now := s.now().In(s.location)

	entries := make([]entry, 0, len(slots))
	for _, slot := range slots {
		at, err := nextFire(slot.Time, now, s.location)
		if err != nil {
			return fmt.Errorf("slot %q: %w", slot.Time, err)
		}
		entries = append(entries, entry{slot: slot, nextAt: at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].nextAt.Before(entries[j].nextAt) })

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	s.logger.Info().Int("slots", len(entries)).Msg("slot plan installed")
	return nil
}

// Run executes the scheduler loop until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Msg("scheduler loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	now := s.now().In(s.location)

	s.mu.Lock()
	var due []schedule.TimeSlot
	for i := range s.entries {
		if !s.entries[i].nextAt.After(now) {
			due = append(due, s.entries[i].slot)
			s.entries[i].nextAt = s.entries[i].nextAt.Add(24 * time.Hour)
		}
	}
	s.mu.Unlock()

	for _, slot := range due {
		slot := slot
		s.wg.Add(1)
		// Recording runs for the whole window; the tick loop must not block
		// on it or later slots would fire late.
		go func() {
			defer s.wg.Done()
			s.dispatcher.Dispatch(ctx, slot)
		}()
		s.logger.Info().Str("slot", slot.Time).Int("stations", len(slot.Stations)).Msg("slot fired")
	}
}

// Next returns the upcoming fire times, soonest first, for the status API.
func (s *Service) Next() []schedule.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]entry, len(s.entries))
	copy(entries, s.entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].nextAt.Before(entries[j].nextAt) })

	slots := make([]schedule.TimeSlot, len(entries))
	for i, e := range entries {
		slots[i] = e.slot
	}
	return slots
}

// Wait blocks until every in-flight dispatch has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

// nextFire resolves "HH:MM" to its next occurrence at or after now.
func nextFire(clock string, now time.Time, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot time %q", clock)
	}
	at := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc)
	if at.Before(now) {
		at = at.Add(24 * time.Hour)
	}
	return at, nil
}

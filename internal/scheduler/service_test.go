/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/schedule"
)

type fakeDispatcher struct {
	mu    sync.Mutex
	fired []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, slot schedule.TimeSlot) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, slot.Time)
	return nil
}

func (f *fakeDispatcher) firedSlots() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fired...)
}

func testSlots() []schedule.TimeSlot {
	return []schedule.TimeSlot{
		{Time: "08:00", Stations: []schedule.StationSpec{{Name: "NY_WXYZ", Duration: time.Hour}}},
		{Time: "10:30", Stations: []schedule.StationSpec{{Name: "KS_KINA", Duration: time.Hour}}},
	}
}

func TestSetSlotsComputesFireTimes(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := New(disp, time.UTC, time.Millisecond, zerolog.Nop())
	svc.now = func() time.Time {
		return time.Date(2024, 6, 24, 9, 0, 0, 0, time.UTC)
	}

	if err := svc.SetSlots(testSlots()); err != nil {
		t.Fatalf("set slots: %v", err)
	}

	// 08:00 already passed, so 10:30 is the soonest.
	next := svc.Next()
	if len(next) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(next))
	}
	if next[0].Time != "10:30" {
		t.Fatalf("expected 10:30 first, got %s", next[0].Time)
	}
	if next[1].Time != "08:00" {
		t.Fatalf("a passed slot must wait for tomorrow, got %s", next[1].Time)
	}
}

func TestSetSlotsRejectsMalformedTime(t *testing.T) {
	svc := New(&fakeDispatcher{}, time.UTC, time.Millisecond, zerolog.Nop())
	err := svc.SetSlots([]schedule.TimeSlot{{Time: "25:99"}})
	if err == nil {
		t.Fatal("expected an error for a malformed slot time")
	}
}

func TestTickFiresDueSlotsOnce(t *testing.T) {
	disp := &fakeDispatcher{}
	svc := New(disp, time.UTC, time.Millisecond, zerolog.Nop())

	current := time.Date(2024, 6, 24, 7, 59, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}

	if err := svc.SetSlots(testSlots()); err != nil {
		t.Fatalf("set slots: %v", err)
	}

	ctx := context.Background()
	svc.tick(ctx)
	svc.Wait()
	if len(disp.firedSlots()) != 0 {
		t.Fatalf("nothing is due yet, fired %v", disp.firedSlots())
	}

	mu.Lock()
	current = time.Date(2024, 6, 24, 8, 0, 0, 0, time.UTC)
	mu.Unlock()

	svc.tick(ctx)
	svc.Wait()
	fired := disp.firedSlots()
	if len(fired) != 1 || fired[0] != "08:00" {
		t.Fatalf("expected 08:00 to fire once, got %v", fired)
	}

	// A second tick at the same time must not refire: the slot moved to
	// tomorrow.
	svc.tick(ctx)
	svc.Wait()
	if len(disp.firedSlots()) != 1 {
		t.Fatalf("slot refired: %v", disp.firedSlots())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	svc := New(&fakeDispatcher{}, time.UTC, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

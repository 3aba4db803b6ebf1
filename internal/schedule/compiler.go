/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const (
	clockFormat = "15:04"

	// alreadyStartedGrace is how far ahead of "now" a window that has
	// already opened is rescheduled to, so its trigger still fires today.
	alreadyStartedGrace = 2 * time.Minute

	// auditFileName is the compiled slot plan persisted for cross-checking.
	auditFileName = "processed_schedule.json"
)

// Compiler turns timetable stations into an ordered slot plan.
type Compiler struct {
	dataDir string
	logger  zerolog.Logger
}

// NewCompiler constructs a schedule compiler. dataDir receives the compiled
// plan audit file.
func NewCompiler(dataDir string, logger zerolog.Logger) *Compiler {
	return &Compiler{
		dataDir: dataDir,
		logger:  logger.With().Str("component", "schedule").Logger(),
	}
}

// Compile builds the slot plan for one scheduling cycle relative to now:
// windows that already opened but have not closed are moved to now plus a
// grace period, durations wrap past midnight, and stations are grouped by
// distinct start time in ascending order. The plan is persisted to the data
// directory before it is returned.
func (c *Compiler) Compile(stations []Station, now time.Time) ([]TimeSlot, error) {
	adjusted, err := adjustAlreadyStarted(stations, now)
	if err != nil {
		return nil, err
	}

	startTimes := make([]string, 0)
	seen := make(map[string]struct{})
	for _, st := range adjusted {
		for _, w := range st.Windows {
			if _, ok := seen[w.Start]; !ok {
				seen[w.Start] = struct{}{}
				startTimes = append(startTimes, w.Start)
			}
		}
	}
	sort.Strings(startTimes)
	c.logger.Info().Strs("start_times", startTimes).Msg("compiled distinct slot times")

	slots := make([]TimeSlot, 0, len(startTimes))
	for _, startTime := range startTimes {
		slot := TimeSlot{Time: startTime}
		for _, st := range adjusted {
			for _, w := range st.Windows {
				if w.Start != startTime {
					continue
				}
				duration, err := windowDuration(w)
				if err != nil {
					return nil, fmt.Errorf("station %s: %w", st.Name(), err)
				}
				slot.Stations = append(slot.Stations, StationSpec{
					URL:      st.URL,
					Name:     st.Name(),
					Duration: duration,
				})
			}
		}
		slots = append(slots, slot)
	}

	if err := c.persist(slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// persist writes the compiled plan for audit before it is acted on.
func (c *Compiler) persist(slots []TimeSlot) error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(slots, "", "    ")
	if err != nil {
		return err
	}
	path := filepath.Join(c.dataDir, auditFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("persist compiled schedule: %w", err)
	}
	c.logger.Debug().Str("path", path).Int("slots", len(slots)).Msg("compiled schedule persisted")
	return nil
}

// adjustAlreadyStarted rewrites the start of every window that opened in the
// past but closes more than the grace period in the future. Windows that
// already closed are left alone; their trigger time has passed for today and
// will not fire.
func adjustAlreadyStarted(stations []Station, now time.Time) ([]Station, error) {
	adjusted := make([]Station, len(stations))
	for i, st := range stations {
		adjusted[i] = st
		adjusted[i].Windows = make([]Window, len(st.Windows))
		copy(adjusted[i].Windows, st.Windows)

		for j, w := range adjusted[i].Windows {
			start, err := clockToday(w.Start, now)
			if err != nil {
				return nil, fmt.Errorf("station %s: %w", st.Name(), err)
			}
			end, err := clockToday(w.End, now)
			if err != nil {
				return nil, fmt.Errorf("station %s: %w", st.Name(), err)
			}
			if end.Before(start) {
				end = end.Add(24 * time.Hour)
			}
			if start.Before(now) && end.After(now.Add(alreadyStartedGrace)) {
				adjusted[i].Windows[j].Start = now.Add(alreadyStartedGrace).Format(clockFormat)
			}
		}
	}
	return adjusted, nil
}

// windowDuration computes a window's length, treating end-before-start as a
// wrap past midnight.
func windowDuration(w Window) (time.Duration, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, err
	}
	d := end.Sub(start)
	if d < 0 {
		d += 24 * time.Hour
	}
	return d, nil
}

// parseClock strictly parses an HH:MM clock string.
func parseClock(value string) (time.Time, error) {
	t, err := time.Parse(clockFormat, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t, nil
}

// clockToday anchors an HH:MM clock string on now's date in now's location.
func clockToday(value string, now time.Time) (time.Time, error) {
	t, err := parseClock(value)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

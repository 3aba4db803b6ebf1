/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule compiles the weekly recording timetable into time slots.
// Each slot carries every station whose window opens at that wall-clock time
// together with the window's duration.
package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Window is one [start, end] recording window in HH:MM wall-clock time.
// End before start means the window wraps past midnight.
type Window struct {
	Start string
	End   string
}

// UnmarshalJSON accepts the timetable's ["HH:MM","HH:MM"] pair form.
func (w *Window) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	return w.fromPair(pair)
}

// UnmarshalYAML accepts the same pair form in YAML timetables.
func (w *Window) UnmarshalYAML(value *yaml.Node) error {
	var pair []string
	if err := value.Decode(&pair); err != nil {
		return err
	}
	return w.fromPair(pair)
}

func (w *Window) fromPair(pair []string) error {
	if len(pair) != 2 {
		return fmt.Errorf("window must be a [start, end] pair, got %d elements", len(pair))
	}
	w.Start, w.End = pair[0], pair[1]
	return nil
}

// Station is one timetable entry: a stream endpoint plus its weekly windows.
type Station struct {
	URL      string   `json:"url" yaml:"url"`
	State    string   `json:"state" yaml:"state"`
	Callsign string   `json:"radio_name" yaml:"radio_name"`
	Windows  []Window `json:"time" yaml:"time"`
}

// Name is the station identity used in segment file names: {STATE}_{CALLSIGN}.
func (s Station) Name() string {
	return fmt.Sprintf("%s_%s", s.State, s.Callsign)
}

// StationSpec is one station's recording order within a compiled slot.
type StationSpec struct {
	URL      string        `json:"url"`
	Name     string        `json:"radio_name"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON writes the audit form with the duration in seconds.
func (s StationSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		URL      string `json:"url"`
		Name     string `json:"radio_name"`
		Duration int    `json:"duration"`
	}{s.URL, s.Name, int(s.Duration.Seconds())})
}

// TimeSlot groups every station whose recording starts at the same HH:MM.
type TimeSlot struct {
	Time     string        `json:"time"`
	Stations []StationSpec `json:"radio_list"`
}

// Load reads a weekly timetable from a JSON or YAML file, by extension.
// Any malformed entry fails the whole load: a bad schedule must not
// silently under-record.
func Load(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}

	var stations []Station
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &stations)
	default:
		err = json.Unmarshal(data, &stations)
	}
	if err != nil {
		return nil, fmt.Errorf("parse schedule %s: %w", path, err)
	}

	for _, st := range stations {
		if st.URL == "" || st.State == "" || st.Callsign == "" {
			return nil, fmt.Errorf("schedule entry %q is missing url, state, or radio_name", st.Name())
		}
		if len(st.Windows) == 0 {
			return nil, fmt.Errorf("station %s has no recording windows", st.Name())
		}
		for _, w := range st.Windows {
			if _, err := parseClock(w.Start); err != nil {
				return nil, fmt.Errorf("station %s: %w", st.Name(), err)
			}
			if _, err := parseClock(w.End); err != nil {
				return nil, fmt.Errorf("station %s: %w", st.Name(), err)
			}
		}
	}
	return stations, nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tzmap resolves US state codes to their dominant timezone. Segment
// file names carry the scheduler's local capture time; reformatted
// transcripts present timestamps in the station's own zone.
package tzmap

import (
	"fmt"
	"strings"
	"time"
)

var stateZones = map[string]string{
	"AL": "US/Central", "AK": "US/Alaska", "AZ": "US/Arizona", "AR": "US/Central",
	"CA": "US/Pacific", "CO": "US/Mountain", "CT": "US/Eastern", "DE": "US/Eastern",
	"DC": "US/Eastern", "FL": "US/Eastern", "GA": "US/Eastern", "HI": "US/Hawaii",
	"ID": "US/Mountain", "IL": "US/Central", "IN": "US/Eastern", "IA": "US/Central",
	"KS": "US/Central", "KY": "US/Eastern", "LA": "US/Central", "ME": "US/Eastern",
	"MD": "US/Eastern", "MA": "US/Eastern", "MI": "US/Eastern", "MN": "US/Central",
	"MS": "US/Central", "MO": "US/Central", "MT": "US/Mountain", "NE": "US/Central",
	"NV": "US/Pacific", "NH": "US/Eastern", "NJ": "US/Eastern", "NM": "US/Mountain",
	"NY": "US/Eastern", "NC": "US/Eastern", "ND": "US/Central", "OH": "US/Eastern",
	"OK": "US/Central", "OR": "US/Pacific", "PA": "US/Eastern", "RI": "US/Eastern",
	"SC": "US/Eastern", "SD": "US/Central", "TN": "US/Central", "TX": "US/Central",
	"UT": "US/Mountain", "VT": "US/Eastern", "VA": "US/Eastern", "WA": "US/Pacific",
	"WV": "US/Eastern", "WI": "US/Central", "WY": "US/Mountain",
}

// Location returns the timezone for a state code.
func Location(stateCode string) (*time.Location, error) {
	name, ok := stateZones[strings.ToUpper(stateCode)]
	if !ok {
		return nil, fmt.Errorf("unknown state code %q", stateCode)
	}
	return time.LoadLocation(name)
}

// Convert reinterprets t's wall-clock time as local time in fromState and
// returns the equivalent instant in toState's zone. Unknown state codes fall
// back to leaving t untouched.
func Convert(t time.Time, fromState, toState string) time.Time {
	from, err := Location(fromState)
	if err != nil {
		return t
	}
	to, err := Location(toState)
	if err != nil {
		return t
	}
	localized := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), from)
	return localized.In(to)
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transcript models transcribed audio segments and the closed set of
// classification labels attached to them. The JSON field values match the
// transcript files on disk, which downstream analytics jobs also read.
package transcript

import (
	"fmt"
	"strings"
	"time"
)

// Content is the political-content label for one segment.
type Content string

const (
	ContentPolitical  Content = "Political Content"
	ContentApolitical Content = "Apolitical Content"
)

// AdClass is the advertisement label for one segment.
type AdClass string

const (
	AdAdvertisement    AdClass = "Advertisement"
	AdNotAdvertisement AdClass = "Not Advertisement"
	AdUnsure           AdClass = "Unsure"
)

// Segment is one transcribed utterance with optional speaker and labels.
// Start and End are seconds relative to the segment file's capture start.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
	Content Content `json:"content_class,omitempty"`
	AdClass AdClass `json:"ad_class,omitempty"`
}

// nameTimeFormat is the timestamp portion of the segment naming convention.
const nameTimeFormat = "2006_01_02_15_04"

// FileName builds the canonical segment file name
// {STATE}_{CALLSIGN}_{YYYY}_{MM}_{DD}_{HH}_{MM}{ext} for a capture starting
// at ts. Other components parse this string to recover station and capture
// time, so the format is load-bearing.
func FileName(station string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_%s%s", station, ts.Format(nameTimeFormat), ext)
}

// ParseFileName recovers the state code, callsign, and capture start time
// from a segment or transcript file name. The callsign may itself contain
// underscores; the trailing five fields are always the timestamp.
func ParseFileName(name string) (state, callsign string, start time.Time, err error) {
	base := name
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	parts := strings.Split(base, "_")
	if len(parts) < 7 {
		return "", "", time.Time{}, fmt.Errorf("segment name %q does not match STATE_CALLSIGN_YYYY_MM_DD_HH_MM", name)
	}
	state = parts[0]
	callsign = strings.Join(parts[1:len(parts)-5], "_")
	start, err = time.Parse(nameTimeFormat, strings.Join(parts[len(parts)-5:], "_"))
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("segment name %q has invalid timestamp: %w", name, err)
	}
	return state, callsign, start, nil
}

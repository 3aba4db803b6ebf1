/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package transcript

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFileNameConvention(t *testing.T) {
	ts := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	got := FileName("NY_ABCD", ts, ".mp3")
	if got != "NY_ABCD_2024_01_01_08_00.mp3" {
		t.Fatalf("unexpected file name: %q", got)
	}
}

func TestParseFileNameRoundTrip(t *testing.T) {
	ts := time.Date(2024, 6, 24, 23, 2, 0, 0, time.UTC)
	name := FileName("MA_WCBM", ts, ".json")

	state, callsign, start, err := ParseFileName(name)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if state != "MA" || callsign != "WCBM" {
		t.Fatalf("unexpected station parts: %s %s", state, callsign)
	}
	if !start.Equal(ts) {
		t.Fatalf("unexpected start: %s", start)
	}
}

func TestParseFileNameCallsignWithUnderscore(t *testing.T) {
	state, callsign, _, err := ParseFileName("TX_KAOX_AM_2024_06_13_00_30.mp3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if state != "TX" || callsign != "KAOX_AM" {
		t.Fatalf("unexpected station parts: %s %s", state, callsign)
	}
}

func TestParseFileNameRejectsShortNames(t *testing.T) {
	if _, _, _, err := ParseFileName("garbage.mp3"); err == nil {
		t.Fatal("expected malformed name to fail")
	}
}

func TestSegmentJSONLabels(t *testing.T) {
	seg := Segment{
		Start:   12.5,
		End:     15.0,
		Text:    "the trial itself is indefinitely postponed",
		Speaker: "SPEAKER_01",
		Content: ContentPolitical,
		AdClass: AdNotAdvertisement,
	}

	data, err := json.Marshal(seg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["content_class"] != "Political Content" {
		t.Fatalf("unexpected content label: %v", decoded["content_class"])
	}
	if decoded["ad_class"] != "Not Advertisement" {
		t.Fatalf("unexpected ad label: %v", decoded["ad_class"])
	}
}

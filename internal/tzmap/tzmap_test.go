/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tzmap

import (
	"testing"
	"time"
)

func TestLocationKnownState(t *testing.T) {
	loc, err := Location("ia")
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc.String() != "US/Central" {
		t.Fatalf("unexpected zone for IA: %s", loc)
	}
}

func TestLocationUnknownState(t *testing.T) {
	if _, err := Location("ZZ"); err == nil {
		t.Fatal("expected unknown state code to fail")
	}
}

func TestConvertEasternToPacific(t *testing.T) {
	// 23:00 wall time in NY is 20:00 in CA, regardless of DST offset names.
	wall := time.Date(2024, 6, 24, 23, 0, 0, 0, time.UTC)
	got := Convert(wall, "NY", "CA")
	if got.Hour() != 20 {
		t.Fatalf("expected 20:00 pacific, got %s", got)
	}
}

func TestConvertUnknownStateLeavesTimeUntouched(t *testing.T) {
	wall := time.Date(2024, 6, 24, 23, 0, 0, 0, time.UTC)
	if got := Convert(wall, "NY", "ZZ"); !got.Equal(wall) {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

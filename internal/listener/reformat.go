/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package listener

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wavepulse/wavepulse/internal/transcript"
	"github.com/wavepulse/wavepulse/internal/tzmap"
)

// Views holds the three text renderings of one classified transcript. Each
// view carries its own matter inline and marks the other classes with a
// separator line, so a reader of any single file can see where content of
// the other kinds occurred.
type Views struct {
	Political   []byte
	PoliticalAd []byte
	Apolitical  []byte
}

const (
	sepApolitical  = "Apolitical Content .................\n"
	sepPoliticalAd = "Political Advertisement .................\n"
	sepPolitical   = "Political Content .................\n"

	lineTimeFormat = "02/01/2006, 15:04:05"
)

// homeState is the wall-clock zone segment file names are stamped in.
// Reformat shifts timestamps into the station's local zone.
const homeState = "NY"

// Reformat renders a classified transcript into its political, political-ad,
// and apolitical text views. name is the transcript file name, which carries
// the station's state code and the capture start time.
func Reformat(name string, segments []transcript.Segment) (Views, error) {
	state, _, start, err := transcript.ParseFileName(name)
	if err != nil {
		return Views{}, err
	}
	start = tzmap.Convert(start, homeState, state)

	diarize := len(segments) > 0 && segments[0].Speaker != ""

	var political, politicalAd, apolitical bytes.Buffer

	// Exactly one flag is set at a time; a class change writes a separator
	// into the views that do not carry the new run.
	var apoliticalRun, adRun, politicalRun bool
	for _, seg := range segments {
		ts := start.Add(time.Duration(seg.Start * float64(time.Second)))
		speaker := "na"
		if diarize {
			speaker = seg.Speaker
			if speaker == "" {
				speaker = "unknown"
			}
		}
		line := fmt.Sprintf("%s - %s: %s\n", ts.Format(lineTimeFormat), speaker, seg.Text)

		switch {
		case seg.Content == transcript.ContentApolitical:
			if !apoliticalRun {
				political.WriteString(sepApolitical)
				politicalAd.WriteString(sepApolitical)
				apoliticalRun, adRun, politicalRun = true, false, false
			}
			apolitical.WriteString(line)
		case seg.AdClass == transcript.AdAdvertisement:
			if !adRun {
				political.WriteString(sepPoliticalAd)
				apolitical.WriteString(sepPoliticalAd)
				apoliticalRun, adRun, politicalRun = false, true, false
			}
			politicalAd.WriteString(line)
		default:
			if !politicalRun {
				politicalAd.WriteString(sepPolitical)
				apolitical.WriteString(sepPolitical)
				apoliticalRun, adRun, politicalRun = false, false, true
			}
			political.WriteString(line)
		}
	}

	return Views{
		Political:   political.Bytes(),
		PoliticalAd: politicalAd.Bytes(),
		Apolitical:  apolitical.Bytes(),
	}, nil
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recorder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/buffer"
	"github.com/wavepulse/wavepulse/internal/ledger"
	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/schedule"
)

// directStreamServer streams bytes until the client goes away, like a live
// radio endpoint.
func directStreamServer(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("response writer must support flushing")
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		chunk := []byte(strings.Repeat("a", 512))
		for {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
}

func newTestRecorder(t *testing.T, run runstate.Store, segDur time.Duration, devices int) (*Recorder, string, *buffer.Allocator) {
	t.Helper()

	dir := t.TempDir()
	recordings := filepath.Join(dir, "recordings")
	if err := os.MkdirAll(recordings, 0o755); err != nil {
		t.Fatalf("mkdir recordings: %v", err)
	}

	var alloc *buffer.Allocator
	if devices > 0 {
		alloc = buffer.NewAllocator(filepath.Join(dir, "buffer"), devices, zerolog.Nop())
		if err := alloc.EnsureDirs(); err != nil {
			t.Fatalf("ensure buffer dirs: %v", err)
		}
	}

	rec := New(Options{
		RunState:        run,
		RecordingsDir:   recordings,
		Allocator:       alloc,
		SegmentDuration: segDur,
		Policy:          RetryPolicy{Retries: 1, Wait: 0},
	}, zerolog.Nop())
	return rec, recordings, alloc
}

func runningState(t *testing.T) *runstate.Local {
	t.Helper()

	run := runstate.NewLocal()
	if err := run.Set(context.Background()); err != nil {
		t.Fatalf("set run state: %v", err)
	}
	return run
}

func TestRecordDirectStream(t *testing.T) {
	srv := directStreamServer(t)
	defer srv.Close()

	run := runningState(t)
	rec, recordings, alloc := newTestRecorder(t, run, 200*time.Millisecond, 2)

	lastFile, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL,
		Name:     "NY_WXYZ",
		Duration: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if filepath.Dir(lastFile) != recordings {
		t.Fatalf("segment written outside recordings dir: %s", lastFile)
	}
	base := filepath.Base(lastFile)
	if !strings.HasPrefix(base, "NY_WXYZ_") || !strings.HasSuffix(base, ".mp3") {
		t.Fatalf("unexpected segment name %q", base)
	}

	info, err := os.Stat(lastFile)
	if err != nil {
		t.Fatalf("stat segment: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("segment file is empty")
	}

	// The durable copy stays put; the buffer gets exactly one copy.
	copies := 0
	for i := 1; i <= alloc.Devices(); i++ {
		entries, err := os.ReadDir(alloc.Dir(i))
		if err != nil {
			t.Fatalf("list buffer dir: %v", err)
		}
		copies += len(entries)
	}
	if copies != 1 {
		t.Fatalf("expected exactly one buffered copy, got %d", copies)
	}
}

func TestRecordSplitsIntoSegmentsWithRemainder(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		flusher := w.(http.Flusher)
		for {
			if _, err := w.Write([]byte(strings.Repeat("b", 512))); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 100*time.Millisecond, 1)

	// 250ms at 100ms per segment: two full segments plus a 50ms tail.
	_, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL,
		Name:     "KS_KINA",
		Duration: 250 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Fatalf("expected 3 segment captures, got %d", got)
	}
}

func TestRecordPlaylistStream(t *testing.T) {
	var chunk0, chunk1 atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/chunk0.ts", func(w http.ResponseWriter, r *http.Request) {
		chunk0.Add(1)
		fmt.Fprint(w, "AAAA")
	})
	mux.HandleFunc("/chunk1.ts", func(w http.ResponseWriter, r *http.Request) {
		chunk1.Add(1)
		fmt.Fprint(w, "BBBB")
	})
	mux.HandleFunc("/live.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n"+
			"#EXT-X-VERSION:3\n"+
			"#EXT-X-TARGETDURATION:1\n"+
			"#EXT-X-MEDIA-SEQUENCE:0\n"+
			"#EXTINF:1.000,\n"+
			"/chunk0.ts\n"+
			"#EXTINF:1.000,\n"+
			"/chunk1.ts\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 300*time.Millisecond, 1)

	lastFile, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL + "/live.m3u8",
		Name:     "FL_WABC",
		Duration: 300 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(lastFile)
	if err != nil {
		t.Fatalf("read segment: %v", err)
	}
	if string(data) != "AAAABBBB" {
		t.Fatalf("expected concatenated chunks, got %q", data)
	}
	if chunk0.Load() != 1 || chunk1.Load() != 1 {
		t.Fatalf("each chunk must be fetched once, got %d and %d", chunk0.Load(), chunk1.Load())
	}
}

func TestRecordStopsWhenRunStateCleared(t *testing.T) {
	srv := directStreamServer(t)
	defer srv.Close()

	run := runstate.NewLocal() // never set: already stopped
	rec, _, _ := newTestRecorder(t, run, time.Hour, 1)

	_, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL,
		Name:     "NY_WXYZ",
		Duration: time.Hour,
	})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestRecordRetriesDroppedConnection(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		flusher := w.(http.Flusher)
		if n == 1 {
			// Drop after a single chunk so the capture sees EOF early.
			w.Write([]byte(strings.Repeat("c", 512)))
			flusher.Flush()
			return
		}
		for {
			if _, err := w.Write([]byte(strings.Repeat("c", 512))); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 100*time.Millisecond, 1)

	_, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL,
		Name:     "TX_KTRH",
		Duration: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record should recover on retry: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestRecordAbortsOnBadStatus(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 100*time.Millisecond, 1)

	_, err := rec.Record(context.Background(), schedule.StationSpec{
		URL:      srv.URL,
		Name:     "CA_KQED",
		Duration: 100 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected an error for a 404 stream")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("a request-level failure must not be retried, got %d attempts", got)
	}
}

func TestRecordWritesLedgerRows(t *testing.T) {
	srv := directStreamServer(t)
	defer srv.Close()

	store, err := ledger.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 100*time.Millisecond, 1)
	rec.ledger = store

	ctx := context.Background()
	if _, err := rec.Record(ctx, schedule.StationSpec{
		URL:      srv.URL,
		Name:     "NY_WXYZ",
		Duration: 100 * time.Millisecond,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	rows, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(rows))
	}
	if rows[0].Station != "NY_WXYZ" || rows[0].Status != ledger.StatusBuffered {
		t.Fatalf("unexpected ledger row: %+v", rows[0])
	}
}

func TestDispatchRecordsAllStations(t *testing.T) {
	good := directStreamServer(t)
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	run := runningState(t)
	rec, _, _ := newTestRecorder(t, run, 100*time.Millisecond, 2)
	disp := NewDispatcher(rec, zerolog.Nop())

	slot := schedule.TimeSlot{
		Time: "00:30",
		Stations: []schedule.StationSpec{
			{URL: good.URL, Name: "NY_WXYZ", Duration: 100 * time.Millisecond},
			{URL: bad.URL, Name: "CA_KQED", Duration: 100 * time.Millisecond},
		},
	}
	lastFiles := disp.Dispatch(context.Background(), slot)

	if _, ok := lastFiles["NY_WXYZ"]; !ok {
		t.Fatal("healthy station missing from results")
	}
	if _, ok := lastFiles["CA_KQED"]; ok {
		t.Fatal("abandoned station must not report a last file")
	}
	if len(lastFiles) != 1 {
		t.Fatalf("expected 1 result, got %d", len(lastFiles))
	}
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package recorder captures live radio streams in fixed-duration segments
// and hands finished segments to the durable store and the buffer allocator.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/buffer"
	"github.com/wavepulse/wavepulse/internal/ledger"
	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/schedule"
	"github.com/wavepulse/wavepulse/internal/telemetry"
	"github.com/wavepulse/wavepulse/internal/transcript"
)

// ErrStopped reports that a capture ended because the application is
// shutting down. It is a graceful drain, not a failure, and is never
// retried.
var ErrStopped = errors.New("recording stopped: application shutting down")

const (
	// directChunkSize is the read size for direct byte-stream endpoints.
	directChunkSize = 512

	// defaultPlaylistRefresh is used when an HLS playlist does not
	// advertise a target duration.
	defaultPlaylistRefresh = 5 * time.Second

	segmentExt = ".mp3"
)

// Recorder captures one station at a time; it is safe to share across
// goroutines because all per-capture state lives on the stack.
type Recorder struct {
	run             runstate.Store
	client          *http.Client
	recordingsDir   string
	alloc           *buffer.Allocator
	ledger          *ledger.Store // optional audit trail, may be nil
	segmentDuration time.Duration
	policy          RetryPolicy
	logger          zerolog.Logger

	now func() time.Time
}

// Options configures a Recorder.
type Options struct {
	RunState        runstate.Store
	RecordingsDir   string
	Allocator       *buffer.Allocator
	Ledger          *ledger.Store
	SegmentDuration time.Duration
	Policy          RetryPolicy
	Client          *http.Client
}

// New constructs a station recorder.
func New(opts Options, logger zerolog.Logger) *Recorder {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	segDur := opts.SegmentDuration
	if segDur <= 0 {
		segDur = 1800 * time.Second
	}
	return &Recorder{
		run:             opts.RunState,
		client:          client,
		recordingsDir:   opts.RecordingsDir,
		alloc:           opts.Allocator,
		ledger:          opts.Ledger,
		segmentDuration: segDur,
		policy:          opts.Policy,
		logger:          logger.With().Str("component", "recorder").Logger(),
		now:             time.Now,
	}
}

// Record captures spec's stream for its requested duration, split into
// fixed-size segments plus a shorter tail for any remainder. It returns the
// last finished segment path. A failed segment abandons the station's
// remaining segments for this invocation; ErrStopped reports a graceful
// shutdown instead.
func (r *Recorder) Record(ctx context.Context, spec schedule.StationSpec) (string, error) {
	segments := int(spec.Duration / r.segmentDuration)
	remainder := spec.Duration % r.segmentDuration

	logger := r.logger.With().Str("station", spec.Name).Logger()
	logger.Info().
		Dur("duration", spec.Duration).
		Int("segments", segments).
		Dur("remainder", remainder).
		Msg("starting station recording")

	lastFile := ""
	for i := 0; i < segments; i++ {
		path, err := r.captureAndBuffer(ctx, spec, r.segmentDuration, logger)
		if err != nil {
			return "", err
		}
		lastFile = path
	}
	if remainder > 0 {
		path, err := r.captureAndBuffer(ctx, spec, remainder, logger)
		if err != nil {
			return "", err
		}
		lastFile = path
	}

	logger.Info().Str("last_file", lastFile).Msg("station recording finished")
	return lastFile, nil
}

// captureAndBuffer records one segment, registers it with the ledger, copies
// it into a buffer directory, and sleeps out the rest of the segment's
// wall-clock window so segment boundaries stay aligned.
func (r *Recorder) captureAndBuffer(ctx context.Context, spec schedule.StationSpec, duration time.Duration, logger zerolog.Logger) (string, error) {
	start := r.now()
	name := transcript.FileName(spec.Name, start, segmentExt)
	path := filepath.Join(r.recordingsDir, name)

	if err := r.recordSegment(ctx, spec.URL, path, duration, logger); err != nil {
		if errors.Is(err, ErrStopped) {
			telemetry.RecordFailuresTotal.WithLabelValues(spec.Name, "stopped").Inc()
			return "", ErrStopped
		}
		telemetry.RecordFailuresTotal.WithLabelValues(spec.Name, "error").Inc()
		return "", err
	}
	telemetry.SegmentsRecordedTotal.WithLabelValues(spec.Name).Inc()

	device := 0
	if r.alloc != nil {
		d, err := r.alloc.Allocate(path)
		if err != nil {
			// The durable copy exists; losing the buffer copy only delays
			// transcription, so the station keeps recording.
			logger.Error().Err(err).Str("segment", name).Msg("buffer allocation failed")
		} else {
			device = d
		}
	}

	if r.ledger != nil {
		rec := &ledger.Recording{
			Station:   spec.Name,
			Path:      path,
			StartedAt: start,
			Duration:  int(duration.Seconds()),
			Device:    device,
			Status:    ledger.StatusBuffered,
		}
		if err := r.ledger.Add(ctx, rec); err != nil {
			logger.Warn().Err(err).Str("segment", name).Msg("ledger write failed")
		}
	}

	// Sleep until the segment window closes so the next segment starts on
	// its own boundary.
	if remaining := duration - r.now().Sub(start); remaining > 0 {
		select {
		case <-ctx.Done():
			return path, ErrStopped
		case <-time.After(remaining):
		}
	}
	return path, nil
}

// recordSegment captures one segment with the retry policy applied. Timeouts
// and connection errors are retried; other request errors abort the station.
func (r *Recorder) recordSegment(ctx context.Context, streamURL, path string, duration time.Duration, logger zerolog.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.Attempts(); attempt++ {
		logger.Info().
			Str("url", streamURL).
			Str("file", filepath.Base(path)).
			Int("attempt", attempt).
			Msg("recording segment")

		err := r.captureOnce(ctx, streamURL, path, duration)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrStopped):
			return ErrStopped
		case isRetryable(err):
			lastErr = err
			telemetry.RecordRetriesTotal.WithLabelValues(stationFromPath(path)).Inc()
			logger.Warn().Err(err).Msg("transient stream failure, retrying")
			if serr := r.policy.sleep(ctx); serr != nil {
				return ErrStopped
			}
		default:
			return fmt.Errorf("record %s: %w", streamURL, err)
		}
	}
	return fmt.Errorf("record %s: %d attempts exhausted: %w", streamURL, r.policy.Attempts(), lastErr)
}

// captureOnce writes one segment file from scratch; a retry starts the file
// over rather than appending to a partial capture.
func (r *Recorder) captureOnce(ctx context.Context, streamURL, path string, duration time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create segment file: %w", err)
	}
	defer f.Close()

	end := r.now().Add(duration)
	if strings.Contains(streamURL, "m3u8") {
		return r.capturePlaylist(ctx, streamURL, f, end)
	}
	return r.captureDirect(ctx, streamURL, f, end)
}

// capturePlaylist follows a chunked (HLS) stream: it reloads the media
// playlist, appends every chunk it has not yet consumed, and sleeps for the
// playlist's advertised refresh interval until the segment window closes.
func (r *Recorder) capturePlaylist(ctx context.Context, streamURL string, f *os.File, end time.Time) error {
	base, err := url.Parse(streamURL)
	if err != nil {
		return fmt.Errorf("parse playlist url: %w", err)
	}

	var lastSeq int64 = -1
	for r.now().Before(end) {
		if !r.run.Running(ctx) {
			return ErrStopped
		}

		playlist, err := r.loadPlaylist(ctx, streamURL)
		if err != nil {
			return err
		}
		if playlist.Count() == 0 {
			return fmt.Errorf("no segments found in playlist %s", streamURL)
		}

		refresh := defaultPlaylistRefresh
		if playlist.TargetDuration > 0 {
			refresh = time.Duration(playlist.TargetDuration * float64(time.Second))
		}

		for i, seg := range playlist.Segments {
			if seg == nil {
				continue
			}
			if r.now().After(end) {
				return nil
			}
			seq := int64(playlist.SeqNo) + int64(i)
			if seq <= lastSeq {
				continue
			}
			chunkURL, err := base.Parse(seg.URI)
			if err != nil {
				return fmt.Errorf("resolve chunk uri %q: %w", seg.URI, err)
			}
			if err := r.fetchChunk(ctx, chunkURL.String(), f); err != nil {
				return err
			}
			lastSeq = seq

			if !r.run.Running(ctx) {
				return ErrStopped
			}
		}

		select {
		case <-ctx.Done():
			return ErrStopped
		case <-time.After(refresh):
		}
	}
	return nil
}

func (r *Recorder) loadPlaylist(ctx context.Context, streamURL string) (*m3u8.MediaPlaylist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playlist fetch: unexpected status %s", resp.Status)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || listType != m3u8.MEDIA {
		return nil, fmt.Errorf("playlist %s is not a media playlist", streamURL)
	}
	return media, nil
}

func (r *Recorder) fetchChunk(ctx context.Context, chunkURL string, f *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chunk fetch: unexpected status %s", resp.Status)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		return err
	}
	return nil
}

// captureDirect copies a raw byte stream in fixed-size chunks until the
// segment window closes.
func (r *Recorder) captureDirect(ctx context.Context, streamURL string, f *os.File, end time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return err
	}
	// The per-request timeout would cut long captures short; rely on the
	// context and the segment window instead.
	client := &http.Client{Transport: r.client.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream fetch: unexpected status %s", resp.Status)
	}

	buf := make([]byte, directChunkSize)
	for r.now().Before(end) {
		if !r.run.Running(ctx) {
			return ErrStopped
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write segment: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				// The stream dropped before the window closed; treat it
				// like any other connection failure so the policy retries.
				return fmt.Errorf("stream ended early: %w", errConnectionDropped)
			}
			if ctx.Err() != nil {
				return ErrStopped
			}
			return err
		}
	}
	return nil
}

// errConnectionDropped marks an upstream disconnect as retryable.
var errConnectionDropped = errors.New("connection dropped")

// isRetryable reports whether an error is a transient network failure
// (timeout or connection error) worth another attempt.
func isRetryable(err error) bool {
	if errors.Is(err, errConnectionDropped) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// Connection-level failures surface as url.Error wrapping a net
		// error; anything else (bad scheme, too many redirects) is not
		// worth retrying.
		return urlErr.Timeout() || urlErr.Temporary() || errors.As(urlErr.Err, &opErr)
	}
	return false
}

func stationFromPath(path string) string {
	state, callsign, _, err := transcript.ParseFileName(filepath.Base(path))
	if err != nil {
		return "unknown"
	}
	return state + "_" + callsign
}

/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/transcript"
)

func TestClassifyLabelsSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		for i := range req.Segments {
			req.Segments[i].Content = transcript.ContentPolitical
			req.Segments[i].AdClass = transcript.AdNotAdvertisement
		}
		json.NewEncoder(w).Encode(response{Segments: req.Segments})
	}))
	defer srv.Close()

	client := New(srv.URL, "secret", zerolog.Nop())
	labeled, err := client.Classify(context.Background(), []transcript.Segment{
		{Start: 0, End: 4.2, Text: "vote for measure twelve"},
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(labeled) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(labeled))
	}
	if labeled[0].Content != transcript.ContentPolitical {
		t.Fatalf("content label not applied: %+v", labeled[0])
	}
	if labeled[0].Text != "vote for measure twelve" {
		t.Fatalf("text must be preserved: %q", labeled[0].Text)
	}
}

func TestClassifyRejectsSegmentCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{})
	}))
	defer srv.Close()

	client := New(srv.URL, "", zerolog.Nop())
	_, err := client.Classify(context.Background(), []transcript.Segment{{Text: "hello"}})
	if err == nil {
		t.Fatal("expected an error for mismatched segment counts")
	}
}

func TestClassifyReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, "", zerolog.Nop())
	_, err := client.Classify(context.Background(), []transcript.Segment{{Text: "hello"}})
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}

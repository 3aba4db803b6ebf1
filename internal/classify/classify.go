/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package classify labels transcript segments with political-content and
// advertisement classes through an external HTTP classifier.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/transcript"
)

// Client calls a JSON classification endpoint: it posts the unlabeled
// segments and receives the same segments back with content_class and
// ad_class filled in.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	logger zerolog.Logger
}

// New builds a classifier client. An empty apiKey sends no Authorization
// header.
func New(url, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 120 * time.Second},
		logger: logger.With().Str("component", "classify").Logger(),
	}
}

type request struct {
	Segments []transcript.Segment `json:"segments"`
}

type response struct {
	Segments []transcript.Segment `json:"segments"`
}

// Classify labels every segment in one request. The classifier must return
// exactly one labeled segment per input, in order.
func (c *Client) Classify(ctx context.Context, segments []transcript.Segment) ([]transcript.Segment, error) {
	body, err := json.Marshal(request{Segments: segments})
	if err != nil {
		return nil, fmt.Errorf("encode classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned %s: %s", resp.Status, msg)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode classify response: %w", err)
	}
	if len(out.Segments) != len(segments) {
		return nil, fmt.Errorf("classifier returned %d segments for %d inputs", len(out.Segments), len(segments))
	}

	c.logger.Debug().Int("segments", len(segments)).Msg("batch classified")
	return out.Segments, nil
}

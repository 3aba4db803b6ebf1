/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/telemetry"
	"github.com/wavepulse/wavepulse/internal/transcript"
)

// Classified output subdirectory names under the classified root.
const (
	KindJSON        = "json"
	KindPolitical   = "political"
	KindPoliticalAd = "political_ad"
	KindApolitical  = "apolitical"
)

// Kinds lists every classified output directory.
var Kinds = []string{KindJSON, KindPolitical, KindPoliticalAd, KindApolitical}

// ClassificationListener polls the unclassified transcript buffer, labels up
// to maxBatch transcripts per cycle through the classifier, and writes the
// labeled JSON plus the three reformatted text views. The input file is
// deleted only after every output is in place.
type ClassificationListener struct {
	run           runstate.Store
	inDir         string
	classifiedDir string
	classifier    Classifier
	maxBatch      int
	interval      time.Duration
	logger        zerolog.Logger
}

// NewClassificationListener builds a poller over the unclassified buffer.
func NewClassificationListener(run runstate.Store, inDir, classifiedDir string, cl Classifier, maxBatch int, interval time.Duration, logger zerolog.Logger) *ClassificationListener {
	if maxBatch < 1 {
		maxBatch = 1
	}
	return &ClassificationListener{
		run:           run,
		inDir:         inDir,
		classifiedDir: classifiedDir,
		classifier:    cl,
		maxBatch:      maxBatch,
		interval:      interval,
		logger:        logger.With().Str("component", "classification_listener").Logger(),
	}
}

// EnsureDirs creates the classified output tree.
func (l *ClassificationListener) EnsureDirs() error {
	for _, kind := range Kinds {
		if err := os.MkdirAll(filepath.Join(l.classifiedDir, kind), 0o755); err != nil {
			return fmt.Errorf("create classified dir %s: %w", kind, err)
		}
	}
	return nil
}

// Run polls until the run-state flag clears, finishing any batch in flight.
func (l *ClassificationListener) Run(ctx context.Context) {
	l.logger.Info().Str("buffer", l.inDir).Msg("classification listener started")
	for l.run.Running(ctx) {
		files, err := l.pendingTranscripts()
		if err != nil {
			l.logger.Error().Err(err).Msg("listing transcript buffer failed")
			if !l.sleep(ctx) {
				break
			}
			continue
		}
		if len(files) == 0 {
			if !l.sleep(ctx) {
				break
			}
			continue
		}
		if len(files) > l.maxBatch {
			files = files[:l.maxBatch]
		}

		batch := uuid.NewString()
		l.logger.Info().
			Str("batch", batch).
			Int("files", len(files)).
			Msg("classifying transcript batch")

		// Transcripts in a batch are independent; classify them in parallel
		// and let each one fail on its own.
		var wg sync.WaitGroup
		for _, f := range files {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if err := l.classifyOne(ctx, path); err != nil {
					l.logger.Error().Err(err).Str("file", filepath.Base(path)).Msg("classification failed")
					return
				}
				telemetry.TranscriptsClassifiedTotal.Inc()
			}(f)
		}
		wg.Wait()
	}
	l.logger.Info().Str("buffer", l.inDir).Msg("classification listener stopped")
}

// classifyOne labels a single transcript and writes all four outputs before
// deleting the input. A failure leaves the input in place for the next cycle.
func (l *ClassificationListener) classifyOne(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	var segments []transcript.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return fmt.Errorf("parse transcript %s: %w", filepath.Base(path), err)
	}

	labeled, err := l.classifier.Classify(ctx, segments)
	if err != nil {
		return fmt.Errorf("classify %s: %w", filepath.Base(path), err)
	}

	name := filepath.Base(path)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	out, err := json.MarshalIndent(labeled, "", "    ")
	if err != nil {
		return fmt.Errorf("encode labeled transcript: %w", err)
	}
	if err := writeAtomic(filepath.Join(l.classifiedDir, KindJSON, name), out); err != nil {
		return err
	}

	views, err := Reformat(name, labeled)
	if err != nil {
		return err
	}
	for kind, content := range map[string][]byte{
		KindPolitical:   views.Political,
		KindPoliticalAd: views.PoliticalAd,
		KindApolitical:  views.Apolitical,
	} {
		dest := filepath.Join(l.classifiedDir, kind, stem+".txt")
		if err := writeAtomic(dest, content); err != nil {
			return err
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove classified input: %w", err)
	}
	return nil
}

func (l *ClassificationListener) pendingTranscripts() ([]string, error) {
	entries, err := os.ReadDir(l.inDir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		files = append(files, filepath.Join(l.inDir, name))
	}
	return files, nil
}

func (l *ClassificationListener) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.interval):
		return true
	}
}

// writeAtomic writes through a dot-prefixed temp name and renames into place.
func writeAtomic(dest string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	return nil
}

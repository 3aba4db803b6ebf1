/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package ledger keeps a local audit trail of captured segments. It is never
// consulted for scheduling or handoff decisions; the filesystem stays the
// source of truth for the pipeline.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Segment statuses recorded in the ledger.
const (
	StatusRecorded = "recorded"
	StatusBuffered = "buffered"
	StatusArchived = "archived"
)

// Recording is one captured segment.
type Recording struct {
	ID        uint   `gorm:"primaryKey"`
	Station   string `gorm:"index"`
	Path      string
	StartedAt time.Time
	Duration  int // seconds
	Device    int // buffer device the copy was allocated to, 0 if none
	Status    string
	CreatedAt time.Time
}

// Store wraps the sqlite-backed audit database.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// Open opens (or creates) the ledger database at path. Use ":memory:" in
// tests.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.AutoMigrate(&Recording{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
	}, nil
}

// Add records one finished segment.
func (s *Store) Add(ctx context.Context, rec *Recording) error {
	if rec.Status == "" {
		rec.Status = StatusRecorded
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("ledger add: %w", err)
	}
	return nil
}

// Recent returns the newest recordings, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = 20
	}
	var recs []Recording
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("ledger recent: %w", err)
	}
	return recs, nil
}

// CountByStation reports how many segments each station has produced.
func (s *Store) CountByStation(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Station string
		N       int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&Recording{}).
		Select("station, count(*) as n").
		Group("station").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("ledger counts: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Station] = r.N
	}
	return counts, nil
}

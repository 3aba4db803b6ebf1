/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package runstate holds the single running/stopped flag shared by every
// background loop in the application. The flag is the sole cancellation
// signal for recorders and listeners: they check it at loop boundaries and
// drain within one segment or batch cycle after it is cleared.
package runstate

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
)

const (
	markerRunning = "running"
	markerStopped = "stopped"
)

// Store is the shared run-state flag. Set and Clear are idempotent; Running
// reflects the latest write within one reader poll interval.
type Store interface {
	Set(ctx context.Context) error
	Clear(ctx context.Context) error
	Running(ctx context.Context) bool
}

// Local is an in-process store backed by an atomic bool. Used in tests and
// single-process deployments that do not need cross-process visibility.
type Local struct {
	running atomic.Bool
}

// NewLocal returns a stopped in-process store.
func NewLocal() *Local { return &Local{} }

func (l *Local) Set(context.Context) error   { l.running.Store(true); return nil }
func (l *Local) Clear(context.Context) error { l.running.Store(false); return nil }
func (l *Local) Running(context.Context) bool {
	return l.running.Load()
}

// FileStore persists the flag in a marker file so independent processes
// observe the same state. Writes go to a temp file in the same directory
// followed by a rename, so a reader never sees a partial write. A missing
// file reads as stopped.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Set(ctx context.Context) error   { return f.write(markerRunning) }
func (f *FileStore) Clear(ctx context.Context) error { return f.write(markerStopped) }

func (f *FileStore) Running(context.Context) bool {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return false
	}
	return string(data) == markerRunning
}

func (f *FileStore) write(marker string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".runstate-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(marker); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.path)
}

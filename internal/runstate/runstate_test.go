/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package runstate

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "runstate"))

	if store.Running(ctx) {
		t.Fatal("missing flag file should read as stopped")
	}

	if err := store.Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !store.Running(ctx) {
		t.Fatal("expected running after set")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if store.Running(ctx) {
		t.Fatal("expected stopped after clear")
	}
}

func TestFileStoreIdempotentTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "runstate"))

	for range 2 {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
	}
	if store.Running(ctx) {
		t.Fatal("double clear must leave the flag stopped")
	}

	for range 2 {
		if err := store.Set(ctx); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	if !store.Running(ctx) {
		t.Fatal("double set must leave the flag running")
	}
}

func TestFileStoreSharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runstate")

	writer := NewFileStore(path)
	reader := NewFileStore(path)

	if err := writer.Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !reader.Running(ctx) {
		t.Fatal("second instance should observe the flip")
	}

	if err := writer.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if reader.Running(ctx) {
		t.Fatal("second instance should observe the clear")
	}
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store := NewLocal()

	if store.Running(ctx) {
		t.Fatal("fresh local store should be stopped")
	}
	if err := store.Set(ctx); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !store.Running(ctx) {
		t.Fatal("expected running")
	}
}

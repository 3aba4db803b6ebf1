/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package runstate

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const defaultRedisKey = "wavepulse:runstate"

// RedisConfig configures the redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisStore keeps the flag in a redis key for deployments where worker
// processes span hosts. Read errors report stopped so loops fail toward
// draining rather than recording against a dead coordinator.
type RedisStore struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisStore connects a redis-backed store.
func NewRedisStore(cfg RedisConfig, logger zerolog.Logger) *RedisStore {
	key := cfg.Key
	if key == "" {
		key = defaultRedisKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "runstate").Logger(),
	}
}

func (r *RedisStore) Set(ctx context.Context) error {
	return r.client.Set(ctx, r.key, markerRunning, 0).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.client.Set(ctx, r.key, markerStopped, 0).Err()
}

func (r *RedisStore) Running(ctx context.Context) bool {
	val, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn().Err(err).Msg("run-state read failed, reporting stopped")
		}
		return false
	}
	return val == markerRunning
}

// Close releases the redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

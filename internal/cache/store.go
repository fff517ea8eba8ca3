package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store is a best-effort JSON cache over an optional Redis client. Every
// failure is logged and reported as a miss so callers fall back to the source
// of truth. A Store with a nil client never hits.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// New wraps the given client. client may be nil.
func New(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}
}

// Enabled reports whether a backing Redis client is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// GetJSON decodes the cached value for key into dest and reports whether it was found.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}

	cached, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		}
		return false
	}

	if err := json.Unmarshal(cached, dest); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

// SetJSON stores value under key for ttl.
func (s *Store) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to encode cache entry")
		return
	}

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}

// GetString returns the raw cached string for key.
func (s *Store) GetString(ctx context.Context, key string) (string, bool) {
	if !s.Enabled() {
		return "", false
	}

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read cache")
		}
		return "", false
	}
	return value, true
}

// SetString stores a raw string under key for ttl.
func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) {
	if !s.Enabled() {
		return
	}

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to write cache")
	}
}

// Delete removes the given keys.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if !s.Enabled() || len(keys) == 0 {
		return
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate cache")
	}
}

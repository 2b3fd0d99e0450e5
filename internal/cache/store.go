// Package cache keeps backend listings in redis so repeated reads skip the API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store is a JSON read/write cache over redis. A nil *Store or a non-positive
// TTL turns every operation into a no-op.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger sets the logger used for cache errors.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a cache over client with entries expiring after ttl.
func New(client redis.UniversalClient, ttl time.Duration, opts ...Option) *Store {
	nop := zerolog.Nop()
	s := &Store{
		client: client,
		ttl:    ttl,
		logger: &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether the store reads and writes redis.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil && s.ttl > 0
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get decodes the cached value for key into out. It reports false on a miss,
// a redis error or an undecodable entry.
func (s *Store) Get(ctx context.Context, key string, out any) bool {
	if !s.Enabled() {
		return false
	}
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache entry undecodable")
		return false
	}
	return true
}

// Set stores val as JSON under key.
func (s *Store) Set(ctx context.Context, key string, val any) {
	if !s.Enabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate deletes all keys with a single DEL.
func (s *Store) Invalidate(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	return s.client.Del(ctx, full...).Err()
}

// InvalidatePrefix deletes every key starting with prefix and returns how many
// were removed.
func (s *Store) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}

	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.key(prefix)+"*", 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += n
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Ping checks the redis connection.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

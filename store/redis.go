package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis under "<prefix>:<key>".
//
// Pair writes and deletes go through MULTI/EXEC, so another client never reads
// an access token next to a refresh token from a different pair.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore describes the newredisstore operation and its observable behavior.
//
// A zero ttl stores keys without expiry. An empty prefix defaults to "ac".
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ac"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

// Get returns the value for key. A missing key (redis.Nil) is reported as absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if err := s.redis.Set(ctx, s.key(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. DEL on a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// SetMany stores every entry inside one MULTI/EXEC transaction.
//
//	Performance: 1 round-trip.
func (s *RedisStore) SetMany(ctx context.Context, values map[string]string) error {
	for k := range values {
		if strings.TrimSpace(k) == "" {
			return ErrEmptyKey
		}
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range values {
			pipe.Set(ctx, s.key(k), v, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// DeleteMany removes every key inside one MULTI/EXEC transaction.
func (s *RedisStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

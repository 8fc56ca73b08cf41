package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by RedisStore.
const DefaultPrefix = "gocred"

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("revocation store unavailable")

// Store is a key/TTL set with an atomic insert-if-absent.
type Store interface {
	// Set records key until ttl elapses. Re-setting an existing key is allowed.
	Set(ctx context.Context, key string, ttl time.Duration) error
	// Exists reports whether key is currently recorded.
	Exists(ctx context.Context, key string) (bool, error)
	// SetNX records key only if absent and reports whether it was inserted.
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisStore implements Store on a Redis client.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store writing keys as "<prefix>:<key>".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

// Set implements Store. A non-positive ttl is ignored, the entry would already
// be irrelevant.
func (s *RedisStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.key(key), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// SetNX implements Store.
func (s *RedisStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("setnx requires a positive ttl")
	}
	ok, err := s.redis.SetNX(ctx, s.key(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Ping checks connectivity for health reporting.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

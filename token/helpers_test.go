package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/revocation"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// countingStore records calls so tests can assert the store was never asked.
type countingStore struct {
	mu     sync.Mutex
	inner  revocation.Store
	exists int
	sets   int
	setnx  int
	err    error
}

func (s *countingStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	s.sets++
	s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return s.inner.Set(ctx, key, ttl)
}

func (s *countingStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	s.exists++
	s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.inner.Exists(ctx, key)
}

func (s *countingStore) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	s.setnx++
	s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.inner.SetNX(ctx, key, ttl)
}

func (s *countingStore) counts() (exists, sets, setnx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exists, s.sets, s.setnx
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func newTestCodec(t *testing.T, clock *fakeClock) *jwt.Codec {
	t.Helper()
	c, err := jwt.NewCodec(jwt.Config{Secret: testSecret, Clock: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func newTestAccessManager(t *testing.T) (*AccessManager, *countingStore, *fakeClock, *miniredis.Miniredis) {
	t.Helper()
	clock := newFakeClock()
	mr, rdb := newTestRedis(t)
	store := &countingStore{inner: revocation.NewRedisStore(rdb, "test")}
	m, err := NewAccessManager(newTestCodec(t, clock), store, AccessConfig{TTL: 15 * time.Minute, Clock: clock.Now})
	if err != nil {
		t.Fatalf("new access manager: %v", err)
	}
	return m, store, clock, mr
}

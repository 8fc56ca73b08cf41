package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

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

func TestRedisStoreSetExistsExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "")
	ctx := context.Background()

	if err := s.Set(ctx, "rv:j1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mr.Exists("gocred:rv:j1") {
		t.Fatal("expected key to be written under the default prefix")
	}
	if ttl := mr.TTL("gocred:rv:j1"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	ok, err := s.Exists(ctx, "rv:j1")
	if err != nil || !ok {
		t.Fatalf("expected key to exist: ok=%v err=%v", ok, err)
	}

	mr.FastForward(time.Minute + time.Second)
	ok, err = s.Exists(ctx, "rv:j1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if ok {
		t.Fatal("expected key to expire with its ttl")
	}
}

func TestRedisStoreSetIgnoresNonPositiveTTL(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "p")

	if err := s.Set(context.Background(), "rv:j1", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys, got %v", mr.Keys())
	}
}

func TestRedisStoreSetIsIdempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "p")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Set(ctx, "rv:j1", time.Minute); err != nil {
			t.Fatalf("Set %d failed: %v", i, err)
		}
	}
	ok, err := s.Exists(ctx, "rv:j1")
	if err != nil || !ok {
		t.Fatalf("expected key to exist: ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreSetNX(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "p")
	ctx := context.Background()

	first, err := s.SetNX(ctx, "au:n1", time.Minute)
	if err != nil || !first {
		t.Fatalf("expected first SetNX to insert: ok=%v err=%v", first, err)
	}
	second, err := s.SetNX(ctx, "au:n1", time.Minute)
	if err != nil {
		t.Fatalf("SetNX failed: %v", err)
	}
	if second {
		t.Fatal("expected second SetNX to report an existing key")
	}

	if _, err := s.SetNX(ctx, "au:n2", 0); err == nil {
		t.Fatal("expected SetNX with zero ttl to fail")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStore(rdb, "p")
	ctx := context.Background()
	mr.Close()

	if err := s.Set(ctx, "rv:j1", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Set, got %v", err)
	}
	if _, err := s.Exists(ctx, "rv:j1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Exists, got %v", err)
	}
	if _, err := s.SetNX(ctx, "au:n1", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from SetNX, got %v", err)
	}
	if err := s.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
}

package test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/userstore/memory"
)

const testPassword = "correct-horse-battery"

// cmdCounter is a go-redis Hook that counts Redis commands.
type cmdCounter struct {
	commands atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset()          { h.commands.Store(0) }
func (h *cmdCounter) Commands() int64 { return h.commands.Load() }

// mailbox records delivered messages by recipient.
type mailbox struct {
	mu   sync.Mutex
	msgs []goCred.Message
	got  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{got: make(chan struct{}, 64)}
}

func (m *mailbox) Send(_ context.Context, msg goCred.Message) error {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
	m.got <- struct{}{}
	return nil
}

// lastToken waits for one more message and returns the token of its link.
func (m *mailbox) lastToken(t *testing.T) string {
	t.Helper()
	<-m.got

	m.mu.Lock()
	body := m.msgs[len(m.msgs)-1].Body
	m.mu.Unlock()

	for _, line := range strings.Split(body, "\n") {
		u, err := url.Parse(strings.TrimSpace(line))
		if err != nil || u.Scheme == "" {
			continue
		}
		if tok := u.Query().Get("token"); tok != "" {
			return tok
		}
	}
	t.Fatalf("no token link in %q", body)
	return ""
}

type harness struct {
	engine  *goCred.Engine
	dir     *memory.Directory
	mail    *mailbox
	counter *cmdCounter
	mr      *miniredis.Miniredis
}

func newHarness(t *testing.T, mutate func(*goCred.Config)) *harness {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	// Warm the connection so handshake commands are not counted.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter := &cmdCounter{}
	rdb.AddHook(counter)

	cfg := goCred.DefaultConfig()
	cfg.Token.Secret = []byte("integration-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		dir:     memory.New(),
		mail:    newMailbox(),
		counter: counter,
		mr:      mr,
	}
	h.engine, err = goCred.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(h.dir).
		WithNotifier(h.mail).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	t.Cleanup(func() {
		h.engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return h
}

// activate registers handle and follows its verification link.
func (h *harness) activate(t *testing.T, handle string) {
	t.Helper()
	ctx := context.Background()

	if _, err := h.engine.Register(ctx, goCred.RegisterRequest{Email: handle, Password: testPassword}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.engine.VerifyEmail(ctx, h.mail.lastToken(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

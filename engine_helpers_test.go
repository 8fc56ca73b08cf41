package goCred

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

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

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
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

// testDirectory is a mutex-guarded UserDirectory with failure injection.
type testDirectory struct {
	mu       sync.Mutex
	byID     map[string]Subject
	byHandle map[string]string
	updates  int
	fail     error
}

func newTestDirectory() *testDirectory {
	return &testDirectory{byID: map[string]Subject{}, byHandle: map[string]string{}}
}

func (d *testDirectory) FindByHandle(_ context.Context, handle string) (Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return Subject{}, d.fail
	}
	id, ok := d.byHandle[handle]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	return d.byID[id], nil
}

func (d *testDirectory) FindByID(_ context.Context, id string) (Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return Subject{}, d.fail
	}
	s, ok := d.byID[id]
	if !ok {
		return Subject{}, ErrSubjectNotFound
	}
	return s, nil
}

func (d *testDirectory) Save(_ context.Context, s Subject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	if owner, ok := d.byHandle[s.Handle]; ok && owner != s.ID {
		return ErrDuplicateSubject
	}
	d.byID[s.ID] = s
	d.byHandle[s.Handle] = s.ID
	return nil
}

func (d *testDirectory) Update(_ context.Context, id string, fn func(*Subject) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return d.fail
	}
	s, ok := d.byID[id]
	if !ok {
		return ErrSubjectNotFound
	}
	if err := fn(&s); err != nil {
		return err
	}
	d.updates++
	d.byID[id] = s
	return nil
}

func (d *testDirectory) get(t *testing.T, handle string) Subject {
	t.Helper()
	s, err := d.FindByHandle(context.Background(), handle)
	if err != nil {
		t.Fatalf("lookup %q failed: %v", handle, err)
	}
	return s
}

func (d *testDirectory) setFail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// recordingNotifier captures delivered messages on a channel.
type recordingNotifier struct {
	ch chan Message
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan Message, 64)}
}

func (n *recordingNotifier) Send(_ context.Context, msg Message) error {
	n.ch <- msg
	return nil
}

func (n *recordingNotifier) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-n.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Message{}
	}
}

func (n *recordingNotifier) none(t *testing.T) {
	t.Helper()
	select {
	case msg := <-n.ch:
		t.Fatalf("unexpected notification %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// linkToken extracts the token query parameter of the first URL in body.
func linkToken(t *testing.T, body string) string {
	t.Helper()
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "http") {
			continue
		}
		u, err := url.Parse(strings.TrimSpace(line))
		if err != nil {
			t.Fatalf("parse link: %v", err)
		}
		if tok := u.Query().Get("token"); tok != "" {
			return tok
		}
	}
	t.Fatalf("no token link in body %q", body)
	return ""
}

type testEnv struct {
	engine   *Engine
	dir      *testDirectory
	notifier *recordingNotifier
	clock    *fakeClock
	mr       *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Notify.Backoff = time.Millisecond
	cfg.Links.VerifyEmailURL = "https://app.example.com/verify-email"
	cfg.Links.ResetPasswordURL = "https://app.example.com/reset-password"
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		dir:      newTestDirectory(),
		notifier: newRecordingNotifier(),
		clock:    &fakeClock{t: time.Unix(1_700_000_000, 0)},
		mr:       mr,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserDirectory(env.dir).
		WithNotifier(env.notifier).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// registerActive registers handle and follows the verification link.
func (env *testEnv) registerActive(t *testing.T, handle string) SubjectView {
	t.Helper()
	ctx := context.Background()

	view, err := env.engine.Register(ctx, RegisterRequest{Email: handle, Password: testPassword, FirstName: "Alice"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	msg := env.notifier.next(t)
	if err := env.engine.VerifyEmail(ctx, linkToken(t, msg.Body)); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return view
}

func (env *testEnv) login(t *testing.T, handle, pw string) LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), handle, pw)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
}

var errBackend = errors.New("backend down")

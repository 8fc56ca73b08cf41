package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goCred/jwt"
)

var alice = UserClaims{UserID: "u-1", Handle: "alice@example.com", Role: "user"}

func TestAccessIssueVerify(t *testing.T) {
	m, store, clock, _ := newTestAccessManager(t)

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if issued.JTI == "" || issued.Token == "" {
		t.Fatalf("expected token and jti, got %+v", issued)
	}
	if got := issued.ExpiresAt.Sub(issued.IssuedAt); got != 15*time.Minute {
		t.Fatalf("expected 15m lifetime, got %v", got)
	}

	claims, err := m.Verify(context.Background(), issued.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.User != alice {
		t.Fatalf("expected %+v, got %+v", alice, claims.User)
	}
	if claims.JTI != issued.JTI || !claims.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Fatalf("claims mismatch: %+v vs %+v", claims, issued)
	}
	if !claims.IssuedAt.Equal(clock.Now()) {
		t.Fatalf("expected iat %v, got %v", clock.Now(), claims.IssuedAt)
	}
	if exists, _, _ := store.counts(); exists != 1 {
		t.Fatalf("expected one denylist lookup, got %d", exists)
	}
}

func TestAccessIssueFreshJTI(t *testing.T) {
	m, _, _, _ := newTestAccessManager(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		issued, err := m.Issue(alice)
		if err != nil {
			t.Fatalf("Issue failed: %v", err)
		}
		if _, dup := seen[issued.JTI]; dup {
			t.Fatalf("duplicate jti %q", issued.JTI)
		}
		seen[issued.JTI] = struct{}{}
	}
}

func TestAccessVerifyExpiryBoundary(t *testing.T) {
	m, store, clock, _ := newTestAccessManager(t)

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(15*time.Minute - time.Second)
	if _, err := m.Verify(context.Background(), issued.Token); err != nil {
		t.Fatalf("expected token just before exp to verify: %v", err)
	}

	clock.Advance(2 * time.Second)
	if _, err := m.Verify(context.Background(), issued.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	if exists, _, _ := store.counts(); exists != 1 {
		t.Fatalf("expected expired token to skip the store, got %d lookups", exists)
	}
}

func TestAccessVerifySubSecondIssue(t *testing.T) {
	m, _, clock, _ := newTestAccessManager(t)
	clock.Advance(900 * time.Millisecond)

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if issued.ExpiresAt.Before(clock.Now().Add(15 * time.Minute)) {
		t.Fatalf("expected exp not before the full lifetime, got %v", issued.ExpiresAt)
	}

	clock.Advance(15*time.Minute - 500*time.Millisecond)
	if _, err := m.Verify(context.Background(), issued.Token); err != nil {
		t.Fatalf("expected token half a second before expiry to verify: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := m.Verify(context.Background(), issued.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAccessVerifyRejectsForgeryWithoutStoreLookup(t *testing.T) {
	m, store, clock, _ := newTestAccessManager(t)

	other, err := jwt.NewCodec(jwt.Config{Secret: []byte("ffffffffffffffffffffffffffffffff"), Clock: clock.Now})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	forged, err := other.Encode(jwt.Claims{
		"user": map[string]any{"user_id": "u-1", "sub": "alice@example.com"},
		"jti":  "j",
		"exp":  clock.Now().Add(time.Minute).Unix(),
	}, AccessSalt)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	for _, tok := range []string{forged, "", "garbage", "a.b.c"} {
		if _, err := m.Verify(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", tok, err)
		}
	}
	if exists, _, _ := store.counts(); exists != 0 {
		t.Fatalf("expected no store lookups, got %d", exists)
	}
}

func TestAccessVerifyRejectsMissingClaims(t *testing.T) {
	m, store, clock, _ := newTestAccessManager(t)
	codec := newTestCodec(t, clock)
	exp := clock.Now().Add(time.Minute).Unix()

	cases := map[string]jwt.Claims{
		"no user":    {"jti": "j", "exp": exp},
		"no user_id": {"user": map[string]any{"sub": "a"}, "jti": "j", "exp": exp},
		"no jti":     {"user": map[string]any{"user_id": "u"}, "exp": exp},
		"no exp":     {"user": map[string]any{"user_id": "u"}, "jti": "j"},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			tok, err := codec.Encode(claims, AccessSalt)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if _, err := m.Verify(context.Background(), tok); !errors.Is(err, ErrTokenInvalid) {
				t.Fatalf("expected ErrTokenInvalid, got %v", err)
			}
		})
	}
	if exists, _, _ := store.counts(); exists != 0 {
		t.Fatalf("expected no store lookups, got %d", exists)
	}
}

func TestAccessRevoke(t *testing.T) {
	m, _, clock, mr := newTestAccessManager(t)
	ctx := context.Background()

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(5 * time.Minute)
	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := m.Verify(ctx, issued.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	key := "test:rv:" + issued.JTI
	if ttl := mr.TTL(key); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("expected denylist ttl of the remaining 10m, got %v", ttl)
	}

	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	if _, err := m.Verify(ctx, issued.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after repeated revoke, got %v", err)
	}
}

func TestAccessRevokeDoesNotAffectOtherTokens(t *testing.T) {
	m, _, _, _ := newTestAccessManager(t)
	ctx := context.Background()

	a, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	b, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := m.Revoke(ctx, a.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if _, err := m.Verify(ctx, b.Token); err != nil {
		t.Fatalf("expected sibling token to stay valid: %v", err)
	}
}

func TestAccessRevokeIgnoresInvalidAndExpired(t *testing.T) {
	m, store, clock, _ := newTestAccessManager(t)
	ctx := context.Background()

	for _, tok := range []string{"", "junk", "a.b.c"} {
		if err := m.Revoke(ctx, tok); err != nil {
			t.Fatalf("expected no-op for %q, got %v", tok, err)
		}
	}

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	clock.Advance(16 * time.Minute)
	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("expected no-op for expired token, got %v", err)
	}
	if _, sets, _ := store.counts(); sets != 0 {
		t.Fatalf("expected no denylist writes, got %d", sets)
	}
}

func TestAccessRevocationEntryExpiresWithToken(t *testing.T) {
	m, _, _, mr := newTestAccessManager(t)
	ctx := context.Background()

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := m.Revoke(ctx, issued.Token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	mr.FastForward(15*time.Minute + time.Second)
	if mr.Exists("test:rv:" + issued.JTI) {
		t.Fatal("expected denylist entry to expire with the token lifetime")
	}
}

func TestAccessVerifyFailsClosed(t *testing.T) {
	m, store, _, _ := newTestAccessManager(t)

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	store.err = errors.New("connection refused")

	if _, err := m.Verify(context.Background(), issued.Token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := m.Revoke(context.Background(), issued.Token); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from Revoke, got %v", err)
	}
}

func TestAccessTokenRejectedAsActionToken(t *testing.T) {
	m, _, clock, _ := newTestAccessManager(t)
	actions, err := NewActionManager(newTestCodec(t, clock), nil, ActionConfig{Clock: clock.Now})
	if err != nil {
		t.Fatalf("new action manager: %v", err)
	}

	issued, err := m.Issue(alice)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := actions.Verify(issued.Token, PurposePasswordReset, 5*time.Minute); !errors.Is(err, ErrActionTokenInvalid) {
		t.Fatalf("expected ErrActionTokenInvalid, got %v", err)
	}
}

func TestNewAccessManagerValidation(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	store := &countingStore{}

	if _, err := NewAccessManager(nil, store, AccessConfig{TTL: time.Minute}); err == nil {
		t.Fatal("expected nil codec to be rejected")
	}
	if _, err := NewAccessManager(codec, nil, AccessConfig{TTL: time.Minute}); err == nil {
		t.Fatal("expected nil store to be rejected")
	}
	if _, err := NewAccessManager(codec, store, AccessConfig{}); err == nil {
		t.Fatal("expected zero ttl to be rejected")
	}
	if _, err := (&AccessManager{}).Issue(UserClaims{}); err == nil {
		t.Fatal("expected empty user id to be rejected")
	}
}

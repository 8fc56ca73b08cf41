package test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/middleware"
)

func guarded(h *harness) http.Handler {
	return middleware.Guard(h.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := middleware.AuthResultFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(res.Handle))
	}))
}

func callWithCookie(handler http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// TestCredentialLifecycle walks one subject through register, verify, login,
// a guarded request, logout, reset, and login with the new password.
func TestCredentialLifecycle(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	handler := guarded(h)

	if _, err := h.engine.Register(ctx, goCred.RegisterRequest{Email: "alice@example.com", Password: testPassword}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := h.engine.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, goCred.ErrEmailNotVerified) {
		t.Fatalf("expected unverified login to fail, got %v", err)
	}

	if err := h.engine.VerifyEmail(ctx, h.mail.lastToken(t)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	res, err := h.engine.Login(ctx, "alice@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rec := callWithCookie(handler, res.AccessToken)
	if rec.Code != http.StatusOK || rec.Body.String() != "alice@example.com" {
		t.Fatalf("guarded call: %d %q", rec.Code, rec.Body.String())
	}

	h.engine.Logout(ctx, res.AccessToken)
	if rec := callWithCookie(handler, res.AccessToken); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token must be refused, got %d", rec.Code)
	}

	if err := h.engine.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if err := h.engine.ResetPassword(ctx, h.mail.lastToken(t), "a-brand-new-passphrase"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := h.engine.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, goCred.ErrInvalidCredentials) {
		t.Fatalf("old password must fail, got %v", err)
	}
	res, err = h.engine.Login(ctx, "alice@example.com", "a-brand-new-passphrase")
	if err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if rec := callWithCookie(handler, res.AccessToken); rec.Code != http.StatusOK {
		t.Fatalf("new token refused: %d", rec.Code)
	}
}

func TestGuardWithoutToken(t *testing.T) {
	h := newHarness(t, nil)

	if rec := callWithCookie(guarded(h), ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGuardStoreDown(t *testing.T) {
	h := newHarness(t, nil)
	h.activate(t, "bob@example.com")

	res, err := h.engine.Login(context.Background(), "bob@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	h.mr.SetError("LOADING")
	defer h.mr.SetError("")

	if rec := callWithCookie(guarded(h), res.AccessToken); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the denylist is unreachable, got %d", rec.Code)
	}
}

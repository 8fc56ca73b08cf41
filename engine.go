package goCred

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goCred/internal/idx"
	"github.com/MrEthical07/goCred/password"
	"github.com/MrEthical07/goCred/revocation"
	"github.com/MrEthical07/goCred/token"
)

// Engine is the credential service. It is built by Builder and safe for
// concurrent use afterwards.
type Engine struct {
	config    Config
	access    *token.AccessManager
	actions   *token.ActionManager
	store     revocation.Store
	hasher    *password.Argon2
	policy    password.Policy
	directory UserDirectory
	notify    *notifyDispatcher
	logger    *slog.Logger
	metrics   *Metrics
	ids       *idx.Generator
	now       func() time.Time
}

// AuthResult describes the subject behind a valid access token.
type AuthResult struct {
	UserID    string
	Handle    string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

// Close drains the notification queue. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.notify.Close()
}

// NotificationsDropped returns the number of notifications discarded because
// the dispatcher queue was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.notify.Dropped()
}

// MetricsSnapshot returns a copy of the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL returns the lifetime of issued access tokens.
func (e *Engine) AccessTTL() time.Duration {
	return e.config.Token.AccessTTL
}

// Ping reports whether the revocation store can be reached, when it supports
// health checks.
func (e *Engine) Ping(ctx context.Context) error {
	p, ok := e.store.(interface{ Ping(context.Context) error })
	if !ok {
		return nil
	}
	if err := p.Ping(ctx); err != nil {
		return newError(KindUnavailable, "revocation store unavailable", err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ValidateAccess verifies an access token and returns its subject. Invalid,
// expired, and revoked tokens map to the matching token kinds; a revocation
// store failure is KindUnavailable and the token is refused.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	claims, err := e.access.Verify(ctx, accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		if errors.Is(err, token.ErrTokenRevoked) {
			e.metricInc(MetricValidateRevoked)
		}
		if errors.Is(err, token.ErrStoreUnavailable) {
			e.log(ctx).Error("revocation lookup failed", "error", err)
		}
		return nil, mapAccessError(err)
	}

	e.metricInc(MetricValidateSuccess)
	return &AuthResult{
		UserID:    claims.User.UserID,
		Handle:    claims.User.Handle,
		Role:      Role(claims.User.Role),
		TokenID:   claims.JTI,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Logout revokes accessToken when one is given. It never fails: an invalid
// token needs no revocation, and a store failure is logged.
func (e *Engine) Logout(ctx context.Context, accessToken string) {
	e.metricInc(MetricLogout)
	if accessToken == "" {
		return
	}
	if err := e.access.Revoke(ctx, accessToken); err != nil {
		e.log(ctx).Error("access token revocation failed", "error", err)
	}
}

func mapAccessError(err error) error {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return newError(KindTokenExpired, "token expired", err)
	case errors.Is(err, token.ErrTokenRevoked):
		return newError(KindTokenRevoked, "token revoked", err)
	case errors.Is(err, token.ErrStoreUnavailable):
		return newError(KindUnavailable, "revocation store unavailable", err)
	default:
		return newError(KindTokenInvalid, "invalid token", err)
	}
}

func mapActionError(err error) error {
	switch {
	case errors.Is(err, token.ErrActionTokenExpired):
		return newError(KindTokenExpired, "token expired", err)
	case errors.Is(err, token.ErrActionTokenUsed):
		return newError(KindTokenRevoked, "token already used", err)
	case errors.Is(err, token.ErrStoreUnavailable):
		return newError(KindUnavailable, "revocation store unavailable", err)
	default:
		return newError(KindTokenInvalid, "invalid token", err)
	}
}

func directoryError(err error) error {
	if errors.Is(err, ErrSubjectNotFound) {
		return newError(KindNotFound, "account not found", err)
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return newError(KindUnavailable, "user directory unavailable", err)
}

func normalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

func (e *Engine) actionLink(base, tok string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(tok)
	}
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String()
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	l := e.logger
	if ip := clientIPFromContext(ctx); ip != "" {
		l = l.With("client_ip", ip)
	}
	if id := requestIDFromContext(ctx); id != "" {
		l = l.With("request_id", id)
	}
	return l
}

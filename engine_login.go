package goCred

import (
	"context"
	"errors"

	"github.com/MrEthical07/goCred/token"
)

// Login checks handle and password and issues an access token.
//
// An unknown handle and a wrong password produce the same error value, and an
// unknown handle still pays for one password verification. Subjects that have
// not verified their email are refused with KindEmailNotVerified when
// RequireVerifiedLogin is set; that check runs only after the password matched.
func (e *Engine) Login(ctx context.Context, handle, pw string) (LoginResult, error) {
	handle = normalizeHandle(handle)
	if handle == "" || pw == "" {
		e.hasher.DummyVerify(pw)
		return LoginResult{}, e.loginFailure(ctx, handle, "empty_credentials")
	}

	s, err := e.directory.FindByHandle(ctx, handle)
	if err != nil {
		if !errors.Is(err, ErrSubjectNotFound) {
			return LoginResult{}, directoryError(err)
		}
		e.hasher.DummyVerify(pw)
		return LoginResult{}, e.loginFailure(ctx, handle, "unknown_handle")
	}

	ok, err := e.hasher.Verify(pw, s.PasswordHash)
	if err != nil {
		e.log(ctx).Error("password verification error", "user_id", s.ID, "error", err)
		return LoginResult{}, e.loginFailure(ctx, handle, "verify_error")
	}
	if !ok {
		return LoginResult{}, e.loginFailure(ctx, handle, "password_mismatch")
	}

	if e.config.RequireVerifiedLogin && s.Status != StatusActive {
		e.metricInc(MetricLoginUnverified)
		e.log(ctx).Warn("login refused, email not verified", "user_id", s.ID)
		return LoginResult{}, newError(KindEmailNotVerified, "email not verified", nil)
	}

	if err := e.recordLogin(ctx, s, pw); err != nil {
		return LoginResult{}, err
	}

	issued, err := e.access.Issue(token.UserClaims{
		UserID: s.ID,
		Handle: s.Handle,
		Role:   string(s.Role),
	})
	if err != nil {
		return LoginResult{}, newError(KindUnavailable, "token issue failed", err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricAccessTokenIssued)
	e.log(ctx).Info("login succeeded", "user_id", s.ID)

	return LoginResult{
		AccessToken: issued.Token,
		TokenType:   "bearer",
		ExpiresAt:   issued.ExpiresAt,
		MaxAge:      int(e.config.Token.AccessTTL.Seconds()),
	}, nil
}

func (e *Engine) loginFailure(ctx context.Context, handle, reason string) error {
	e.metricInc(MetricLoginFailure)
	e.log(ctx).Warn("login failed", "handle", handle, "reason", reason)
	return ErrInvalidCredentials
}

// recordLogin stamps LastLoginAt and, when the stored hash uses outdated
// parameters, replaces it in the same Update. The new hash is computed before
// taking the lock and only applied if the stored hash did not change meanwhile.
func (e *Engine) recordLogin(ctx context.Context, s Subject, pw string) error {
	var upgraded string
	if needs, err := e.hasher.NeedsRehash(s.PasswordHash); err == nil && needs {
		if h, err := e.hasher.Hash(pw); err == nil {
			upgraded = h
		} else {
			e.log(ctx).Warn("password rehash failed", "user_id", s.ID, "error", err)
		}
	}

	now := e.now().UTC()
	rehashed := false
	err := e.directory.Update(ctx, s.ID, func(cur *Subject) error {
		cur.LastLoginAt = now
		if upgraded != "" && cur.PasswordHash == s.PasswordHash {
			cur.PasswordHash = upgraded
			cur.UpdatedAt = now
			rehashed = true
		}
		return nil
	})
	if err != nil {
		return directoryError(err)
	}
	if rehashed {
		e.metricInc(MetricPasswordRehash)
		e.log(ctx).Info("password hash upgraded", "user_id", s.ID)
	}
	return nil
}

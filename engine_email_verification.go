package goCred

import (
	"context"

	"github.com/MrEthical07/goCred/token"
)

// VerifyEmail activates the subject named by a verification token. Token and
// subject failures are reported as KindEmailVerification wrapping the specific
// cause, so errors.Is(err, ErrTokenExpired) still distinguishes an expired
// link. Backend outages keep KindUnavailable. Verifying an already active
// subject succeeds without changes.
func (e *Engine) VerifyEmail(ctx context.Context, tok string) error {
	maxAge := e.config.ActionTokens.VerifyMaxAge

	claims, err := e.actions.Verify(tok, token.PurposeVerifyEmail, maxAge)
	if err != nil {
		return e.verificationFailure(ctx, "", mapActionError(err))
	}
	if err := e.actions.Consume(ctx, claims, maxAge); err != nil {
		return e.verificationFailure(ctx, claims.UserID, mapActionError(err))
	}

	now := e.now().UTC()
	activated := false
	err = e.directory.Update(ctx, claims.UserID, func(s *Subject) error {
		if s.Status == StatusActive {
			return nil
		}
		s.Status = StatusActive
		s.UpdatedAt = now
		activated = true
		return nil
	})
	if err != nil {
		return e.verificationFailure(ctx, claims.UserID, directoryError(err))
	}

	e.metricInc(MetricEmailVerificationSuccess)
	if activated {
		e.log(ctx).Info("email verified", "user_id", claims.UserID)
	}
	return nil
}

func (e *Engine) verificationFailure(ctx context.Context, userID string, cause error) error {
	e.metricInc(MetricEmailVerificationFailure)
	e.log(ctx).Warn("email verification failed", "user_id", userID, "kind", KindOf(cause).String())
	if KindOf(cause) == KindUnavailable {
		return cause
	}
	return newError(KindEmailVerification, "email verification failed", cause)
}

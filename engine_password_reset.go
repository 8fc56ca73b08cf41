package goCred

import (
	"context"
	"errors"

	"github.com/MrEthical07/goCred/token"
)

// RequestPasswordReset sends a reset link to handle. Unknown handles are
// logged and otherwise look identical to known ones; only backend failures
// return an error.
func (e *Engine) RequestPasswordReset(ctx context.Context, handle string) error {
	handle = normalizeHandle(handle)
	if handle == "" {
		return newError(KindInvalidRequest, "email is required", nil)
	}
	e.metricInc(MetricPasswordResetRequest)

	s, err := e.directory.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			e.log(ctx).Warn("password reset requested for unknown account", "handle", handle, "kind", KindNotFound.String())
			return nil
		}
		return directoryError(err)
	}

	tok, err := e.actions.Issue(token.PurposePasswordReset, s.ID)
	if err != nil {
		return newError(KindUnavailable, "reset token issue failed", err)
	}
	e.notify.Enqueue(ctx, resetMessage(s, e.actionLink(e.config.Links.ResetPasswordURL, tok), e.config.ActionTokens.ResetMaxAge))
	e.log(ctx).Info("password reset requested", "user_id", s.ID)

	return nil
}

// ResetPassword replaces the password of the subject named by a reset token.
// The new password is checked against the policy before the token is looked
// at, so a weak password leaves a single-use token unspent.
func (e *Engine) ResetPassword(ctx context.Context, tok, newPassword string) error {
	if err := e.policy.Validate(newPassword); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		return newError(KindWeakPassword, "password does not meet policy", err)
	}

	maxAge := e.config.ActionTokens.ResetMaxAge
	claims, err := e.actions.Verify(tok, token.PurposePasswordReset, maxAge)
	if err != nil {
		return e.resetFailure(ctx, "", mapActionError(err))
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		return e.resetFailure(ctx, claims.UserID, err)
	}

	if err := e.actions.Consume(ctx, claims, maxAge); err != nil {
		return e.resetFailure(ctx, claims.UserID, mapActionError(err))
	}

	now := e.now().UTC()
	err = e.directory.Update(ctx, claims.UserID, func(s *Subject) error {
		s.PasswordHash = hash
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return e.resetFailure(ctx, claims.UserID, directoryError(err))
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.log(ctx).Info("password reset completed", "user_id", claims.UserID)
	return nil
}

func (e *Engine) resetFailure(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricPasswordResetConfirmFailure)
	e.log(ctx).Warn("password reset failed", "user_id", userID, "kind", KindOf(err).String())
	return err
}

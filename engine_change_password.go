package goCred

import (
	"context"
)

// ChangePassword replaces the password of handle after checking current
// against the stored hash. The check and the write happen inside one
// UserDirectory.Update, so two concurrent changes cannot both succeed against
// the same old password.
func (e *Engine) ChangePassword(ctx context.Context, handle, current, newPassword, confirm string) error {
	handle = normalizeHandle(handle)
	if newPassword != confirm {
		e.metricInc(MetricPasswordChangeFailure)
		return newError(KindPasswordMismatch, "new password and confirmation do not match", nil)
	}
	if err := e.policy.Validate(newPassword); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return newError(KindWeakPassword, "password does not meet policy", err)
	}

	s, err := e.directory.FindByHandle(ctx, handle)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return directoryError(err)
	}

	hash, err := e.hashPassword(newPassword)
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	now := e.now().UTC()
	err = e.directory.Update(ctx, s.ID, func(cur *Subject) error {
		ok, err := e.hasher.Verify(current, cur.PasswordHash)
		if err != nil || !ok {
			return newError(KindPasswordMismatch, "current password is incorrect", nil)
		}
		cur.PasswordHash = hash
		cur.UpdatedAt = now
		return nil
	})
	if err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		if KindOf(err) == KindPasswordMismatch {
			e.log(ctx).Warn("password change refused, current password incorrect", "user_id", s.ID)
		}
		return directoryError(err)
	}

	e.notify.Enqueue(ctx, passwordChangedMessage(s))
	e.metricInc(MetricPasswordChangeSuccess)
	e.log(ctx).Info("password changed", "user_id", s.ID)
	return nil
}

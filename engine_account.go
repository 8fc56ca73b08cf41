package goCred

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/MrEthical07/goCred/password"
	"github.com/MrEthical07/goCred/token"
)

// Register creates a pending subject and sends it a verification link.
//
// Registering a handle that is still pending verification sends a fresh link
// and returns the existing view; the password in req is ignored in that case.
// Registering an active handle fails with KindAlreadyExists.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (SubjectView, error) {
	handle := normalizeHandle(req.Email)
	if !validEmail(handle) {
		return SubjectView{}, newError(KindInvalidRequest, "invalid email address", nil)
	}
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if !role.valid() {
		return SubjectView{}, newError(KindInvalidRequest, "invalid role", nil)
	}

	existing, err := e.directory.FindByHandle(ctx, handle)
	switch {
	case err == nil:
		if existing.Status == StatusActive {
			e.metricInc(MetricRegisterDuplicate)
			e.log(ctx).Info("registration rejected, account exists", "user_id", existing.ID)
			return SubjectView{}, newError(KindAlreadyExists, "account already exists", nil)
		}
		e.metricInc(MetricRegisterResend)
		e.sendVerification(ctx, existing)
		e.log(ctx).Info("verification link re-sent", "user_id", existing.ID)
		return existing.View(), nil
	case !errors.Is(err, ErrSubjectNotFound):
		return SubjectView{}, directoryError(err)
	}

	if err := e.policy.Validate(req.Password); err != nil {
		return SubjectView{}, newError(KindWeakPassword, "password does not meet policy", err)
	}
	hash, err := e.hashPassword(req.Password)
	if err != nil {
		return SubjectView{}, err
	}

	now := e.now().UTC()
	id, err := e.ids.NewAt(now)
	if err != nil {
		return SubjectView{}, newError(KindUnavailable, "id generation failed", err)
	}

	s := Subject{
		ID:           id,
		Handle:       handle,
		Username:     strings.TrimSpace(req.Username),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Status:       StatusPendingVerification,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.directory.Save(ctx, s); err != nil {
		if errors.Is(err, ErrDuplicateSubject) {
			e.metricInc(MetricRegisterDuplicate)
			return SubjectView{}, newError(KindAlreadyExists, "account already exists", err)
		}
		return SubjectView{}, directoryError(err)
	}

	e.sendVerification(ctx, s)
	e.metricInc(MetricRegisterSuccess)
	e.log(ctx).Info("account registered", "user_id", s.ID)

	return s.View(), nil
}

// Subject returns the public view of the subject with id.
func (e *Engine) Subject(ctx context.Context, id string) (SubjectView, error) {
	s, err := e.directory.FindByID(ctx, id)
	if err != nil {
		return SubjectView{}, directoryError(err)
	}
	return s.View(), nil
}

func (e *Engine) sendVerification(ctx context.Context, s Subject) {
	tok, err := e.actions.Issue(token.PurposeVerifyEmail, s.ID)
	if err != nil {
		e.log(ctx).Error("verification token issue failed", "user_id", s.ID, "error", err)
		return
	}
	e.notify.Enqueue(ctx, verificationMessage(s, e.actionLink(e.config.Links.VerifyEmailURL, tok), e.config.ActionTokens.VerifyMaxAge))
}

func (e *Engine) hashPassword(pw string) (string, error) {
	hash, err := e.hasher.Hash(pw)
	if err != nil {
		if errors.Is(err, password.ErrPasswordLength) {
			return "", newError(KindWeakPassword, "password does not meet policy", err)
		}
		return "", newError(KindUnavailable, "password hashing failed", err)
	}
	return hash, nil
}

func validEmail(handle string) bool {
	if handle == "" || len(handle) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(handle)
	return err == nil && addr.Address == handle
}

package goCred

import (
	"errors"
	"strings"
)

// Kind classifies every error returned by the Engine.
type Kind uint8

const (
	// KindUnknown is reported by KindOf for errors the engine did not produce.
	KindUnknown Kind = iota
	KindTokenInvalid
	KindTokenExpired
	KindTokenRevoked
	KindInvalidCredentials
	KindAlreadyExists
	KindWeakPassword
	KindNotFound
	KindPasswordMismatch
	KindEmailVerification
	KindEmailNotVerified
	KindInvalidRequest
	KindUnavailable
)

var kindNames = [...]string{
	KindUnknown:            "unknown",
	KindTokenInvalid:       "token_invalid",
	KindTokenExpired:       "token_expired",
	KindTokenRevoked:       "token_revoked",
	KindInvalidCredentials: "invalid_credentials",
	KindAlreadyExists:      "already_exists",
	KindWeakPassword:       "weak_password",
	KindNotFound:           "not_found",
	KindPasswordMismatch:   "password_mismatch",
	KindEmailVerification:  "email_verification_failed",
	KindEmailNotVerified:   "email_not_verified",
	KindInvalidRequest:     "invalid_request",
	KindUnavailable:        "unavailable",
}

// String returns the stable snake_case name of k.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Error is the tagged error value returned by Engine operations. Detail is a
// short human readable message, Err the wrapped cause when there is one.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Detail)
	if b.Len() == 0 {
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrTokenExpired)
// holds for every expired-token error regardless of detail or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

var (
	// ErrTokenInvalid matches malformed, forged, or wrong-purpose tokens.
	ErrTokenInvalid = &Error{Kind: KindTokenInvalid, Detail: "invalid token"}
	// ErrTokenExpired matches tokens past their lifetime.
	ErrTokenExpired = &Error{Kind: KindTokenExpired, Detail: "token expired"}
	// ErrTokenRevoked matches revoked access tokens and spent single-use action tokens.
	ErrTokenRevoked = &Error{Kind: KindTokenRevoked, Detail: "token revoked"}
	// ErrInvalidCredentials is returned by Login for an unknown handle or a wrong
	// password. Both cases produce the same value.
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Detail: "invalid credentials"}
	// ErrAlreadyExists matches registration of an active handle.
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists, Detail: "account already exists"}
	// ErrWeakPassword matches password policy violations.
	ErrWeakPassword = &Error{Kind: KindWeakPassword, Detail: "password does not meet policy"}
	// ErrNotFound matches operations on a subject that does not exist.
	ErrNotFound = &Error{Kind: KindNotFound, Detail: "account not found"}
	// ErrPasswordMismatch matches a wrong current password or a confirmation mismatch.
	ErrPasswordMismatch = &Error{Kind: KindPasswordMismatch, Detail: "password mismatch"}
	// ErrEmailVerification matches every failure of VerifyEmail.
	ErrEmailVerification = &Error{Kind: KindEmailVerification, Detail: "email verification failed"}
	// ErrEmailNotVerified is returned by Login for pending subjects.
	ErrEmailNotVerified = &Error{Kind: KindEmailNotVerified, Detail: "email not verified"}
	// ErrInvalidRequest matches malformed input.
	ErrInvalidRequest = &Error{Kind: KindInvalidRequest, Detail: "invalid request"}
	// ErrUnavailable matches backend failures.
	ErrUnavailable = &Error{Kind: KindUnavailable, Detail: "service unavailable"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PublicCode returns a stable code safe to show to clients. Token kinds share
// one code, matching PublicMessage.
func PublicCode(err error) string {
	switch kind := KindOf(err); kind {
	case KindTokenExpired, KindTokenRevoked:
		return KindTokenInvalid.String()
	default:
		return kind.String()
	}
}

// PublicMessage returns a message safe to show to clients. Token failures
// collapse into one string so callers cannot probe why a token was refused.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindTokenInvalid, KindTokenExpired, KindTokenRevoked:
		return "invalid or expired token"
	case KindInvalidCredentials:
		return "invalid email or password"
	case KindAlreadyExists:
		return "an account with this email already exists"
	case KindWeakPassword:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return "password does not meet policy"
	case KindNotFound:
		return "account not found"
	case KindPasswordMismatch:
		return "password mismatch"
	case KindEmailVerification:
		return "email verification failed"
	case KindEmailNotVerified:
		return "email address has not been verified"
	case KindInvalidRequest:
		var e *Error
		errors.As(err, &e)
		return e.Error()
	case KindUnavailable:
		return "service temporarily unavailable"
	default:
		return "internal error"
	}
}

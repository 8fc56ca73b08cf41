package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/revocation"
)

// Purpose scopes an action token to one flow.
type Purpose string

const (
	// PurposeVerifyEmail tokens activate a pending account.
	PurposeVerifyEmail Purpose = "verify-email"
	// PurposePasswordReset tokens authorise a password replacement.
	PurposePasswordReset Purpose = "password-reset"
)

const usedKeyPrefix = "au:"

var (
	// ErrActionTokenInvalid covers bad signatures, foreign purposes, and missing claims.
	ErrActionTokenInvalid = errors.New("action token invalid")
	// ErrActionTokenExpired is returned once the purpose max age has passed.
	ErrActionTokenExpired = errors.New("action token expired")
	// ErrActionTokenUsed is returned by Consume for a token already spent.
	ErrActionTokenUsed = errors.New("action token already used")
)

func (p Purpose) valid() bool {
	return p == PurposeVerifyEmail || p == PurposePasswordReset
}

// Salt is the codec salt for p.
func (p Purpose) Salt() string {
	return "action/" + string(p)
}

// ActionClaims is a verified action token.
type ActionClaims struct {
	UserID   string
	Purpose  Purpose
	Nonce    string
	IssuedAt time.Time
}

// ActionConfig configures an ActionManager.
type ActionConfig struct {
	// SingleUse makes Consume reject a second use of the same token. When false
	// a token may be replayed until it expires.
	SingleUse bool
	Clock     func() time.Time
}

// ActionManager issues and verifies purpose-scoped action tokens.
//
// ActionManager is safe for concurrent use.
type ActionManager struct {
	codec     Codec
	store     revocation.Store
	singleUse bool
	now       func() time.Time
	newID     func() string
}

// NewActionManager returns a manager. store is required only with SingleUse.
func NewActionManager(codec Codec, store revocation.Store, cfg ActionConfig) (*ActionManager, error) {
	if codec == nil {
		return nil, errors.New("action manager requires a codec")
	}
	if cfg.SingleUse && store == nil {
		return nil, errors.New("single-use action tokens require a revocation store")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &ActionManager{
		codec:     codec,
		store:     store,
		singleUse: cfg.SingleUse,
		now:       cfg.Clock,
		newID:     uuid.NewString,
	}, nil
}

// SingleUse reports whether Consume enforces one use per token.
func (m *ActionManager) SingleUse() bool {
	return m.singleUse
}

// Issue mints a token binding userID to purpose.
func (m *ActionManager) Issue(purpose Purpose, userID string) (string, error) {
	if !purpose.valid() {
		return "", fmt.Errorf("unknown action token purpose %q", purpose)
	}
	if userID == "" {
		return "", errors.New("action token requires a user id")
	}

	token, err := m.codec.Encode(jwt.Claims{
		"user_id": userID,
		"purpose": string(purpose),
		"nonce":   m.newID(),
		"iat":     m.now().Unix(),
	}, purpose.Salt())
	if err != nil {
		return "", fmt.Errorf("sign action token: %w", err)
	}
	return token, nil
}

// Verify checks signature, purpose, and age of token. It never touches the store.
func (m *ActionManager) Verify(token string, purpose Purpose, maxAge time.Duration) (*ActionClaims, error) {
	if !purpose.valid() {
		return nil, fmt.Errorf("%w: unknown purpose %q", ErrActionTokenInvalid, purpose)
	}
	if maxAge <= 0 {
		return nil, errors.New("action token max age must be > 0")
	}

	raw, err := m.codec.Decode(token, purpose.Salt(), maxAge)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrActionTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrActionTokenInvalid, err)
	}

	if p, _ := raw["purpose"].(string); Purpose(p) != purpose {
		return nil, fmt.Errorf("%w: purpose mismatch", ErrActionTokenInvalid)
	}
	userID, ok := jwt.StringClaim(raw, "user_id")
	if !ok {
		return nil, fmt.Errorf("%w: missing user_id", ErrActionTokenInvalid)
	}
	nonce, _ := jwt.StringClaim(raw, "nonce")
	iat, _ := jwt.NumericClaim(raw, "iat")

	return &ActionClaims{
		UserID:   userID,
		Purpose:  purpose,
		Nonce:    nonce,
		IssuedAt: time.Unix(iat, 0),
	}, nil
}

// Consume marks claims as spent when single-use is enabled; otherwise it is a
// no-op. The marker lives until the token would have expired.
func (m *ActionManager) Consume(ctx context.Context, claims *ActionClaims, maxAge time.Duration) error {
	if !m.singleUse {
		return nil
	}
	if claims == nil || claims.Nonce == "" {
		return fmt.Errorf("%w: missing nonce", ErrActionTokenInvalid)
	}

	// Verify accepts the token until the second after iat+maxAge begins.
	ttl := claims.IssuedAt.Add(maxAge + time.Second).Sub(m.now())
	if ttl <= 0 {
		return ErrActionTokenExpired
	}

	inserted, err := m.store.SetNX(ctx, usedKeyPrefix+string(claims.Purpose)+":"+claims.Nonce, ttl)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !inserted {
		return ErrActionTokenUsed
	}
	return nil
}

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

// AccessSalt separates access tokens from every other token the codec signs.
const AccessSalt = "access"

const revokedKeyPrefix = "rv:"

var (
	// ErrTokenInvalid covers malformed, forged, and structurally incomplete tokens.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenExpired is returned for genuine tokens past their exp.
	ErrTokenExpired = errors.New("access token expired")
	// ErrTokenRevoked is returned for genuine tokens whose jti is denylisted.
	ErrTokenRevoked = errors.New("access token revoked")
	// ErrStoreUnavailable is returned when the revocation store cannot answer.
	// Verification fails closed on it.
	ErrStoreUnavailable = errors.New("revocation store unavailable")
)

// Codec is the subset of jwt.Codec used here.
type Codec interface {
	Encode(claims jwt.Claims, salt string) (string, error)
	Decode(token, salt string, maxAge time.Duration) (jwt.Claims, error)
	DecodeUnchecked(token, salt string) (jwt.Claims, error)
}

// UserClaims identifies the subject an access token was issued to.
type UserClaims struct {
	UserID string
	Handle string
	Role   string
}

// AccessClaims is a verified access token.
type AccessClaims struct {
	User      UserClaims
	JTI       string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issued is the result of AccessManager.Issue.
type Issued struct {
	Token     string
	JTI       string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessConfig configures an AccessManager.
type AccessConfig struct {
	TTL   time.Duration
	Clock func() time.Time
}

// AccessManager issues, verifies, and revokes access tokens.
//
// AccessManager is safe for concurrent use.
type AccessManager struct {
	codec Codec
	store revocation.Store
	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

// NewAccessManager wires codec and store into a manager.
func NewAccessManager(codec Codec, store revocation.Store, cfg AccessConfig) (*AccessManager, error) {
	if codec == nil {
		return nil, errors.New("access manager requires a codec")
	}
	if store == nil {
		return nil, errors.New("access manager requires a revocation store")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("access token TTL must be > 0")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &AccessManager{
		codec: codec,
		store: store,
		ttl:   cfg.TTL,
		now:   cfg.Clock,
		newID: uuid.NewString,
	}, nil
}

// TTL returns the lifetime given to issued tokens.
func (m *AccessManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for subject with a fresh jti.
func (m *AccessManager) Issue(subject UserClaims) (Issued, error) {
	if subject.UserID == "" {
		return Issued{}, errors.New("access token requires a user id")
	}

	now := m.now()
	iat := now.Truncate(time.Second)
	exp := ceilSecond(now.Add(m.ttl))
	jti := m.newID()

	token, err := m.codec.Encode(jwt.Claims{
		"user": map[string]any{
			"sub":     subject.Handle,
			"user_id": subject.UserID,
			"role":    subject.Role,
		},
		"jti": jti,
		"iat": iat.Unix(),
		"exp": exp.Unix(),
	}, AccessSalt)
	if err != nil {
		return Issued{}, fmt.Errorf("sign access token: %w", err)
	}

	return Issued{Token: token, JTI: jti, IssuedAt: iat, ExpiresAt: exp}, nil
}

// ceilSecond rounds t up to a whole second so an exp claim never falls before
// the real expiry.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

// Verify decodes token and checks the denylist.
func (m *AccessManager) Verify(ctx context.Context, token string) (*AccessClaims, error) {
	raw, err := m.codec.Decode(token, AccessSalt, 0)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, err := parseAccessClaims(raw)
	if err != nil {
		return nil, err
	}

	revoked, err := m.store.Exists(ctx, revokedKeyPrefix+claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke denylists the jti of token until the token would have expired anyway.
// Tokens that do not decode, or that already expired, are ignored. Revoke is
// idempotent.
func (m *AccessManager) Revoke(ctx context.Context, token string) error {
	raw, err := m.codec.DecodeUnchecked(token, AccessSalt)
	if err != nil {
		return nil
	}
	jti, ok := jwt.StringClaim(raw, "jti")
	if !ok {
		return nil
	}
	exp, ok := jwt.NumericClaim(raw, "exp")
	if !ok {
		return nil
	}

	ttl := time.Unix(exp, 0).Sub(m.now())
	if ttl <= 0 {
		return nil
	}

	if err := m.store.Set(ctx, revokedKeyPrefix+jti, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func parseAccessClaims(raw jwt.Claims) (*AccessClaims, error) {
	user, ok := raw["user"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing user claim", ErrTokenInvalid)
	}
	userID, ok := jwt.StringClaim(user, "user_id")
	if !ok {
		return nil, fmt.Errorf("%w: missing user_id", ErrTokenInvalid)
	}
	jti, ok := jwt.StringClaim(raw, "jti")
	if !ok {
		return nil, fmt.Errorf("%w: missing jti", ErrTokenInvalid)
	}
	exp, ok := jwt.NumericClaim(raw, "exp")
	if !ok {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}
	iat, _ := jwt.NumericClaim(raw, "iat")

	handle, _ := user["sub"].(string)
	role, _ := user["role"].(string)
	issuer, _ := raw["iss"].(string)

	return &AccessClaims{
		User:      UserClaims{UserID: userID, Handle: handle, Role: role},
		JTI:       jti,
		Issuer:    issuer,
		IssuedAt:  time.Unix(iat, 0),
		ExpiresAt: time.Unix(exp, 0),
	}, nil
}

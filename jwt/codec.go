package jwt

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// SigningMethod names one of the HMAC algorithms a Codec can sign with.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 and a 32 byte derived key.
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384 and a 48 byte derived key.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512 and a 64 byte derived key.
	MethodHS512 SigningMethod = "hs512"
)

// MinSecretBytes is the shortest signing secret NewCodec accepts.
const MinSecretBytes = 32

const keyInfoPrefix = "goCred/codec/"

var (
	// ErrBadSignature is returned for tokens that are malformed, forged, signed
	// under another key or salt, use an unexpected algorithm, or carry unusable
	// time claims.
	ErrBadSignature = errors.New("jwt: bad signature")
	// ErrExpired is returned for tokens whose signature is valid but whose exp or
	// max age has passed.
	ErrExpired = errors.New("jwt: token expired")
)

// Claims is the decoded payload of a signed token.
type Claims map[string]any

// Config defines the signing secret and validation settings of a Codec.
type Config struct {
	Secret        []byte
	SigningMethod SigningMethod
	Issuer        string
	MaxFutureIAT  time.Duration
	Clock         func() time.Time
}

// Codec signs and verifies compact JWS tokens. Each salt gets its own HMAC key
// derived from the secret, so a token minted for one purpose never decodes
// under another.
//
// Codec is safe for concurrent use.
type Codec struct {
	method       jwt.SigningMethod
	keySize      int
	secret       []byte
	issuer       string
	maxFutureIAT time.Duration
	now          func() time.Time

	keys sync.Map
}

// NewCodec validates cfg and returns a ready Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	method, keySize, err := resolveMethod(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Codec{
		method:       method,
		keySize:      keySize,
		secret:       secret,
		issuer:       cfg.Issuer,
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          cfg.Clock,
	}, nil
}

func resolveMethod(m SigningMethod) (jwt.SigningMethod, int, error) {
	switch m {
	case MethodHS256, "":
		return jwt.SigningMethodHS256, 32, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, 48, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, 64, nil
	default:
		return nil, 0, errors.New("unsupported signing method")
	}
}

// Encode signs claims under salt. iat is stamped from the codec clock unless the
// caller already set it.
func (c *Codec) Encode(claims Claims, salt string) (string, error) {
	key, err := c.key(salt)
	if err != nil {
		return "", err
	}

	payload := make(jwt.MapClaims, len(claims)+2)
	for k, v := range claims {
		payload[k] = v
	}
	if _, ok := payload["iat"]; !ok {
		payload["iat"] = c.now().Unix()
	}
	if c.issuer != "" {
		if _, ok := payload["iss"]; !ok {
			payload["iss"] = c.issuer
		}
	}

	return jwt.NewWithClaims(c.method, payload).SignedString(key)
}

// Decode verifies the signature of token under salt and then its lifetime: exp
// when present, and iat+maxAge when maxAge is positive. iat carries whole
// seconds, so the age is measured against the clock truncated to the second.
func (c *Codec) Decode(token, salt string, maxAge time.Duration) (Claims, error) {
	claims, err := c.parse(token, salt, true)
	if err != nil {
		return nil, err
	}

	if maxAge > 0 {
		iat, ok := NumericClaim(claims, "iat")
		if !ok {
			return nil, fmt.Errorf("%w: missing iat", ErrBadSignature)
		}
		if c.now().Truncate(time.Second).Sub(time.Unix(iat, 0)) > maxAge {
			return nil, ErrExpired
		}
	}

	return claims, nil
}

// DecodeUnchecked verifies only the signature and algorithm of token under salt.
// Lifetime claims are not evaluated.
func (c *Codec) DecodeUnchecked(token, salt string) (Claims, error) {
	return c.parse(token, salt, false)
}

func (c *Codec) parse(token, salt string, validate bool) (Claims, error) {
	key, err := c.key(salt)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	mc := jwt.MapClaims{}
	_, err = jwt.NewParser(opts...).ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		// Signatures are checked before claims, so an expiry error implies a
		// genuine token.
		if validate && errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	claims := Claims(mc)
	if validate {
		if iat, ok := NumericClaim(claims, "iat"); ok {
			if time.Unix(iat, 0).After(c.now().Add(c.maxFutureIAT)) {
				return nil, fmt.Errorf("%w: iat in the future", ErrBadSignature)
			}
		}
	}

	return claims, nil
}

func (c *Codec) key(salt string) ([]byte, error) {
	if k, ok := c.keys.Load(salt); ok {
		return k.([]byte), nil
	}

	key := make([]byte, c.keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.secret, nil, []byte(keyInfoPrefix+salt)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	actual, _ := c.keys.LoadOrStore(salt, key)
	return actual.([]byte), nil
}

// NumericClaim reads an integral JSON number claim such as iat or exp.
func NumericClaim(claims Claims, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// StringClaim reads a string claim; missing or non-string values report false.
func StringClaim(claims map[string]any, name string) (string, bool) {
	s, ok := claims[name].(string)
	return s, ok && s != ""
}

package goCred

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/MrEthical07/goCred/jwt"
)

// Config is the full engine configuration. Start from DefaultConfig and
// override what differs; Build rejects anything Validate rejects.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Token        TokenConfig
	Password     PasswordConfig
	ActionTokens ActionTokenConfig
	Revocation   RevocationConfig
	Notify       NotifyConfig
	Links        LinksConfig
	Metrics      MetricsConfig

	// RequireVerifiedLogin rejects logins of subjects that have not verified
	// their email address.
	RequireVerifiedLogin bool
}

// TokenConfig holds the signing secret and the access token lifetime.
type TokenConfig struct {
	Secret        []byte
	SigningMethod jwt.SigningMethod
	Issuer        string
	AccessTTL     time.Duration
	MaxFutureIAT  time.Duration
}

// PasswordConfig holds Argon2id cost parameters and the strength policy.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	MaxLength        int
}

// ActionTokenConfig controls verification and reset links.
type ActionTokenConfig struct {
	VerifyMaxAge time.Duration
	ResetMaxAge  time.Duration
	// SingleUse rejects a second use of the same action token. Off by default,
	// in which case a token may be replayed until it expires.
	SingleUse bool
}

// RevocationConfig namespaces denylist keys.
type RevocationConfig struct {
	Prefix string
}

// NotifyConfig sizes the asynchronous notification dispatcher.
type NotifyConfig struct {
	BufferSize  int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	SendTimeout time.Duration
	DropIfFull  bool
}

// LinksConfig holds the base URLs action tokens are appended to as ?token=.
type LinksConfig struct {
	VerifyEmailURL   string
	ResetPasswordURL string
}

// MetricsConfig toggles in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. Token.Secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: jwt.MethodHS256,
			Issuer:        "gocred",
			AccessTTL:     15 * time.Minute,
			MaxFutureIAT:  time.Minute,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinLength:        12,
			MaxLength:        128,
		},
		ActionTokens: ActionTokenConfig{
			VerifyMaxAge: 5 * time.Minute,
			ResetMaxAge:  5 * time.Minute,
		},
		Revocation: RevocationConfig{
			Prefix: "gocred",
		},
		Notify: NotifyConfig{
			BufferSize:  256,
			Workers:     1,
			MaxAttempts: 3,
			Backoff:     500 * time.Millisecond,
			SendTimeout: 10 * time.Second,
			DropIfFull:  true,
		},
		Links: LinksConfig{
			VerifyEmailURL:   "http://localhost:8080/verify-email",
			ResetPasswordURL: "http://localhost:8080/reset-password",
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		RequireVerifiedLogin: true,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Token
	if len(c.Token.Secret) < jwt.MinSecretBytes {
		return fmt.Errorf("Token Secret must be at least %d bytes", jwt.MinSecretBytes)
	}
	switch c.Token.SigningMethod {
	case jwt.MethodHS256, jwt.MethodHS384, jwt.MethodHS512:
	default:
		return errors.New("Token SigningMethod must be hs256, hs384 or hs512")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.MaxFutureIAT < 0 {
		return errors.New("Token MaxFutureIAT must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength != 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.MaxPasswordBytes != 0 && c.Password.MaxPasswordBytes < c.Password.MaxLength {
		return errors.New("Password MaxPasswordBytes must be >= MaxLength")
	}

	// Action tokens
	if c.ActionTokens.VerifyMaxAge <= 0 {
		return errors.New("ActionTokens VerifyMaxAge must be > 0")
	}
	if c.ActionTokens.ResetMaxAge <= 0 {
		return errors.New("ActionTokens ResetMaxAge must be > 0")
	}

	// Notify
	if c.Notify.BufferSize < 1 {
		return errors.New("Notify BufferSize must be >= 1")
	}
	if c.Notify.Workers < 1 {
		return errors.New("Notify Workers must be >= 1")
	}
	if c.Notify.MaxAttempts < 1 {
		return errors.New("Notify MaxAttempts must be >= 1")
	}
	if c.Notify.Backoff < 0 {
		return errors.New("Notify Backoff must be >= 0")
	}
	if c.Notify.SendTimeout < 0 {
		return errors.New("Notify SendTimeout must be >= 0")
	}

	// Links
	if err := validateLink("VerifyEmailURL", c.Links.VerifyEmailURL); err != nil {
		return err
	}
	if err := validateLink("ResetPasswordURL", c.Links.ResetPasswordURL); err != nil {
		return err
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func validateLink(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("Links %s must be an absolute URL", name)
	}
	return nil
}

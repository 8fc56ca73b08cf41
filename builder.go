package goCred

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goCred/jwt"
	"github.com/MrEthical07/goCred/internal/idx"
	"github.com/MrEthical07/goCred/password"
	"github.com/MrEthical07/goCred/revocation"
	"github.com/MrEthical07/goCred/token"
)

// Builder assembles an Engine. A Builder is single-use: Build may succeed once.
//
//	engine, err := goCred.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithUserDirectory(dir).
//		WithNotifier(sender).
//		Build()
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	store     revocation.Store
	directory UserDirectory
	notifier  Notifier
	logger    *slog.Logger
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the revocation store with client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevocationStore sets the revocation store directly. It takes precedence
// over WithRedis.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.store = store
	return b
}

// WithUserDirectory sets the account store. Required.
func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithNotifier sets the message sender used for verification, reset, and
// password change emails. Without one, messages are logged at debug level and
// discarded.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for every time-dependent component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validate latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or revocation store required")
		}
		store = revocation.NewRedisStore(b.redis, cfg.Revocation.Prefix)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	codec, err := jwt.NewCodec(jwt.Config{
		Secret:        cfg.Token.Secret,
		SigningMethod: cfg.Token.SigningMethod,
		Issuer:        cfg.Token.Issuer,
		MaxFutureIAT:  cfg.Token.MaxFutureIAT,
		Clock:         now,
	})
	if err != nil {
		return nil, err
	}

	access, err := token.NewAccessManager(codec, store, token.AccessConfig{
		TTL:   cfg.Token.AccessTTL,
		Clock: now,
	})
	if err != nil {
		return nil, err
	}

	actions, err := token.NewActionManager(codec, store, token.ActionConfig{
		SingleUse: cfg.ActionTokens.SingleUse,
		Clock:     now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NotifierFunc(func(_ context.Context, msg Message) error {
			logger.Debug("no notifier configured, message discarded", "to", msg.To, "subject", msg.Subject)
			return nil
		})
	}

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:    cfg,
		access:    access,
		actions:   actions,
		store:     store,
		hasher:    hasher,
		policy:    password.Policy{MinLength: cfg.Password.MinLength, MaxLength: cfg.Password.MaxLength},
		directory: b.directory,
		logger:    logger,
		metrics:   metrics,
		ids:       idx.NewGenerator(),
		now:       now,
	}
	engine.notify = newNotifyDispatcher(cfg.Notify, notifier, logger, metrics)

	b.built = true
	return engine, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

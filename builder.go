package stellarauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/susin-d/stellarauth/internal/limiters"
	"github.com/susin-d/stellarauth/internal/oauthstate"
	"github.com/susin-d/stellarauth/internal/stores"
	"github.com/susin-d/stellarauth/password"
	"github.com/susin-d/stellarauth/token"
)

const (
	defaultOneTimePrefix = "sot"
	defaultSpentPrefix   = "srt"
	defaultLockoutPrefix = "sla"
)

// Builder assembles an [Engine]. Not safe for concurrent use; build once
// and share the resulting engine.
type Builder struct {
	config   Config
	hasCfg   bool
	redis    redis.UniversalClient
	accounts AccountStore
	notifier Notifier
	provider OAuthProvider
	sink     AuditSink
	logger   *slog.Logger
}

// New returns an empty builder. Call [Builder.WithConfig] or accept
// [DefaultConfig] with a secret via WithConfig anyway; the engine cannot
// start without a signing secret.
func New() *Builder {
	return &Builder{}
}

// WithConfig sets the full engine configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasCfg = true
	return b
}

// WithRedis sets the redis client backing one-time tokens, spent refresh
// jtis, and the durable lockout mirror.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account persistence collaborator. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithNotifier sets the outbound email collaborator. Optional; without
// it verification and reset requests mint tokens but send nothing.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithOAuthProvider sets the external identity provider. Optional; the
// OAuth flows return [ErrOAuthUnavailable] without one.
func (b *Builder) WithOAuthProvider(p OAuthProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink sets where audit events are delivered. Optional;
// defaults to [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the structured logger. Optional; defaults to
// [slog.Default].
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration, wires every component, and starts
// the background workers. The caller owns the returned engine and must
// Close it.
func (b *Builder) Build() (*Engine, error) {
	if !b.hasCfg {
		return nil, errors.New("stellarauth: config required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("stellarauth: account store required")
	}
	if b.redis == nil {
		return nil, errors.New("stellarauth: redis client required")
	}

	cfg := b.config

	codec, err := token.NewCodec(token.Config{
		Secret:          cfg.Token.Secret,
		VerifySecret:    cfg.Token.VerifySecret,
		Issuer:          cfg.Token.Issuer,
		Audience:        cfg.Token.Audience,
		AccessTTL:       cfg.Token.AccessTTL,
		RefreshTTL:      cfg.Token.RefreshTTL,
		VerificationTTL: cfg.Token.VerificationTTL,
		ResetTTL:        cfg.Token.ResetTTL,
		Leeway:          cfg.Token.Leeway,
		StrictBinding:   cfg.Security.ProductionMode,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	onetimePrefix := cfg.Security.OneTimeRedisPrefix
	if onetimePrefix == "" {
		onetimePrefix = defaultOneTimePrefix
	}
	spentPrefix := cfg.Security.SpentRedisPrefix
	if spentPrefix == "" {
		spentPrefix = defaultSpentPrefix
	}
	lockoutPrefix := cfg.Lockout.RedisPrefix
	if lockoutPrefix == "" {
		lockoutPrefix = defaultLockoutPrefix
	}

	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	sweep := cfg.OAuth.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}

	e := &Engine{
		config:   cfg,
		codec:    codec,
		hasher:   hasher,
		accounts: b.accounts,
		notifier: b.notifier,
		provider: b.provider,
		onetime:  stores.NewOneTimeStore(b.redis, onetimePrefix),
		spent:    stores.NewSpentTokenStore(b.redis, spentPrefix),
		lockout: limiters.NewLockoutTracker(b.redis, lockoutPrefix, limiters.LockoutConfig{
			MaxAttempts:     cfg.Lockout.MaxAttempts,
			LockoutDuration: cfg.Lockout.LockoutDuration,
			ResetWindow:     cfg.Lockout.ResetWindow,
		}),
		oauthStates: oauthstate.New(cfg.OAuth.StateTTL, sweep),
		audit:       newAuditDispatcher(cfg.Audit, sink),
		metrics:     newMetrics(cfg.Metrics),
		logger:      logger,
		now:         time.Now,
	}
	return e, nil
}

package stellarauth

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full engine configuration. Zero values are not usable;
// start from [DefaultConfig] or [ConfigFromEnv] and override.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	OAuth    OAuthConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
	Security SecurityConfig
}

// TokenConfig controls the token codec: signing secrets, claim policy,
// and per-kind lifetimes.
type TokenConfig struct {
	// Secret signs access and refresh tokens. At least 32 bytes.
	Secret []byte
	// VerifySecret signs verification and reset tokens; defaults to
	// Secret when empty.
	VerifySecret []byte

	Issuer   string
	Audience string

	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	// Leeway is the clock-skew tolerance on verification.
	Leeway time.Duration
}

// PasswordConfig holds the argon2id cost parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// LockoutConfig controls the failed-login lockout state machine.
type LockoutConfig struct {
	MaxAttempts     int
	LockoutDuration time.Duration
	// ResetWindow is the inactivity gap after which the failure counter
	// restarts even without a successful sign-in.
	ResetWindow time.Duration
	// RedisPrefix namespaces the durable mirror keys.
	RedisPrefix string
}

// OAuthConfig controls the CSRF-state side of the OAuth flow. The
// provider itself is injected through [Builder.WithOAuthProvider].
type OAuthConfig struct {
	StateTTL      time.Duration
	SweepInterval time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking emitters when the
	// buffer is saturated. Dropped counts are observable via
	// [Engine.AuditDropped].
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// SecurityConfig holds cross-cutting hardening switches.
type SecurityConfig struct {
	// ProductionMode enables strict token binding: access/refresh
	// tokens presented from a different User-Agent/IP than they were
	// minted under are rejected.
	ProductionMode bool
	// EnforceRefreshReuseDetection records spent refresh jtis and
	// rejects rotated-out tokens on replay.
	EnforceRefreshReuseDetection bool
	// OneTimeRedisPrefix namespaces one-time token records.
	OneTimeRedisPrefix string
	// SpentRedisPrefix namespaces spent refresh-jti records.
	SpentRedisPrefix string
}

// DefaultConfig returns the baseline configuration: 15m/7d/24h/1h token
// lifetimes, five failed attempts for a fifteen-minute lockout with a
// one-hour counting window, and reuse detection enabled. The signing
// secret must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:          "stellar-auth-service",
			Audience:        "stellar-users",
			AccessTTL:       15 * time.Minute,
			RefreshTTL:      7 * 24 * time.Hour,
			VerificationTTL: 24 * time.Hour,
			ResetTTL:        time.Hour,
			Leeway:          30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Lockout: LockoutConfig{
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
			ResetWindow:     time.Hour,
		},
		OAuth: OAuthConfig{
			StateTTL:      10 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			ProductionMode:               false,
			EnforceRefreshReuseDetection: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot run
// with. Builder.Build calls it; exported for config preflight in tests
// and deploy tooling.
func (c Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("token signing secret must be at least 32 bytes")
	}
	if len(c.Token.VerifySecret) > 0 && len(c.Token.VerifySecret) < 32 {
		return errors.New("token verify secret must be at least 32 bytes")
	}
	if c.Token.Issuer == "" || c.Token.Audience == "" {
		return errors.New("token issuer and audience required")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 ||
		c.Token.VerificationTTL <= 0 || c.Token.ResetTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.AccessTTL >= c.Token.RefreshTTL {
		return errors.New("access TTL must be shorter than refresh TTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("token leeway must be between 0 and 2 minutes")
	}
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("lockout max attempts must be positive")
	}
	if c.Lockout.LockoutDuration <= 0 || c.Lockout.ResetWindow <= 0 {
		return errors.New("lockout durations must be positive")
	}
	if c.OAuth.StateTTL <= 0 {
		return errors.New("oauth state TTL must be positive")
	}
	return nil
}

// configEnv is the flat env-var surface. Secrets arrive as strings and
// are converted to byte slices on load.
type configEnv struct {
	Secret       string `env:"STELLARAUTH_JWT_SECRET,required"`
	VerifySecret string `env:"STELLARAUTH_JWT_VERIFY_SECRET"`
	Issuer       string `env:"STELLARAUTH_JWT_ISSUER"    envDefault:"stellar-auth-service"`
	Audience     string `env:"STELLARAUTH_JWT_AUDIENCE"  envDefault:"stellar-users"`

	AccessTTL       time.Duration `env:"STELLARAUTH_ACCESS_TTL"       envDefault:"15m"`
	RefreshTTL      time.Duration `env:"STELLARAUTH_REFRESH_TTL"      envDefault:"168h"`
	VerificationTTL time.Duration `env:"STELLARAUTH_VERIFICATION_TTL" envDefault:"24h"`
	ResetTTL        time.Duration `env:"STELLARAUTH_RESET_TTL"        envDefault:"1h"`

	LockoutMaxAttempts int           `env:"STELLARAUTH_LOCKOUT_MAX_ATTEMPTS" envDefault:"5"`
	LockoutDuration    time.Duration `env:"STELLARAUTH_LOCKOUT_DURATION"     envDefault:"15m"`
	LockoutResetWindow time.Duration `env:"STELLARAUTH_LOCKOUT_RESET_WINDOW" envDefault:"1h"`

	Argon2Memory      uint32 `env:"STELLARAUTH_ARGON2_MEMORY_KB"   envDefault:"65536"`
	Argon2Time        uint32 `env:"STELLARAUTH_ARGON2_TIME"        envDefault:"3"`
	Argon2Parallelism uint8  `env:"STELLARAUTH_ARGON2_PARALLELISM" envDefault:"2"`

	ProductionMode bool `env:"STELLARAUTH_PRODUCTION_MODE" envDefault:"false"`
}

// ConfigFromEnv builds a Config from STELLARAUTH_* environment
// variables, on top of [DefaultConfig].
func ConfigFromEnv() (Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	cfg.Token.Secret = []byte(raw.Secret)
	if raw.VerifySecret != "" {
		cfg.Token.VerifySecret = []byte(raw.VerifySecret)
	}
	cfg.Token.Issuer = raw.Issuer
	cfg.Token.Audience = raw.Audience
	cfg.Token.AccessTTL = raw.AccessTTL
	cfg.Token.RefreshTTL = raw.RefreshTTL
	cfg.Token.VerificationTTL = raw.VerificationTTL
	cfg.Token.ResetTTL = raw.ResetTTL
	cfg.Lockout.MaxAttempts = raw.LockoutMaxAttempts
	cfg.Lockout.LockoutDuration = raw.LockoutDuration
	cfg.Lockout.ResetWindow = raw.LockoutResetWindow
	cfg.Password.Memory = raw.Argon2Memory
	cfg.Password.Time = raw.Argon2Time
	cfg.Password.Parallelism = raw.Argon2Parallelism
	cfg.Security.ProductionMode = raw.ProductionMode

	return cfg, cfg.Validate()
}

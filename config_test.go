package stellarauth

import (
	"testing"
	"time"
)

func TestDefaultConfigConstants(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Token.Issuer != "stellar-auth-service" || cfg.Token.Audience != "stellar-users" {
		t.Fatalf("issuer/audience = %q/%q", cfg.Token.Issuer, cfg.Token.Audience)
	}
	if cfg.Token.AccessTTL != 15*time.Minute {
		t.Fatalf("access TTL = %v", cfg.Token.AccessTTL)
	}
	if cfg.Token.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("refresh TTL = %v", cfg.Token.RefreshTTL)
	}
	if cfg.Token.VerificationTTL != 24*time.Hour || cfg.Token.ResetTTL != time.Hour {
		t.Fatalf("one-time TTLs = %v/%v", cfg.Token.VerificationTTL, cfg.Token.ResetTTL)
	}
	if cfg.Token.Leeway != 30*time.Second {
		t.Fatalf("leeway = %v", cfg.Token.Leeway)
	}
	if cfg.Lockout.MaxAttempts != 5 || cfg.Lockout.LockoutDuration != 15*time.Minute || cfg.Lockout.ResetWindow != time.Hour {
		t.Fatalf("lockout = %+v", cfg.Lockout)
	}
	if cfg.OAuth.StateTTL != 10*time.Minute {
		t.Fatalf("oauth state TTL = %v", cfg.OAuth.StateTTL)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := testConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.Token.Secret = []byte("short") }},
		{"short verify secret", func(c *Config) { c.Token.VerifySecret = []byte("short") }},
		{"missing issuer", func(c *Config) { c.Token.Issuer = "" }},
		{"zero access ttl", func(c *Config) { c.Token.AccessTTL = 0 }},
		{"access >= refresh", func(c *Config) { c.Token.AccessTTL = c.Token.RefreshTTL }},
		{"excessive leeway", func(c *Config) { c.Token.Leeway = 5 * time.Minute }},
		{"zero max attempts", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero lockout duration", func(c *Config) { c.Lockout.LockoutDuration = 0 }},
		{"zero state ttl", func(c *Config) { c.OAuth.StateTTL = 0 }},
	}
	for _, tc := range cases {
		cfg := testConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STELLARAUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("STELLARAUTH_ACCESS_TTL", "5m")
	t.Setenv("STELLARAUTH_LOCKOUT_MAX_ATTEMPTS", "3")
	t.Setenv("STELLARAUTH_PRODUCTION_MODE", "true")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if string(cfg.Token.Secret) != "0123456789abcdef0123456789abcdef" {
		t.Fatal("secret not loaded")
	}
	if cfg.Token.AccessTTL != 5*time.Minute {
		t.Fatalf("access TTL = %v", cfg.Token.AccessTTL)
	}
	if cfg.Lockout.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d", cfg.Lockout.MaxAttempts)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("production mode not loaded")
	}
	// Untouched values fall back to defaults.
	if cfg.Token.Issuer != "stellar-auth-service" {
		t.Fatalf("issuer = %q", cfg.Token.Issuer)
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	_, rdb := newTestRedis(t)

	if _, err := New().WithRedis(rdb).WithAccountStore(newFakeStore()).Build(); err == nil {
		t.Fatal("missing config accepted")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("missing account store accepted")
	}
	if _, err := New().WithConfig(testConfig()).WithAccountStore(newFakeStore()).Build(); err == nil {
		t.Fatal("missing redis accepted")
	}
}

package authcore

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero lockout budget", func(c *Config) { c.Lockout.MaxAttempts = 0 }},
		{"zero password age", func(c *Config) { c.Password.MaxAgeDays = 0 }},
		{"zero mail ttl", func(c *Config) { c.TFA.MailCodeTTL = 0 }},
		{"short mail code", func(c *Config) { c.TFA.MailCodeDigits = 4 }},
		{"totp digits", func(c *Config) { c.TFA.Digits = 12 }},
		{"totp period", func(c *Config) { c.TFA.Period = 0 }},
		{"negative skew", func(c *Config) { c.TFA.Skew = -1 }},
		{"empty pool prefix", func(c *Config) { c.Tenant.PoolPrefix = "" }},
		{"throttle without budget", func(c *Config) {
			c.RateLimit.EnableTFAThrottle = true
			c.RateLimit.MaxTFAAttempts = 0
		}},
		{"throttle without cooldown", func(c *Config) {
			c.RateLimit.EnableTFAThrottle = true
			c.RateLimit.TFACooldown = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	if _, err := New().WithSecretCodec(staticCodec{}).Build(); err == nil {
		t.Fatal("missing store must fail Build")
	}
	if _, err := New().WithStore(newMockStore()).Build(); err == nil {
		t.Fatal("missing codec must fail Build")
	}

	cfg := defaultConfig()
	cfg.RateLimit.EnableTFAThrottle = true
	cfg.RateLimit.MaxTFAAttempts = 3
	cfg.RateLimit.TFACooldown = time.Minute
	_, err := New().WithConfig(cfg).WithStore(newMockStore()).WithSecretCodec(staticCodec{}).Build()
	if err == nil {
		t.Fatal("throttle without redis must fail Build")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	builder := New().WithStore(newMockStore()).WithSecretCodec(staticCodec{}).WithHasher(plainHasher{})

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first Build() failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := builder.Build(); err == nil {
		t.Fatal("second Build() must fail")
	}
}

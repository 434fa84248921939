package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Lockout   LockoutConfig
	Password  PasswordConfig
	TFA       TFAConfig
	Tenant    TenantConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	// MaxAttempts is the password-mismatch budget. The account transitions
	// to StatusLocked once the attempt counter reaches this value.
	MaxAttempts int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	// MaxAgeDays expires Active-account passwords strictly older than this.
	MaxAgeDays int

	// Argon2id parameters for the default hasher.
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// AllowLegacyVerify accepts stored single-round unsalted MD5 digests
	// during verification. Migration aid only; new hashes are always
	// Argon2id.
	AllowLegacyVerify bool

	// UpgradeOnLogin rehashes a legacy-verified password with Argon2id after
	// a successful credential login.
	UpgradeOnLogin bool
}

/*
====================================
TFA CONFIG
====================================
*/

// TFAConfig defines a public type used by authcore APIs.
//
// TFAConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TFAConfig struct {
	// Require marks every issued session descriptor as needing a second
	// factor before the transport treats it as fully authenticated.
	Require bool

	// MailCodeTTL bounds mailed one-time codes. Default 15 minutes.
	MailCodeTTL time.Duration

	// MailCodeDigits is the zero-padded width of mailed codes.
	MailCodeDigits int

	// Authenticator-app TOTP parameters.
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	Skew      int
}

/*
====================================
TENANT CONFIG
====================================
*/

// TenantConfig defines a public type used by authcore APIs.
//
// TenantConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type TenantConfig struct {
	// PoolPrefix prefixes the per-(account, login) connection pool name.
	PoolPrefix string
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// RateLimitConfig defines a public type used by authcore APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	// EnableTFAThrottle caps mailed-code and TOTP verification attempts per
	// login within the cooldown window. Disabled by default: the reference
	// behavior allows unlimited TFA attempts.
	EnableTFAThrottle bool
	MaxTFAAttempts    int
	TFACooldown       time.Duration
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration [New] starts from. Mutate the
// copy and pass it back through [Builder.WithConfig].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Lockout: LockoutConfig{
			MaxAttempts: 5,
		},
		Password: PasswordConfig{
			MaxAgeDays:        90,
			Memory:            65536,
			Time:              3,
			Parallelism:       2,
			SaltLength:        16,
			KeyLength:         32,
			AllowLegacyVerify: true,
			UpgradeOnLogin:    true,
		},
		TFA: TFAConfig{
			Require:        true,
			MailCodeTTL:    15 * time.Minute,
			MailCodeDigits: 8,
			Issuer:         "authcore",
			Digits:         6,
			Period:         30,
			Algorithm:      "SHA1",
			Skew:           1,
		},
		Tenant: TenantConfig{
			PoolPrefix: "cx",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		RateLimit: RateLimitConfig{
			EnableTFAThrottle: false,
			MaxTFAAttempts:    10,
			TFACooldown:       15 * time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Lockout.MaxAttempts <= 0 {
		return errors.New("Lockout.MaxAttempts must be positive")
	}
	if c.Password.MaxAgeDays <= 0 {
		return errors.New("Password.MaxAgeDays must be positive")
	}
	if c.TFA.MailCodeTTL <= 0 {
		return errors.New("TFA.MailCodeTTL must be positive")
	}
	if c.TFA.MailCodeDigits < 6 {
		return errors.New("TFA.MailCodeDigits must be at least 6")
	}
	if c.TFA.Digits < 6 || c.TFA.Digits > 10 {
		return errors.New("TFA.Digits must be between 6 and 10")
	}
	if c.TFA.Period <= 0 {
		return errors.New("TFA.Period must be positive")
	}
	if c.TFA.Skew < 0 {
		return errors.New("TFA.Skew must not be negative")
	}
	if c.Tenant.PoolPrefix == "" {
		return errors.New("Tenant.PoolPrefix must not be empty")
	}
	if c.RateLimit.EnableTFAThrottle {
		if c.RateLimit.MaxTFAAttempts <= 0 {
			return errors.New("RateLimit.MaxTFAAttempts must be positive when throttling is enabled")
		}
		if c.RateLimit.TFACooldown <= 0 {
			return errors.New("RateLimit.TFACooldown must be positive when throttling is enabled")
		}
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

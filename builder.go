package authcore

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stratumhq/authcore/internal/rate"
	"github.com/stratumhq/authcore/password"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store  CredentialStore
	codec  SecretCodec
	mailer Mailer
	hasher password.Hasher

	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore describes the withstore operation and its observable behavior.
//
// WithStore may return an error when input validation, dependency calls, or security checks fail.
// WithStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithSecretCodec describes the withsecretcodec operation and its observable behavior.
//
// WithSecretCodec may return an error when input validation, dependency calls, or security checks fail.
// WithSecretCodec does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithSecretCodec(codec SecretCodec) *Builder {
	b.codec = codec
	return b
}

// WithMailer describes the withmailer operation and its observable behavior.
//
// WithMailer may return an error when input validation, dependency calls, or security checks fail.
// WithMailer does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMailer(mailer Mailer) *Builder {
	b.mailer = mailer
	return b
}

// WithHasher overrides the default Argon2id-with-legacy-verify hasher.
// Intended for tests and for deployments that front their own KDF.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store is required")
	}
	if b.codec == nil {
		return nil, errors.New("secret codec is required")
	}
	if b.config.RateLimit.EnableTFAThrottle && b.redis == nil {
		return nil, errors.New("redis client is required when TFA throttling is enabled")
	}

	hasher := b.hasher
	if hasher == nil {
		argon, err := password.NewArgon2(password.Config{
			Memory:      b.config.Password.Memory,
			Time:        b.config.Password.Time,
			Parallelism: b.config.Password.Parallelism,
			SaltLength:  b.config.Password.SaltLength,
			KeyLength:   b.config.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = password.NewMigrating(argon, b.config.Password.AllowLegacyVerify)
	}

	var tfaLimiter *rate.Limiter
	if b.config.RateLimit.EnableTFAThrottle {
		tfaLimiter = rate.New(b.redis, rate.Config{
			MaxTFAAttempts: b.config.RateLimit.MaxTFAAttempts,
			TFACooldown:    b.config.RateLimit.TFACooldown,
		})
	}

	engine := &Engine{
		config:     b.config,
		store:      b.store,
		codec:      b.codec,
		mailer:     b.mailer,
		hasher:     hasher,
		totp:       newTOTPManager(b.config.TFA),
		tfaLimiter: tfaLimiter,
		audit:      newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:    NewMetrics(b.config.Metrics),
		now:        time.Now,
	}

	b.built = true
	return engine, nil
}

package authcore

import (
	"strconv"
	"strings"
	"time"

	"github.com/stratumhq/authcore/internal/rate"
	"github.com/stratumhq/authcore/password"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	store      CredentialStore
	codec      SecretCodec
	mailer     Mailer
	hasher     password.Hasher
	totp       *totpManager
	tfaLimiter *rate.Limiter
	audit      *auditDispatcher
	metrics    *Metrics

	// now is replaced in tests to pin lockout, expiry, and session-id
	// timestamps.
	now func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot may return an error when input validation, dependency calls, or security checks fail.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Snapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// mintSessionID issues the canonical "<loginID>:<unixMillis>" token. The
// token is opaque to callers; only byte equality against the stored value
// matters.
func (e *Engine) mintSessionID(loginID int64) string {
	return strconv.FormatInt(loginID, 10) + ":" + strconv.FormatInt(e.now().UnixMilli(), 10)
}

// statusError maps a terminal account state to its sentinel, nil for states
// the caller must inspect further.
func statusError(status LoginStatus) error {
	switch status {
	case StatusLocked:
		return ErrLockedUser
	case StatusDeleted:
		return ErrDeletedUser
	default:
		return nil
	}
}

// countryFromCurrency derives the ISO country prefix the UI layer expects
// from a tenant's currency code. Unknown or short codes yield the empty
// string rather than a guess.
func countryFromCurrency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) < 3 {
		return ""
	}
	switch c {
	case "EUR":
		return "EU"
	case "XAF", "XOF", "XCD", "XPF":
		return ""
	default:
		return c[:2]
	}
}

func displayName(user *LoginAccount) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Email
	}
	return name
}

package authcore

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventSessionRevalidated = "session_revalidated"
	auditEventSessionSuperseded  = "session_superseded"
	auditEventAccountLocked      = "account_locked"
	auditEventPasswordExpired    = "password_expired"
	auditEventPasswordChange     = "password_change"
	auditEventPasswordRejected   = "password_change_rejected"
	auditEventTFACodeIssued      = "tfa_code_issued"
	auditEventTFACodeVerified    = "tfa_code_verified"
	auditEventTFACodeRejected    = "tfa_code_rejected"
	auditEventTFARateLimited     = "tfa_rate_limited"
	auditEventTOTPVerified       = "totp_verified"
	auditEventTOTPRejected       = "totp_rejected"
	auditEventAccountVerified    = "account_verified"
	auditEventLoginProvisioned   = "login_provisioned"
	auditEventLoginLinked        = "login_linked"
	auditEventLoginReset         = "login_reset"
	auditEventAccountSwitched    = "account_switched"
	auditEventTenantResolved     = "tenant_resolved"
	auditEventTenantMissing      = "tenant_missing"
)

// emitAudit publishes one event through the buffered dispatcher. The audit
// trail written here is observability plumbing; the authoritative login
// audit rows live in the credential store and are written by
// RecordLoginSuccess/RecordLoginFailure.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	loginID int64,
	accountID int64,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		LoginID:   loginID,
		AccountID: accountID,
		SessionID: sessionID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Code = CodeOf(err)
		event.Error = err.Error()
	}

	e.audit.Emit(ctx, event)
}

package authcore

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/stratumhq/authcore/internal/policy"
)

// Validate authenticates a [LoginRequest] and, on success, returns the
// session descriptor the transport layer builds its session from.
//
// Credentials attempts that fail password verification consume one unit of
// the lockout budget; the account transitions to [StatusLocked] once the
// counter reaches Config.Lockout.MaxAttempts. SessionToken attempts never
// consume budget: a stale token is rejected with [ErrInvalidSession] and the
// holder must log in again with credentials.
//
// An unknown email returns [ErrInvalidUser] without writing an audit row;
// there is no login to attribute the row to.
func (e *Engine) Validate(ctx context.Context, req LoginRequest) (*SessionDescriptor, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if req == nil {
		return nil, ErrInvalidUser
	}
	ctx = ensureRequestID(ctx)

	user, err := e.store.GetLoginByEmail(ctx, req.loginEmail())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, 0, 0, "", ErrInvalidUser, nil)
		return nil, ErrInvalidUser
	}

	callerSession := ""
	if token, ok := req.(SessionToken); ok {
		callerSession = token.SessionID
	}

	if user.Status == StatusNotVerified {
		e.failLogin(ctx, user, CodeNotVerified, callerSession, false)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.LoginID, user.LastAccountID, callerSession, ErrNotVerified, nil)
		return nil, ErrNotVerified
	}
	if err := statusError(user.Status); err != nil {
		e.failLogin(ctx, user, CodeOf(err), callerSession, false)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.LoginID, user.LastAccountID, callerSession, err, nil)
		return nil, err
	}

	switch r := req.(type) {
	case Credentials:
		return e.validateCredentials(ctx, user, r)
	case SessionToken:
		return e.validateSession(ctx, user, r)
	default:
		return nil, ErrInvalidUser
	}
}

func (e *Engine) validateCredentials(ctx context.Context, user *LoginAccount, creds Credentials) (*SessionDescriptor, error) {
	ok, err := e.hasher.Verify(creds.Password, user.PasswordHash)
	if err != nil {
		log.Print("authcore: stored hash for login ", user.LoginID, " is unreadable: ", err)
		ok = false
	}
	if !ok {
		attempts, locked, ferr := e.failLogin(ctx, user, CodeInvalidPass, "", true)
		if ferr != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ferr)
		}
		e.metricInc(MetricLoginFailure)
		if locked {
			// The counted row carries the increment; a second row records the
			// transition itself so the trail shows when the lock happened.
			_, _, _ = e.failLogin(ctx, user, CodeLockedUser, "", false)
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, auditEventAccountLocked, false, user.LoginID, user.LastAccountID, "", ErrLockedUser, func() map[string]string {
				return map[string]string{"attempts": fmt.Sprint(attempts)}
			})
			return nil, ErrLockedUser
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, user.LoginID, user.LastAccountID, "", ErrInvalidPass, func() map[string]string {
			return map[string]string{"attempts": fmt.Sprint(attempts)}
		})
		return nil, ErrInvalidPass
	}

	if err := e.checkPasswordAge(ctx, user, ""); err != nil {
		return nil, err
	}

	sessionID := e.mintSessionID(user.LoginID)
	if err := e.store.RecordLoginSuccess(ctx, AuditRecord{
		LoginID:   user.LoginID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		SessionID: sessionID,
		TenantID:  user.LastAccountID,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.maybeUpgradeHash(ctx, user, creds.Password)
	e.maybeProvisionTOTP(ctx, user)

	descriptor, err := e.composeDescriptor(ctx, user, sessionID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.LoginID, user.LastAccountID, sessionID, nil, nil)

	return descriptor, nil
}

func (e *Engine) validateSession(ctx context.Context, user *LoginAccount, token SessionToken) (*SessionDescriptor, error) {
	if token.SessionID == "" || user.LastSessionID == "" || token.SessionID != user.LastSessionID {
		if _, _, err := e.failLogin(ctx, user, CodeInvalidSession, token.SessionID, false); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricSessionSuperseded)
		e.emitAudit(ctx, auditEventSessionSuperseded, false, user.LoginID, user.LastAccountID, token.SessionID, ErrInvalidSession, nil)
		return nil, ErrInvalidSession
	}

	if err := e.checkPasswordAge(ctx, user, token.SessionID); err != nil {
		return nil, err
	}

	descriptor, err := e.composeDescriptor(ctx, user, token.SessionID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionRevalidated)
	e.emitAudit(ctx, auditEventSessionRevalidated, true, user.LoginID, user.LastAccountID, token.SessionID, nil, nil)

	return descriptor, nil
}

// checkPasswordAge rejects Active accounts whose password is strictly older
// than the configured maximum. Verified accounts are exempt: their password
// was just set through the verification flow.
func (e *Engine) checkPasswordAge(ctx context.Context, user *LoginAccount, sessionID string) error {
	if user.Status != StatusActive {
		return nil
	}
	if !policy.Expired(user.LastPassChange, e.now(), e.config.Password.MaxAgeDays) {
		return nil
	}

	if _, _, err := e.failLogin(ctx, user, CodePassExpired, sessionID, false); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricPasswordExpired)
	e.emitAudit(ctx, auditEventPasswordExpired, false, user.LoginID, user.LastAccountID, sessionID, ErrPassExpired, nil)
	return ErrPassExpired
}

// failLogin writes the store-side failure audit row. count requests the
// atomic attempt increment with the lock transition at the configured
// threshold.
func (e *Engine) failLogin(ctx context.Context, user *LoginAccount, outcome Code, sessionID string, count bool) (attempts int, locked bool, err error) {
	rec := AuditRecord{
		LoginID:   user.LoginID,
		IP:        clientIPFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		SessionID: sessionID,
		Outcome:   outcome,
		TenantID:  user.LastAccountID,
	}
	if count {
		rec.CountAttempt = true
		rec.LockThreshold = e.config.Lockout.MaxAttempts
	}

	attempts, locked, err = e.store.RecordLoginFailure(ctx, rec)
	if err != nil {
		log.Print("authcore: failed to record login failure for login ", user.LoginID, ": ", err)
	}
	return attempts, locked, err
}

// maybeUpgradeHash rewrites a legacy-verified hash with the current
// algorithm. Best effort: the login already succeeded, so a storage error
// here is logged, not surfaced.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *LoginAccount, plaintext string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := e.hasher.Hash(plaintext)
	if err != nil {
		log.Print("authcore: rehash after legacy verify failed for login ", user.LoginID, ": ", err)
		return
	}
	if err := e.store.UpgradePasswordHash(ctx, user.LoginID, rehashed); err != nil {
		log.Print("authcore: storing upgraded hash failed for login ", user.LoginID, ": ", err)
	}
}

// maybeProvisionTOTP lazily assigns an authenticator secret to logins that
// predate enrollment. Best effort for the same reason as maybeUpgradeHash.
func (e *Engine) maybeProvisionTOTP(ctx context.Context, user *LoginAccount) {
	if !e.config.TFA.Require || user.TFASecret != "" {
		return
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		log.Print("authcore: totp secret generation failed for login ", user.LoginID, ": ", err)
		return
	}
	qrRef := uuid.NewString()
	if err := e.store.SetTFASecret(ctx, user.LoginID, secret, qrRef); err != nil {
		log.Print("authcore: storing totp secret failed for login ", user.LoginID, ": ", err)
		return
	}

	user.TFASecret = secret
	user.TFAQRRef = qrRef
}

// composeDescriptor builds the transport-facing session view, resolving the
// active tenant when the login has one.
func (e *Engine) composeDescriptor(ctx context.Context, user *LoginAccount, sessionID string) (*SessionDescriptor, error) {
	descriptor := &SessionDescriptor{
		SessionID:   sessionID,
		LoginID:     user.LoginID,
		Email:       user.Email,
		DisplayName: displayName(user),
		LoginType:   user.LoginType,
		Theme:       user.Theme,
		Status:      user.Status,
		RequireTFA:  e.config.TFA.Require,
		TFAEnrolled: user.TFASecret != "",
	}

	if user.LastAccountID == 0 {
		return descriptor, nil
	}

	tenant, conn, err := e.resolveTenant(ctx, user.LastAccountID, user.LoginID)
	if err != nil {
		return nil, err
	}

	descriptor.AccountID = tenant.AccountID
	descriptor.AccountName = tenant.Name
	descriptor.AccountCode = tenant.Code
	descriptor.Currency = tenant.Currency
	descriptor.Country = countryFromCurrency(tenant.Currency)
	descriptor.Banner = tenant.Banner
	descriptor.Connection = conn

	return descriptor, nil
}

package authcore

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
)

// GetOrCreateLogin provisions the master login for email and links it to the
// tenant account. Idempotent across tenants: one login row per email, one
// link row per (account, login) pair. A freshly created login starts at
// [StatusNotVerified] with a temporary password and receives a verification
// mail code.
func (e *Engine) GetOrCreateLogin(ctx context.Context, email, firstName, lastName string, accountID int64) (*Registration, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrInvalidUser
	}
	ctx = ensureRequestID(ctx)

	existing, err := e.store.GetLoginByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if existing != nil {
		if err := e.store.LinkLogin(ctx, accountID, existing.LoginID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.emitAudit(ctx, auditEventLoginLinked, true, existing.LoginID, accountID, "", nil, nil)
		return &Registration{LoginID: existing.LoginID, IsNew: false}, nil
	}

	hash, err := e.hasher.Hash(temporaryPassword(email))
	if err != nil {
		return nil, err
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	loginID, err := e.store.CreateLogin(ctx, NewLogin{
		Email:        email,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		LoginType:    LoginTypePassword,
		PasswordHash: hash,
		Status:       StatusNotVerified,
		AccountID:    accountID,
		TFASecret:    secret,
		TFAQRRef:     uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.store.LinkLogin(ctx, accountID, loginID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLoginProvisioned)
	e.emitAudit(ctx, auditEventLoginProvisioned, true, loginID, accountID, "", nil, nil)

	if err := e.IssueMailCode(ctx, loginID); err != nil {
		log.Print("authcore: issuing verification code for new login ", loginID, " failed: ", err)
	}

	return &Registration{LoginID: loginID, IsNew: true}, nil
}

// SetActiveAccount switches the login's active tenant. The target must
// already be linked; switching is never an implicit grant.
func (e *Engine) SetActiveAccount(ctx context.Context, loginID, accountID int64) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)

	linked, err := e.store.IsLinked(ctx, accountID, loginID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !linked {
		e.emitAudit(ctx, auditEventAccountSwitched, false, loginID, accountID, "", ErrAccessDenied, nil)
		return ErrAccessDenied
	}

	if err := e.store.SetActiveAccount(ctx, loginID, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventAccountSwitched, true, loginID, accountID, "", nil, nil)
	return nil
}

// ListLinkedAccounts returns the tenants the login may switch to.
func (e *Engine) ListLinkedAccounts(ctx context.Context, loginID int64) ([]LinkedAccount, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	accounts, err := e.store.ListLinkedAccounts(ctx, loginID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return accounts, nil
}

// ResetLogin forces the login back through verification: status drops to
// [StatusNotVerified], the TFA secret is cleared, a temporary password is
// set, and a fresh verification code is mailed. Self-service and admin
// reset flows both arrive here with only the mail address.
func (e *Engine) ResetLogin(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)

	user, err := e.store.GetLoginByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return ErrInvalidUser
	}
	if user.Status == StatusDeleted {
		return ErrDeletedUser
	}

	hash, err := e.hasher.Hash(temporaryPassword(user.Email))
	if err != nil {
		return err
	}
	if err := e.store.ResetLogin(ctx, user.LoginID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLoginReset)
	e.emitAudit(ctx, auditEventLoginReset, true, user.LoginID, user.LastAccountID, "", nil, nil)

	if err := e.IssueMailCode(ctx, user.LoginID); err != nil {
		log.Print("authcore: issuing verification code after reset of login ", user.LoginID, " failed: ", err)
	}

	return nil
}

// temporaryPassword derives the provisioning-time password from the mail
// address local part. The account is unusable until verification replaces
// it, so the weak derivation only ever guards a NotVerified login.
func temporaryPassword(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

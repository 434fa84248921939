package authcore

import (
	"context"
	"fmt"
	"log"
)

// ChangePassword replaces the password for loginID after re-proving the
// current one. newPassword must match its confirmation, differ from the
// current password, and not appear in the stored history. A wrong current
// password consumes lockout budget exactly like a failed login.
func (e *Engine) ChangePassword(ctx context.Context, loginID int64, oldPassword, newPassword, confirmPassword string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)

	user, err := e.store.GetLoginByID(ctx, loginID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return ErrInvalidUser
	}
	if err := statusError(user.Status); err != nil {
		e.rejectPasswordChange(ctx, user, err)
		return err
	}

	// The old password is proved before the payload is inspected. A wrong
	// old password always consumes lockout budget, whatever else is wrong
	// with the submission.
	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		log.Print("authcore: stored hash for login ", user.LoginID, " is unreadable: ", err)
		ok = false
	}
	if !ok {
		_, locked, ferr := e.failLogin(ctx, user, CodeInvalidPass, "", true)
		if ferr != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ferr)
		}
		e.rejectPasswordChange(ctx, user, ErrInvalidPass)
		if locked {
			_, _, _ = e.failLogin(ctx, user, CodeLockedUser, "", false)
			e.metricInc(MetricAccountLocked)
			return ErrLockedUser
		}
		return ErrInvalidPass
	}

	if newPassword != confirmPassword {
		e.rejectPasswordChange(ctx, user, ErrNewPassMismatch)
		return ErrNewPassMismatch
	}
	if newPassword == oldPassword {
		e.rejectPasswordChange(ctx, user, ErrNewPassNoSame)
		return ErrNewPassNoSame
	}

	used, err := e.passwordInHistory(ctx, user.LoginID, newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if used {
		e.rejectPasswordChange(ctx, user, ErrNewPassAlreadyUsed)
		return ErrNewPassAlreadyUsed
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.store.SetPassword(ctx, user.LoginID, hash, false); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.LoginID, user.LastAccountID, "", nil, nil)

	return nil
}

// passwordInHistory verifies the candidate plaintext against every stored
// history hash. History rows may still be in the legacy digest format; the
// hasher routes each entry to the right verifier.
func (e *Engine) passwordInHistory(ctx context.Context, loginID int64, candidate string) (bool, error) {
	history, err := e.store.ListPasswordHistory(ctx, loginID, 0)
	if err != nil {
		return false, err
	}

	for _, stored := range history {
		match, err := e.hasher.Verify(candidate, stored)
		if err != nil {
			// Unreadable history rows cannot match; skip rather than block
			// the change.
			continue
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) rejectPasswordChange(ctx context.Context, user *LoginAccount, cause error) {
	e.metricInc(MetricPasswordChangeRejected)
	e.emitAudit(ctx, auditEventPasswordRejected, false, user.LoginID, user.LastAccountID, "", cause, nil)
}

package authcore

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/stratumhq/authcore/internal/rate"
)

// mailCodeFloor is the smallest acceptable raw draw for a mailed code.
// Smaller draws are redrawn so a code never collapses to something a user
// could confuse with a short PIN, then the survivor is zero-padded to the
// configured width.
const mailCodeFloor = 10000

// IssueMailCode generates a one-time code for loginID, persists it with the
// configured TTL, and mails it. Mail delivery is fire-and-forget; a delivery
// failure is logged and the persisted code stays valid.
func (e *Engine) IssueMailCode(ctx context.Context, loginID int64) error {
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
		return err
	}

	code, err := e.newMailCode()
	if err != nil {
		return err
	}

	now := e.now()
	record := &TFACode{
		LoginID: user.LoginID,
		Code:    code,
		Created: now,
		Expiry:  now.Add(e.config.TFA.MailCodeTTL),
	}
	if err := e.store.CreateTFACode(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTFACodeIssued)
	e.emitAudit(ctx, auditEventTFACodeIssued, true, user.LoginID, user.LastAccountID, "", nil, nil)

	if e.mailer != nil {
		msg := mailCodeMessage(user, code, e.config.TFA.MailCodeTTL)
		go func(ctx context.Context) {
			if err := e.mailer.Send(ctx, msg); err != nil {
				log.Print("authcore: mailing 2fa code to login ", user.LoginID, " failed: ", err)
			}
		}(context.WithoutCancel(ctx))
	}

	return nil
}

// VerifyMailCode checks a mailed code for loginID and consumes it on
// success. A code can be consumed exactly once; expiry is checked before
// consumption so an expired code survives for diagnosis.
func (e *Engine) VerifyMailCode(ctx context.Context, loginID int64, code string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)
	if err := e.throttleTFA(ctx, loginID); err != nil {
		return err
	}

	record, err := e.store.FindTFACode(ctx, loginID, code)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record == nil {
		return e.rejectTFACode(ctx, loginID, ErrTFACodeInvalid)
	}
	if e.now().After(record.Expiry) {
		return e.rejectTFACode(ctx, loginID, ErrTFACodeExpired)
	}

	consumed, err := e.store.ConsumeTFACode(ctx, record.TFAID, e.now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !consumed {
		return e.rejectTFACode(ctx, loginID, ErrTFACodeInvalid)
	}

	e.resetTFAThrottle(ctx, loginID)
	e.metricInc(MetricTFACodeVerified)
	e.emitAudit(ctx, auditEventTFACodeVerified, true, loginID, 0, "", nil, nil)

	return nil
}

// VerifyTOTP checks an authenticator-app code for loginID. Only the current
// time step is accepted: a code from an earlier step in the skew window is
// rejected as expired, one from a later step as not yet valid. The skew
// window exists to tell those cases apart, not to accept them.
func (e *Engine) VerifyTOTP(ctx context.Context, loginID int64, code string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)
	if err := e.throttleTFA(ctx, loginID); err != nil {
		return err
	}

	user, err := e.store.GetLoginByID(ctx, loginID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return ErrInvalidUser
	}
	if user.TFASecret == "" {
		return e.rejectTOTP(ctx, loginID, ErrTFACodeInvalid)
	}

	matched, delta, err := e.totp.VerifyCode(user.TFASecret, code, e.now())
	if err != nil {
		log.Print("authcore: totp verification for login ", loginID, " failed: ", err)
		return e.rejectTOTP(ctx, loginID, ErrTFACodeInvalid)
	}
	switch {
	case !matched:
		return e.rejectTOTP(ctx, loginID, ErrTFACodeInvalid)
	case delta < 0:
		return e.rejectTOTP(ctx, loginID, ErrTFACodeExpired)
	case delta > 0:
		return e.rejectTOTP(ctx, loginID, ErrTFACodeUnborn)
	}

	e.resetTFAThrottle(ctx, loginID)
	e.metricInc(MetricTOTPVerified)
	e.emitAudit(ctx, auditEventTOTPVerified, true, loginID, 0, "", nil, nil)

	return nil
}

// VerifyViaTFA completes account verification from a mailed-code link. The
// lookup is by email plus code, independent of any session.
//
// With a password payload, a matching unconsumed code activates the account:
// the code is consumed first, then the password is set and the status
// promoted, so only the caller that wins the consumption reports Activated.
// Without a payload the code is left unconsumed and the outcome asks the
// caller to collect a password, so the same link still works on the
// follow-up submission.
func (e *Engine) VerifyViaTFA(ctx context.Context, email, code, newPassword string) (*TFAOutcome, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	ctx = ensureRequestID(ctx)

	user, err := e.store.GetLoginByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user == nil {
		return nil, ErrTFALoginInvalid
	}
	if err := statusError(user.Status); err != nil {
		return nil, err
	}

	record, err := e.store.FindTFACode(ctx, user.LoginID, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if record == nil {
		e.metricInc(MetricTFACodeRejected)
		e.emitAudit(ctx, auditEventTFACodeRejected, false, user.LoginID, user.LastAccountID, "", ErrTFACodeInvalid, nil)
		return nil, ErrTFACodeInvalid
	}
	if e.now().After(record.Expiry) {
		e.metricInc(MetricTFACodeRejected)
		e.emitAudit(ctx, auditEventTFACodeRejected, false, user.LoginID, user.LastAccountID, "", ErrTFACodeExpired, nil)
		return nil, ErrTFACodeExpired
	}

	if user.Status == StatusActive {
		return nil, ErrAlreadyVerified
	}

	outcome := &TFAOutcome{}

	if secret := e.ensureTOTPSecret(ctx, user); secret != "" {
		outcome.TOTPSecret = secret
	}

	if newPassword == "" {
		// Leave the code unconsumed so the follow-up submission with a
		// password still matches it.
		outcome.SetPasswordRequired = true
		return outcome, nil
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	// Consuming the code gates the activation. A concurrent verification of
	// the same code loses here and must not also activate.
	consumed, err := e.store.ConsumeTFACode(ctx, record.TFAID, e.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !consumed {
		e.metricInc(MetricTFACodeRejected)
		e.emitAudit(ctx, auditEventTFACodeRejected, false, user.LoginID, user.LastAccountID, "", ErrTFACodeInvalid, nil)
		return nil, ErrTFACodeInvalid
	}

	if err := e.store.SetPassword(ctx, user.LoginID, hash, true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	outcome.Activated = true
	e.metricInc(MetricAccountVerified)
	e.emitAudit(ctx, auditEventAccountVerified, true, user.LoginID, user.LastAccountID, "", nil, nil)

	return outcome, nil
}

// ensureTOTPSecret provisions an authenticator secret for logins that do not
// have one yet and returns the freshly minted secret, empty when the login
// already had one or provisioning failed.
func (e *Engine) ensureTOTPSecret(ctx context.Context, user *LoginAccount) string {
	if user.TFASecret != "" {
		return ""
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		log.Print("authcore: totp secret generation failed for login ", user.LoginID, ": ", err)
		return ""
	}
	qrRef := uuid.NewString()
	if err := e.store.SetTFASecret(ctx, user.LoginID, secret, qrRef); err != nil {
		log.Print("authcore: storing totp secret failed for login ", user.LoginID, ": ", err)
		return ""
	}

	user.TFASecret = secret
	user.TFAQRRef = qrRef
	return secret
}

func (e *Engine) newMailCode() (string, error) {
	digits := e.config.TFA.MailCodeDigits
	bound := uint64(1)
	for i := 0; i < digits; i++ {
		bound *= 10
	}

	for {
		var raw [8]byte
		if _, err := rand.Read(raw[:]); err != nil {
			return "", err
		}
		n := binary.BigEndian.Uint64(raw[:]) % bound
		if n < mailCodeFloor {
			continue
		}
		return fmt.Sprintf("%0*d", digits, n), nil
	}
}

// throttleTFA consults the optional Redis attempt counter. A Redis outage
// fails open with a logged warning; the throttle is a hardening layer, not
// a correctness dependency.
func (e *Engine) throttleTFA(ctx context.Context, loginID int64) error {
	if e.tfaLimiter == nil {
		return nil
	}

	err := e.tfaLimiter.CheckTFA(ctx, loginID)
	if err == nil {
		return nil
	}
	if errors.Is(err, rate.ErrRateLimited) {
		e.metricInc(MetricTFARateLimited)
		e.emitAudit(ctx, auditEventTFARateLimited, false, loginID, 0, "", ErrTFARateLimited, nil)
		return ErrTFARateLimited
	}

	log.Print("authcore: tfa throttle check for login ", loginID, " failed: ", err)
	return nil
}

func (e *Engine) rejectTFACode(ctx context.Context, loginID int64, cause error) error {
	e.bumpTFAThrottle(ctx, loginID)
	e.metricInc(MetricTFACodeRejected)
	e.emitAudit(ctx, auditEventTFACodeRejected, false, loginID, 0, "", cause, nil)
	return cause
}

func (e *Engine) rejectTOTP(ctx context.Context, loginID int64, cause error) error {
	e.bumpTFAThrottle(ctx, loginID)
	e.metricInc(MetricTOTPRejected)
	e.emitAudit(ctx, auditEventTOTPRejected, false, loginID, 0, "", cause, nil)
	return cause
}

func (e *Engine) bumpTFAThrottle(ctx context.Context, loginID int64) {
	if e.tfaLimiter == nil {
		return
	}
	if err := e.tfaLimiter.IncrementTFA(ctx, loginID); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		log.Print("authcore: tfa throttle increment for login ", loginID, " failed: ", err)
	}
}

func (e *Engine) resetTFAThrottle(ctx context.Context, loginID int64) {
	if e.tfaLimiter == nil {
		return
	}
	if err := e.tfaLimiter.ResetTFA(ctx, loginID); err != nil {
		log.Print("authcore: tfa throttle reset for login ", loginID, " failed: ", err)
	}
}

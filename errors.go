package authcore

import "errors"

// Code is the stable string identifier returned to transport callers for a
// policy rejection. Codes are part of the wire contract and never change.
type Code string

const (
	// CodeInvalidUser is an exported constant or variable used by the authentication core.
	CodeInvalidUser Code = "F:INVALID_USER"
	// CodeInvalidPass is an exported constant or variable used by the authentication core.
	CodeInvalidPass Code = "F:INVALID_PASS"
	// CodeInvalidSession is an exported constant or variable used by the authentication core.
	CodeInvalidSession Code = "F:INVALID_SESSION"
	// CodeInactiveUser is an exported constant or variable used by the authentication core.
	CodeInactiveUser Code = "F:INACTIVE_USER"
	// CodeLockedUser is an exported constant or variable used by the authentication core.
	CodeLockedUser Code = "F:LOCKED_USER"
	// CodeDeletedUser is an exported constant or variable used by the authentication core.
	CodeDeletedUser Code = "F:DELETED_USER"
	// CodeNotVerified is an exported constant or variable used by the authentication core.
	CodeNotVerified Code = "F:NOT_VERIFIED"
	// CodeVerified is an exported constant or variable used by the authentication core.
	CodeVerified Code = "F:VERIFIED"
	// CodePassExpired is an exported constant or variable used by the authentication core.
	CodePassExpired Code = "F:PASS_EXPIRED"
	// CodeNewPassMismatch is an exported constant or variable used by the authentication core.
	CodeNewPassMismatch Code = "F:NEW_PASS_MISMATCH"
	// CodeNewPassNoSame is an exported constant or variable used by the authentication core.
	CodeNewPassNoSame Code = "F:NEW_PASS_NO_SAME"
	// CodeNewPassAlreadyUsed is an exported constant or variable used by the authentication core.
	CodeNewPassAlreadyUsed Code = "F:NEW_PASS_ALREADY_USED"
	// CodeInvalidTFACode is an exported constant or variable used by the authentication core.
	CodeInvalidTFACode Code = "F:INVALID_2FA_CODE"
	// CodeExpiredTFACode is an exported constant or variable used by the authentication core.
	CodeExpiredTFACode Code = "F:EXPIRED_2FA_CODE"
	// CodeUnbornTFACode is an exported constant or variable used by the authentication core.
	CodeUnbornTFACode Code = "F:UNBORN_2FA_CODE"
	// CodeInvalidTFALogin is an exported constant or variable used by the authentication core.
	CodeInvalidTFALogin Code = "F:INVALID_2FA_LOGIN"
	// CodeTFARateLimited is an exported constant or variable used by the authentication core.
	CodeTFARateLimited Code = "F:2FA_RATE_LIMITED"
	// CodeTenantNotFound is an exported constant or variable used by the authentication core.
	CodeTenantNotFound Code = "F:TENANT_NOT_FOUND"
	// CodeInvalidOAuthCallback is an exported constant or variable used by the authentication core.
	CodeInvalidOAuthCallback Code = "F:INVALID_OAUTH_CALLBACK"
	// CodeAccessDenied is an exported constant or variable used by the authentication core.
	CodeAccessDenied Code = "F:ACCESS_DENIED"
	// CodeError is an exported constant or variable used by the authentication core.
	CodeError Code = "F:ERROR"
)

var (
	// ErrInvalidUser is an exported constant or variable used by the authentication core.
	ErrInvalidUser = errors.New("unknown login")
	// ErrInvalidPass is an exported constant or variable used by the authentication core.
	ErrInvalidPass = errors.New("invalid password")
	// ErrInvalidSession is an exported constant or variable used by the authentication core.
	ErrInvalidSession = errors.New("session superseded or unknown")
	// ErrInactiveUser is an exported constant or variable used by the authentication core.
	ErrInactiveUser = errors.New("login not activated")
	// ErrLockedUser is an exported constant or variable used by the authentication core.
	ErrLockedUser = errors.New("login locked")
	// ErrDeletedUser is an exported constant or variable used by the authentication core.
	ErrDeletedUser = errors.New("login deleted")
	// ErrNotVerified is an exported constant or variable used by the authentication core.
	ErrNotVerified = errors.New("login not verified")
	// ErrAlreadyVerified is an exported constant or variable used by the authentication core.
	ErrAlreadyVerified = errors.New("login already verified")
	// ErrPassExpired is an exported constant or variable used by the authentication core.
	ErrPassExpired = errors.New("password expired")
	// ErrNewPassMismatch is an exported constant or variable used by the authentication core.
	ErrNewPassMismatch = errors.New("new password confirmation mismatch")
	// ErrNewPassNoSame is an exported constant or variable used by the authentication core.
	ErrNewPassNoSame = errors.New("new password must differ from current password")
	// ErrNewPassAlreadyUsed is an exported constant or variable used by the authentication core.
	ErrNewPassAlreadyUsed = errors.New("new password present in history")
	// ErrTFACodeInvalid is an exported constant or variable used by the authentication core.
	ErrTFACodeInvalid = errors.New("invalid 2fa code")
	// ErrTFACodeExpired is an exported constant or variable used by the authentication core.
	ErrTFACodeExpired = errors.New("expired 2fa code")
	// ErrTFACodeUnborn is an exported constant or variable used by the authentication core.
	ErrTFACodeUnborn = errors.New("2fa code not yet valid")
	// ErrTFALoginInvalid is an exported constant or variable used by the authentication core.
	ErrTFALoginInvalid = errors.New("no login for 2fa verification")
	// ErrTFARateLimited is an exported constant or variable used by the authentication core.
	ErrTFARateLimited = errors.New("2fa attempts rate limited")
	// ErrTenantNotFound is an exported constant or variable used by the authentication core.
	ErrTenantNotFound = errors.New("tenant account not found")
	// ErrInvalidOAuthCallback is an exported constant or variable used by the authentication core.
	ErrInvalidOAuthCallback = errors.New("oauth callback pair not linked")
	// ErrAccessDenied is an exported constant or variable used by the authentication core.
	ErrAccessDenied = errors.New("login not linked to tenant account")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication core.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication core.
	ErrEngineNotReady = errors.New("engine not initialized")
)

var errCodes = map[error]Code{
	ErrInvalidUser:          CodeInvalidUser,
	ErrInvalidPass:          CodeInvalidPass,
	ErrInvalidSession:       CodeInvalidSession,
	ErrInactiveUser:         CodeInactiveUser,
	ErrLockedUser:           CodeLockedUser,
	ErrDeletedUser:          CodeDeletedUser,
	ErrNotVerified:          CodeNotVerified,
	ErrAlreadyVerified:      CodeVerified,
	ErrPassExpired:          CodePassExpired,
	ErrNewPassMismatch:      CodeNewPassMismatch,
	ErrNewPassNoSame:        CodeNewPassNoSame,
	ErrNewPassAlreadyUsed:   CodeNewPassAlreadyUsed,
	ErrTFACodeInvalid:       CodeInvalidTFACode,
	ErrTFACodeExpired:       CodeExpiredTFACode,
	ErrTFACodeUnborn:        CodeUnbornTFACode,
	ErrTFALoginInvalid:      CodeInvalidTFALogin,
	ErrTFARateLimited:       CodeTFARateLimited,
	ErrTenantNotFound:       CodeTenantNotFound,
	ErrInvalidOAuthCallback: CodeInvalidOAuthCallback,
	ErrAccessDenied:         CodeAccessDenied,
}

// CodeOf maps an engine error to its stable wire code. Unknown errors,
// including collaborator failures, map to [CodeError]; nil maps to the empty
// code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for sentinel, code := range errCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeError
}

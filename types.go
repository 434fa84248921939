package authcore

import (
	"context"
	"time"
)

// LoginStatus represents the lifecycle state of a login account. The numeric
// values are part of the storage contract and mirror the master schema.
type LoginStatus int

const (
	// StatusNotVerified is an exported constant or variable used by the authentication core.
	StatusNotVerified LoginStatus = -1
	// StatusVerified is an exported constant or variable used by the authentication core.
	StatusVerified LoginStatus = 0
	// StatusActive is an exported constant or variable used by the authentication core.
	StatusActive LoginStatus = 1
	// StatusLocked is an exported constant or variable used by the authentication core.
	StatusLocked LoginStatus = 9
	// StatusDeleted is an exported constant or variable used by the authentication core.
	StatusDeleted LoginStatus = 99
)

// LoginTypePassword is an exported constant or variable used by the authentication core.
// It marks logins that authenticate with a stored password rather than an
// external identity provider; the numeric value is part of the storage
// contract.
const LoginTypePassword = 1

// LoginAccount is the master identity record owned by [CredentialStore].
// The engine never mutates it in place; all mutations go through store
// operations so their atomicity guarantees hold.
type LoginAccount struct {
	LoginID           int64
	Email             string
	FirstName         string
	LastName          string
	LoginType         int
	PasswordHash      string
	Status            LoginStatus
	LastSessionID     string
	LastLoginAttempts int
	LastAccountID     int64
	LastPassChange    time.Time
	TFASecret         string
	TFAQRRef          string
	Theme             string
}

// TenantAccount is a tenant row as read from master storage. Read-only from
// the engine's perspective.
type TenantAccount struct {
	AccountID       int64
	Name            string
	Code            string
	Currency        string
	EncryptedSecret string
	DBServer        string
	DBName          string
	Banner          string
}

// LinkedAccount is one tenant a master login may switch to.
type LinkedAccount struct {
	AccountID int64
	Code      string
	Name      string
}

// TFACode is a mailed one-time code record. Used stays nil until the code is
// consumed; consumption happens exactly once.
type TFACode struct {
	TFAID   int64
	LoginID int64
	Code    string
	Created time.Time
	Expiry  time.Time
	Used    *time.Time
}

// AuditRecord describes one login-audit row. Success rows (empty Outcome)
// also promote the session id and reset the attempt counter; INVALID_PASS
// rows with CountAttempt set carry the atomic increment-and-maybe-lock.
type AuditRecord struct {
	LoginID   int64
	IP        string
	RequestID string
	SessionID string
	Outcome   Code
	TenantID  int64

	// CountAttempt requests the atomic attempt increment with a conditional
	// transition to StatusLocked once the updated counter reaches
	// LockThreshold. Only meaningful on failure rows.
	CountAttempt  bool
	LockThreshold int
}

// NewLogin is the input for [CredentialStore.CreateLogin].
type NewLogin struct {
	Email        string
	FirstName    string
	LastName     string
	LoginType    int
	PasswordHash string
	Status       LoginStatus
	AccountID    int64
	TFASecret    string
	TFAQRRef     string
}

// CredentialStore is the primary collaborator contract: master login records,
// password history, login audit, TFA-code records, and tenant rows. Lookups
// return (nil, nil) when no row exists; errors are reserved for storage
// failures.
//
// RecordLoginFailure and ConsumeTFACode MUST be atomic at the storage layer:
// two concurrent failed logins must not both observe a stale attempt count,
// and two verifications of the same code must not both succeed.
type CredentialStore interface {
	GetLoginByEmail(ctx context.Context, email string) (*LoginAccount, error)
	GetLoginByID(ctx context.Context, loginID int64) (*LoginAccount, error)

	// RecordLoginSuccess appends the success audit row and, in the same
	// atomic unit, stores the new session id, the caller IP and request id,
	// and resets the attempt counter to zero.
	RecordLoginSuccess(ctx context.Context, rec AuditRecord) error

	// RecordLoginFailure appends a failure audit row. When rec.CountAttempt
	// is set it atomically increments the attempt counter, transitioning the
	// account to StatusLocked once the updated value reaches
	// rec.LockThreshold. Returns the updated counter and whether the row
	// transitioned the account.
	RecordLoginFailure(ctx context.Context, rec AuditRecord) (attempts int, locked bool, err error)

	// ListPasswordHistory returns stored history hashes for the login, most
	// recent first. The engine verifies the candidate plaintext against each
	// entry; hash-string equality is useless once hashes are salted.
	ListPasswordHistory(ctx context.Context, loginID int64, limit int) ([]string, error)

	// SetPassword stores the new hash, stamps lastPassChange, appends the
	// history entry, and (when activate is set) promotes the status to
	// StatusActive, all as one transaction.
	SetPassword(ctx context.Context, loginID int64, passwordHash string, activate bool) error

	// UpgradePasswordHash rewrites the stored hash in place after a legacy
	// digest verified. It must not touch lastPassChange or the history table.
	UpgradePasswordHash(ctx context.Context, loginID int64, passwordHash string) error

	SetTFASecret(ctx context.Context, loginID int64, secret, qrRef string) error
	CreateTFACode(ctx context.Context, code *TFACode) error

	// FindTFACode returns the unconsumed record matching the code, nil when
	// none exists (an already-used code is treated as not found).
	FindTFACode(ctx context.Context, loginID int64, code string) (*TFACode, error)

	// ConsumeTFACode stamps the used timestamp exactly once. Returns false
	// when the record was already consumed.
	ConsumeTFACode(ctx context.Context, tfaID int64, usedAt time.Time) (bool, error)

	GetTenantAccount(ctx context.Context, accountID int64) (*TenantAccount, error)
	ListLinkedAccounts(ctx context.Context, loginID int64) ([]LinkedAccount, error)
	IsLinked(ctx context.Context, accountID, loginID int64) (bool, error)

	CreateLogin(ctx context.Context, input NewLogin) (int64, error)

	// LinkLogin is idempotent: linking an already-linked pair is a no-op.
	LinkLogin(ctx context.Context, accountID, loginID int64) error

	SetActiveAccount(ctx context.Context, loginID, accountID int64) error

	// ResetLogin forces the account back to StatusNotVerified with the given
	// temporary password hash, clears the TFA secret, and zeroes the attempt
	// counter.
	ResetLogin(ctx context.Context, loginID int64, passwordHash string) error
}

// SecretCodec encrypts and decrypts at-rest tenant database credentials.
// Key material is caller-chosen; the engine passes the tenant code.
type SecretCodec interface {
	Encrypt(plaintext, keyMaterial string) (string, error)
	Decrypt(ciphertext, keyMaterial string) (string, error)
}

// MailMessage is the outbound payload handed to a [Mailer].
type MailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// Mailer delivers outbound mail. Delivery is fire-and-forget from the
// engine's perspective: errors are logged, never surfaced as validation
// failures.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// LoginRequest is the tagged input to [Engine.Validate]: either fresh
// [Credentials] or a previously issued [SessionToken].
type LoginRequest interface {
	loginEmail() string
}

// Credentials is a fresh email+password login attempt.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) loginEmail() string { return c.Email }

// SessionToken re-validates a previously issued session. SessionID must
// match the account's stored last session id; a mismatch means a newer login
// superseded this session.
type SessionToken struct {
	Email     string
	SessionID string
}

func (t SessionToken) loginEmail() string { return t.Email }

// TenantConnection names the tenant-scoped connection pool and carries the
// plaintext connection parameters for it.
type TenantConnection struct {
	PoolName string
	Server   string
	Database string
	User     string
	Password string
}

// SessionDescriptor is returned to the transport layer on successful
// validation.
type SessionDescriptor struct {
	SessionID   string
	LoginID     int64
	Email       string
	DisplayName string
	LoginType   int

	AccountID   int64
	AccountName string
	AccountCode string
	Currency    string
	Country     string

	Theme       string
	Status      LoginStatus
	RequireTFA  bool
	TFAEnrolled bool
	Banner      string

	Connection TenantConnection
}

// Registration is returned by [Engine.GetOrCreateLogin].
type Registration struct {
	LoginID int64
	IsNew   bool
}

// TFAOutcome is returned by [Engine.VerifyViaTFA].
type TFAOutcome struct {
	// Activated reports a first-time verification that set the password and
	// promoted the account to StatusActive.
	Activated bool

	// SetPasswordRequired prompts the caller to collect a password; returned
	// when the link is revisited without a password payload.
	SetPasswordRequired bool

	// TOTPSecret is the base32 authenticator secret, present when this call
	// provisioned one.
	TOTPSecret string
}

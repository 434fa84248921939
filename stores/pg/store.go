// Package pg implements the credential store contract on PostgreSQL using
// pgx. One Store serves the master database; tenant databases are reached
// through the connection parameters the engine resolves, never from here.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stratumhq/authcore"
)

// Store is the PostgreSQL-backed [authcore.CredentialStore].
type Store struct {
	pool *pgxpool.Pool
}

var _ authcore.CredentialStore = (*Store)(nil)

// New creates a [Store] on the given pool. The pool's lifecycle belongs to
// the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const loginColumns = `login_id, email, first_name, last_name, login_type,
	password, status, last_session_id, last_login_attempts, last_account_id,
	last_pass_change, tfa_secret, tfa_qr_ref, theme`

func scanLogin(row pgx.Row) (*authcore.LoginAccount, error) {
	var (
		user           authcore.LoginAccount
		status         int
		lastPassChange *time.Time
	)
	err := row.Scan(
		&user.LoginID, &user.Email, &user.FirstName, &user.LastName,
		&user.LoginType, &user.PasswordHash, &status, &user.LastSessionID,
		&user.LastLoginAttempts, &user.LastAccountID, &lastPassChange,
		&user.TFASecret, &user.TFAQRRef, &user.Theme,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan login: %w", err)
	}

	user.Status = authcore.LoginStatus(status)
	if lastPassChange != nil {
		user.LastPassChange = *lastPassChange
	}
	return &user, nil
}

// GetLoginByEmail describes the getloginbyemail operation and its observable behavior.
//
// GetLoginByEmail may return an error when input validation, dependency calls, or security checks fail.
// GetLoginByEmail does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetLoginByEmail(ctx context.Context, email string) (*authcore.LoginAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+loginColumns+` FROM account_login WHERE lower(email) = lower($1)`,
		email,
	)
	return scanLogin(row)
}

// GetLoginByID describes the getloginbyid operation and its observable behavior.
//
// GetLoginByID may return an error when input validation, dependency calls, or security checks fail.
// GetLoginByID does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetLoginByID(ctx context.Context, loginID int64) (*authcore.LoginAccount, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+loginColumns+` FROM account_login WHERE login_id = $1`,
		loginID,
	)
	return scanLogin(row)
}

// RecordLoginSuccess describes the recordloginsuccess operation and its observable behavior.
//
// RecordLoginSuccess may return an error when input validation, dependency calls, or security checks fail.
// RecordLoginSuccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RecordLoginSuccess(ctx context.Context, rec authcore.AuditRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAudit(ctx, tx, rec); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE account_login
		 SET last_session_id = $2, last_login_attempts = 0,
		     last_ip = $3, last_request_id = $4
		 WHERE login_id = $1`,
		rec.LoginID, rec.SessionID, rec.IP, rec.RequestID,
	)
	if err != nil {
		return fmt.Errorf("promote session: %w", err)
	}

	return tx.Commit(ctx)
}

// RecordLoginFailure describes the recordloginfailure operation and its observable behavior.
//
// RecordLoginFailure may return an error when input validation, dependency calls, or security checks fail.
// RecordLoginFailure does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) RecordLoginFailure(ctx context.Context, rec authcore.AuditRecord) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAudit(ctx, tx, rec); err != nil {
		return 0, false, err
	}

	attempts := 0
	locked := false
	if rec.CountAttempt {
		// The increment and the lock transition happen in one statement so
		// concurrent failures cannot both observe a pre-threshold counter.
		var status int
		err := tx.QueryRow(ctx,
			`UPDATE account_login
			 SET last_login_attempts = last_login_attempts + 1,
			     status = CASE
			         WHEN last_login_attempts + 1 >= $2 THEN $3
			         ELSE status
			     END
			 WHERE login_id = $1
			 RETURNING last_login_attempts, status`,
			rec.LoginID, rec.LockThreshold, int(authcore.StatusLocked),
		).Scan(&attempts, &status)
		if err != nil {
			return 0, false, fmt.Errorf("count attempt: %w", err)
		}
		locked = authcore.LoginStatus(status) == authcore.StatusLocked
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit: %w", err)
	}
	return attempts, locked, nil
}

func insertAudit(ctx context.Context, tx pgx.Tx, rec authcore.AuditRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO account_login_audit
		     (login_id, ip, request_id, session_id, outcome, account_id, date_created)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		rec.LoginID, rec.IP, rec.RequestID, rec.SessionID, string(rec.Outcome), rec.TenantID,
	)
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// ListPasswordHistory describes the listpasswordhistory operation and its observable behavior.
//
// ListPasswordHistory may return an error when input validation, dependency calls, or security checks fail.
// ListPasswordHistory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListPasswordHistory(ctx context.Context, loginID int64, limit int) ([]string, error) {
	query := `SELECT password FROM account_login_pass_history
	          WHERE login_id = $1 ORDER BY date_created DESC`
	args := []any{loginID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// SetPassword describes the setpassword operation and its observable behavior.
//
// SetPassword may return an error when input validation, dependency calls, or security checks fail.
// SetPassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetPassword(ctx context.Context, loginID int64, passwordHash string, activate bool) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if activate {
		_, err = tx.Exec(ctx,
			`UPDATE account_login
			 SET password = $2, last_pass_change = now(), status = $3,
			     last_login_attempts = 0
			 WHERE login_id = $1`,
			loginID, passwordHash, int(authcore.StatusActive),
		)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE account_login
			 SET password = $2, last_pass_change = now()
			 WHERE login_id = $1`,
			loginID, passwordHash,
		)
	}
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO account_login_pass_history (login_id, password, date_created)
		 VALUES ($1, $2, now())`,
		loginID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	return tx.Commit(ctx)
}

// UpgradePasswordHash describes the upgradepasswordhash operation and its observable behavior.
//
// UpgradePasswordHash may return an error when input validation, dependency calls, or security checks fail.
// UpgradePasswordHash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpgradePasswordHash(ctx context.Context, loginID int64, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE account_login SET password = $2 WHERE login_id = $1`,
		loginID, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("upgrade hash: %w", err)
	}
	return nil
}

// SetTFASecret describes the settfasecret operation and its observable behavior.
//
// SetTFASecret may return an error when input validation, dependency calls, or security checks fail.
// SetTFASecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetTFASecret(ctx context.Context, loginID int64, secret, qrRef string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE account_login SET tfa_secret = $2, tfa_qr_ref = $3 WHERE login_id = $1`,
		loginID, secret, qrRef,
	)
	if err != nil {
		return fmt.Errorf("set tfa secret: %w", err)
	}
	return nil
}

// CreateTFACode describes the createtfacode operation and its observable behavior.
//
// CreateTFACode may return an error when input validation, dependency calls, or security checks fail.
// CreateTFACode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateTFACode(ctx context.Context, code *authcore.TFACode) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO account_login_tfa (login_id, code, date_created, date_expiry)
		 VALUES ($1, $2, $3, $4)
		 RETURNING tfa_id`,
		code.LoginID, code.Code, code.Created, code.Expiry,
	).Scan(&code.TFAID)
	if err != nil {
		return fmt.Errorf("insert tfa code: %w", err)
	}
	return nil
}

// FindTFACode describes the findtfacode operation and its observable behavior.
//
// FindTFACode may return an error when input validation, dependency calls, or security checks fail.
// FindTFACode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindTFACode(ctx context.Context, loginID int64, code string) (*authcore.TFACode, error) {
	var rec authcore.TFACode
	err := s.pool.QueryRow(ctx,
		`SELECT tfa_id, login_id, code, date_created, date_expiry, date_used
		 FROM account_login_tfa
		 WHERE login_id = $1 AND code = $2 AND date_used IS NULL
		 ORDER BY date_created DESC
		 LIMIT 1`,
		loginID, code,
	).Scan(&rec.TFAID, &rec.LoginID, &rec.Code, &rec.Created, &rec.Expiry, &rec.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find tfa code: %w", err)
	}
	return &rec, nil
}

// ConsumeTFACode describes the consumetfacode operation and its observable behavior.
//
// ConsumeTFACode may return an error when input validation, dependency calls, or security checks fail.
// ConsumeTFACode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ConsumeTFACode(ctx context.Context, tfaID int64, usedAt time.Time) (bool, error) {
	// The date_used guard makes consumption first-writer-wins; the loser of
	// a race sees zero rows affected.
	tag, err := s.pool.Exec(ctx,
		`UPDATE account_login_tfa SET date_used = $2
		 WHERE tfa_id = $1 AND date_used IS NULL`,
		tfaID, usedAt,
	)
	if err != nil {
		return false, fmt.Errorf("consume tfa code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetTenantAccount describes the gettenantaccount operation and its observable behavior.
//
// GetTenantAccount may return an error when input validation, dependency calls, or security checks fail.
// GetTenantAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) GetTenantAccount(ctx context.Context, accountID int64) (*authcore.TenantAccount, error) {
	var tenant authcore.TenantAccount
	err := s.pool.QueryRow(ctx,
		`SELECT account_id, name, code, currency, secret, db_server, db_name, banner
		 FROM account WHERE account_id = $1`,
		accountID,
	).Scan(
		&tenant.AccountID, &tenant.Name, &tenant.Code, &tenant.Currency,
		&tenant.EncryptedSecret, &tenant.DBServer, &tenant.DBName, &tenant.Banner,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &tenant, nil
}

// ListLinkedAccounts describes the listlinkedaccounts operation and its observable behavior.
//
// ListLinkedAccounts may return an error when input validation, dependency calls, or security checks fail.
// ListLinkedAccounts does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ListLinkedAccounts(ctx context.Context, loginID int64) ([]authcore.LinkedAccount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.account_id, a.code, a.name
		 FROM account_logins al
		 JOIN account a ON a.account_id = al.account_id
		 WHERE al.login_id = $1
		 ORDER BY a.name`,
		loginID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var linked []authcore.LinkedAccount
	for rows.Next() {
		var la authcore.LinkedAccount
		if err := rows.Scan(&la.AccountID, &la.Code, &la.Name); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		linked = append(linked, la)
	}
	return linked, rows.Err()
}

// IsLinked describes the islinked operation and its observable behavior.
//
// IsLinked may return an error when input validation, dependency calls, or security checks fail.
// IsLinked does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) IsLinked(ctx context.Context, accountID, loginID int64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM account_logins WHERE account_id = $1 AND login_id = $2
		 )`,
		accountID, loginID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check link: %w", err)
	}
	return exists, nil
}

// CreateLogin describes the createlogin operation and its observable behavior.
//
// CreateLogin may return an error when input validation, dependency calls, or security checks fail.
// CreateLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) CreateLogin(ctx context.Context, input authcore.NewLogin) (int64, error) {
	var loginID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO account_login
		     (email, first_name, last_name, login_type, password, status,
		      last_account_id, last_pass_change, tfa_secret, tfa_qr_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), $8, $9)
		 RETURNING login_id`,
		input.Email, input.FirstName, input.LastName, input.LoginType,
		input.PasswordHash, int(input.Status), input.AccountID,
		input.TFASecret, input.TFAQRRef,
	).Scan(&loginID)
	if err != nil {
		return 0, fmt.Errorf("insert login: %w", err)
	}
	return loginID, nil
}

// LinkLogin describes the linklogin operation and its observable behavior.
//
// LinkLogin may return an error when input validation, dependency calls, or security checks fail.
// LinkLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) LinkLogin(ctx context.Context, accountID, loginID int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_logins (account_id, login_id)
		 VALUES ($1, $2)
		 ON CONFLICT (account_id, login_id) DO NOTHING`,
		accountID, loginID,
	)
	if err != nil {
		return fmt.Errorf("link login: %w", err)
	}
	return nil
}

// SetActiveAccount describes the setactiveaccount operation and its observable behavior.
//
// SetActiveAccount may return an error when input validation, dependency calls, or security checks fail.
// SetActiveAccount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SetActiveAccount(ctx context.Context, loginID, accountID int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE account_login SET last_account_id = $2 WHERE login_id = $1`,
		loginID, accountID,
	)
	if err != nil {
		return fmt.Errorf("set active account: %w", err)
	}
	return nil
}

// ResetLogin describes the resetlogin operation and its observable behavior.
//
// ResetLogin may return an error when input validation, dependency calls, or security checks fail.
// ResetLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) ResetLogin(ctx context.Context, loginID int64, passwordHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE account_login
		 SET status = $2, password = $3, last_pass_change = now(),
		     last_login_attempts = 0, tfa_secret = '', tfa_qr_ref = '',
		     last_session_id = ''
		 WHERE login_id = $1`,
		loginID, int(authcore.StatusNotVerified), passwordHash,
	)
	if err != nil {
		return fmt.Errorf("reset login: %w", err)
	}
	return nil
}

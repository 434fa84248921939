package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stratumhq/authcore/internal/policy"
	"github.com/stratumhq/authcore/password"
)

type mockStore struct {
	mu sync.Mutex

	logins  map[int64]*LoginAccount
	history map[int64][]string
	tfa     []*TFACode
	tenants map[int64]*TenantAccount
	links   map[[2]int64]bool

	nextLoginID int64
	nextTFAID   int64

	failures  []AuditRecord
	successes []AuditRecord

	getErr     error
	failureErr error
	setPassErr error

	// consumeUsed makes ConsumeTFACode report the record as already
	// consumed, as seen by the loser of a concurrent verification.
	consumeUsed bool

	getByEmailCalls    int
	getByIDCalls       int
	successCalls       int
	failureCalls       int
	setPasswordCalls   int
	upgradeCalls       int
	setTFASecretCalls  int
	createTFACodeCalls int
	consumeCalls       int
	createLoginCalls   int
	linkCalls          int
	resetCalls         int
}

func newMockStore() *mockStore {
	return &mockStore{
		logins:      map[int64]*LoginAccount{},
		history:     map[int64][]string{},
		tenants:     map[int64]*TenantAccount{},
		links:       map[[2]int64]bool{},
		nextLoginID: 1,
		nextTFAID:   1,
	}
}

func (m *mockStore) addLogin(user LoginAccount) *LoginAccount {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.LoginID == 0 {
		user.LoginID = m.nextLoginID
		m.nextLoginID++
	} else if user.LoginID >= m.nextLoginID {
		m.nextLoginID = user.LoginID + 1
	}
	stored := user
	m.logins[stored.LoginID] = &stored
	return &stored
}

func (m *mockStore) addTenant(tenant TenantAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := tenant
	m.tenants[stored.AccountID] = &stored
}

func (m *mockStore) link(accountID, loginID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[[2]int64{accountID, loginID}] = true
}

func (m *mockStore) login(loginID int64) LoginAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.logins[loginID]
}

func (m *mockStore) GetLoginByEmail(_ context.Context, email string) (*LoginAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByEmailCalls++

	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.logins {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetLoginByID(_ context.Context, loginID int64) (*LoginAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++

	if m.getErr != nil {
		return nil, m.getErr
	}
	user, ok := m.logins[loginID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *mockStore) RecordLoginSuccess(_ context.Context, rec AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successCalls++
	m.successes = append(m.successes, rec)

	if user, ok := m.logins[rec.LoginID]; ok {
		user.LastSessionID = rec.SessionID
		user.LastLoginAttempts = 0
	}
	return nil
}

func (m *mockStore) RecordLoginFailure(_ context.Context, rec AuditRecord) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCalls++

	if m.failureErr != nil {
		return 0, false, m.failureErr
	}
	m.failures = append(m.failures, rec)

	user, ok := m.logins[rec.LoginID]
	if !ok {
		return 0, false, nil
	}
	if !rec.CountAttempt {
		return user.LastLoginAttempts, false, nil
	}

	user.LastLoginAttempts++
	locked := policy.ShouldLock(user.LastLoginAttempts, rec.LockThreshold)
	if locked {
		user.Status = StatusLocked
	}
	return user.LastLoginAttempts, locked, nil
}

func (m *mockStore) ListPasswordHistory(_ context.Context, loginID int64, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hashes := m.history[loginID]
	if limit > 0 && limit < len(hashes) {
		hashes = hashes[:limit]
	}
	out := make([]string, len(hashes))
	copy(out, hashes)
	return out, nil
}

func (m *mockStore) SetPassword(_ context.Context, loginID int64, passwordHash string, activate bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPasswordCalls++

	if m.setPassErr != nil {
		return m.setPassErr
	}
	user, ok := m.logins[loginID]
	if !ok {
		return nil
	}
	user.PasswordHash = passwordHash
	user.LastPassChange = time.Now()
	if activate {
		user.Status = StatusActive
		user.LastLoginAttempts = 0
	}
	m.history[loginID] = append([]string{passwordHash}, m.history[loginID]...)
	return nil
}

func (m *mockStore) UpgradePasswordHash(_ context.Context, loginID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upgradeCalls++

	if user, ok := m.logins[loginID]; ok {
		user.PasswordHash = passwordHash
	}
	return nil
}

func (m *mockStore) SetTFASecret(_ context.Context, loginID int64, secret, qrRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setTFASecretCalls++

	if user, ok := m.logins[loginID]; ok {
		user.TFASecret = secret
		user.TFAQRRef = qrRef
	}
	return nil
}

func (m *mockStore) CreateTFACode(_ context.Context, code *TFACode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createTFACodeCalls++

	code.TFAID = m.nextTFAID
	m.nextTFAID++
	stored := *code
	m.tfa = append(m.tfa, &stored)
	return nil
}

func (m *mockStore) FindTFACode(_ context.Context, loginID int64, code string) (*TFACode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.tfa) - 1; i >= 0; i-- {
		rec := m.tfa[i]
		if rec.LoginID == loginID && rec.Code == code && rec.Used == nil {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ConsumeTFACode(_ context.Context, tfaID int64, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++

	if m.consumeUsed {
		return false, nil
	}

	for _, rec := range m.tfa {
		if rec.TFAID == tfaID {
			if rec.Used != nil {
				return false, nil
			}
			stamped := usedAt
			rec.Used = &stamped
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) GetTenantAccount(_ context.Context, accountID int64) (*TenantAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant, ok := m.tenants[accountID]
	if !ok {
		return nil, nil
	}
	copied := *tenant
	return &copied, nil
}

func (m *mockStore) ListLinkedAccounts(_ context.Context, loginID int64) ([]LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var linked []LinkedAccount
	for key := range m.links {
		if key[1] != loginID {
			continue
		}
		la := LinkedAccount{AccountID: key[0]}
		if tenant, ok := m.tenants[key[0]]; ok {
			la.Code = tenant.Code
			la.Name = tenant.Name
		}
		linked = append(linked, la)
	}
	return linked, nil
}

func (m *mockStore) IsLinked(_ context.Context, accountID, loginID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[[2]int64{accountID, loginID}], nil
}

func (m *mockStore) CreateLogin(_ context.Context, input NewLogin) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createLoginCalls++

	loginID := m.nextLoginID
	m.nextLoginID++
	m.logins[loginID] = &LoginAccount{
		LoginID:        loginID,
		Email:          input.Email,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		LoginType:      input.LoginType,
		PasswordHash:   input.PasswordHash,
		Status:         input.Status,
		LastAccountID:  input.AccountID,
		LastPassChange: time.Now(),
		TFASecret:      input.TFASecret,
		TFAQRRef:       input.TFAQRRef,
	}
	return loginID, nil
}

func (m *mockStore) LinkLogin(_ context.Context, accountID, loginID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkCalls++
	m.links[[2]int64{accountID, loginID}] = true
	return nil
}

func (m *mockStore) SetActiveAccount(_ context.Context, loginID, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.logins[loginID]; ok {
		user.LastAccountID = accountID
	}
	return nil
}

func (m *mockStore) ResetLogin(_ context.Context, loginID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCalls++

	if user, ok := m.logins[loginID]; ok {
		user.Status = StatusNotVerified
		user.PasswordHash = passwordHash
		user.LastLoginAttempts = 0
		user.TFASecret = ""
		user.TFAQRRef = ""
		user.LastSessionID = ""
		user.LastPassChange = time.Now()
	}
	return nil
}

// plainHasher makes password assertions deterministic: hashes are
// "plain:<password>". Legacy digests still route through the real verifier
// so upgrade paths stay testable.
type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) {
	return "plain:" + pw, nil
}

func (plainHasher) Verify(pw, encoded string) (bool, error) {
	if password.IsLegacyDigest(encoded) {
		return password.VerifyLegacy(pw, encoded), nil
	}
	return encoded == "plain:"+pw, nil
}

func (plainHasher) NeedsUpgrade(encoded string) (bool, error) {
	return password.IsLegacyDigest(encoded), nil
}

type staticCodec struct{}

func (staticCodec) Encrypt(plaintext, keyMaterial string) (string, error) {
	return "enc:" + keyMaterial + ":" + plaintext, nil
}

func (staticCodec) Decrypt(ciphertext, keyMaterial string) (string, error) {
	prefix := "enc:" + keyMaterial + ":"
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", ErrTenantNotFound
	}
	return strings.TrimPrefix(ciphertext, prefix), nil
}

type mockMailer struct {
	sent chan MailMessage
	err  error
}

func newMockMailer() *mockMailer {
	return &mockMailer{sent: make(chan MailMessage, 4)}
}

func (m *mockMailer) Send(_ context.Context, msg MailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent <- msg
	return nil
}

func (m *mockMailer) waitForMail(t *testing.T) MailMessage {
	t.Helper()
	select {
	case msg := <-m.sent:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("expected a mail to be sent")
		return MailMessage{}
	}
}

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store *mockStore, mutate ...func(*Builder)) *Engine {
	t.Helper()

	builder := New().
		WithStore(store).
		WithSecretCodec(staticCodec{}).
		WithHasher(plainHasher{})
	for _, fn := range mutate {
		fn(builder)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	t.Cleanup(engine.Close)

	engine.now = func() time.Time { return testNow }
	return engine
}

package password

// Hasher is the hashing contract consumed by the engine. Implementations
// must be safe for concurrent use.
type Hasher interface {
	// Hash produces an encoded hash for storage.
	Hash(password string) (string, error)

	// Verify reports whether password matches the stored encoded hash.
	Verify(password, encodedHash string) (bool, error)

	// NeedsUpgrade reports whether the stored hash should be re-hashed with
	// the current algorithm after a successful verification.
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Migrating is a [Hasher] that writes Argon2id and optionally verifies
// legacy MD5 digests during the migration window.
type Migrating struct {
	argon2      *Argon2
	allowLegacy bool
}

// NewMigrating wraps an [Argon2] hasher with legacy verification support.
func NewMigrating(a *Argon2, allowLegacy bool) *Migrating {
	return &Migrating{
		argon2:      a,
		allowLegacy: allowLegacy,
	}
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when input validation, dependency calls, or security checks fail.
// Hash does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Migrating) Hash(password string) (string, error) {
	return m.argon2.Hash(password)
}

// Verify describes the verify operation and its observable behavior.
//
// Verify may return an error when input validation, dependency calls, or security checks fail.
// Verify does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Migrating) Verify(password, encodedHash string) (bool, error) {
	if m.allowLegacy && IsLegacyDigest(encodedHash) {
		return VerifyLegacy(password, encodedHash), nil
	}
	return m.argon2.Verify(password, encodedHash)
}

// NeedsUpgrade reports true for legacy digests and for Argon2id hashes
// produced with weaker parameters than currently configured.
func (m *Migrating) NeedsUpgrade(encodedHash string) (bool, error) {
	if IsLegacyDigest(encodedHash) {
		return true, nil
	}
	return m.argon2.NeedsUpgrade(encodedHash)
}

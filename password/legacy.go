package password

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// LegacyDigest computes the historical single-round unsalted MD5 hex digest.
// Retained only to verify rows written before the Argon2id migration; never
// use it for new hashes.
func LegacyDigest(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// IsLegacyDigest reports whether a stored hash is in the legacy format: a
// bare 32-character lowercase hex string with no PHC prefix.
func IsLegacyDigest(encodedHash string) bool {
	if len(encodedHash) != 32 || strings.HasPrefix(encodedHash, "$") {
		return false
	}
	for _, r := range encodedHash {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}

// VerifyLegacy reports whether password matches a legacy digest.
func VerifyLegacy(password, encodedHash string) bool {
	computed := LegacyDigest(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(encodedHash)) == 1
}

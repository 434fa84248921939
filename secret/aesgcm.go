// Package secret implements the at-rest codec for tenant database
// credentials: AES-256-GCM with a per-tenant key derived from a master key
// and caller-supplied key material.
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// AESGCM derives one AES-256 key per keyMaterial value from the master key,
// so a ciphertext copied between tenant rows never decrypts.
type AESGCM struct {
	masterKey []byte
}

// NewAESGCM creates a codec around masterKey. The key is opaque bytes; any
// non-empty value works because derivation hashes it anyway.
func NewAESGCM(masterKey string) (*AESGCM, error) {
	if masterKey == "" {
		return nil, errors.New("master key must not be empty")
	}
	return &AESGCM{masterKey: []byte(masterKey)}, nil
}

// Encrypt seals plaintext under the key derived for keyMaterial and returns
// base64(nonce || ciphertext).
func (c *AESGCM) Encrypt(plaintext, keyMaterial string) (string, error) {
	aead, err := c.aead(keyMaterial)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses [AESGCM.Encrypt]. A wrong keyMaterial fails
// authentication rather than producing garbage.
func (c *AESGCM) Decrypt(ciphertext, keyMaterial string) (string, error) {
	aead, err := c.aead(keyMaterial)
	if err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("malformed ciphertext: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("ciphertext shorter than nonce")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", errors.New("decryption failed")
	}
	return string(plain), nil
}

func (c *AESGCM) aead(keyMaterial string) (cipher.AEAD, error) {
	h := sha256.New()
	h.Write(c.masterKey)
	h.Write([]byte{0})
	h.Write([]byte(keyMaterial))
	key := h.Sum(nil)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

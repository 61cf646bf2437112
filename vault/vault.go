// Package vault encrypts provider credentials at rest. One opaque blob holds
// nonce, ciphertext and authentication tag, so storage needs a single text
// column and no nonce bookkeeping.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/ledgerlink_backend/config"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrKeyMissing means no usable master key is configured. Fatal for the
	// secret; there is no fallback key.
	ErrKeyMissing = errors.New("vault master key not configured")

	// ErrIntegrity means the authentication tag did not verify: the blob was
	// tampered with, corrupted, or encrypted under a different key. Must never
	// be downgraded to a default value.
	ErrIntegrity = errors.New("vault ciphertext failed integrity check")

	ErrBadKeyEncoding = errors.New("VAULT_MASTER_KEY must be exactly 64 hex characters")
)

const keyLen = chacha20poly1305.KeySize

// Vault performs AEAD encryption with a process-wide immutable master key.
type Vault struct {
	key []byte
}

// New loads the master key from VAULT_MASTER_KEY. The key encoding is
// canonical: 64 hex characters, nothing else. A malformed key is rejected
// here instead of being reinterpreted as raw bytes.
//
// When the variable is unset and GO_ENV is not production, a zero key is
// used so local development works without provisioning; that mode is logged
// loudly on every startup.
func New() (*Vault, error) {
	raw := strings.TrimSpace(os.Getenv("VAULT_MASTER_KEY"))
	if raw == "" {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
			return nil, ErrKeyMissing
		}
		config.LogWarn(config.GetLogger(), "vault", "New",
			"VAULT_MASTER_KEY not set; using all-zero development key. NEVER run production like this.", nil)
		return &Vault{key: make([]byte, keyLen)}, nil
	}

	key, err := hex.DecodeString(raw)
	if err != nil || len(key) != keyLen {
		return nil, ErrBadKeyEncoding
	}
	return &Vault{key: key}, nil
}

// NewWithKey builds a vault from a raw 32-byte key. Used by tests.
func NewWithKey(key []byte) (*Vault, error) {
	if len(key) != keyLen {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", keyLen, len(key))
	}
	k := make([]byte, keyLen)
	copy(k, key)
	return &Vault{key: k}, nil
}

// Encrypt seals plaintext with a fresh random nonce and returns
// base64(nonce || ciphertext+tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if v == nil || len(v.key) == 0 {
		return "", ErrKeyMissing
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A wrong key or a modified blob returns
// ErrIntegrity, never garbage plaintext.
func (v *Vault) Decrypt(opaque string) (string, error) {
	if v == nil || len(v.key) == 0 {
		return "", ErrKeyMissing
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", err
	}

	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(opaque))
	if err != nil {
		return "", ErrIntegrity
	}
	if len(blob) < aead.NonceSize()+aead.Overhead() {
		return "", ErrIntegrity
	}

	nonce := blob[:aead.NonceSize()]
	ciphertext := blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// PIICipher encrypts and decrypts a single sensitive string field. The key is
// derived by hashing the server secret; each Encrypt call uses a fresh random
// nonce, and the blob is base64(nonce || ciphertext+tag).
//
// Decrypt never returns an error to callers: a corrupt blob or a rotated key
// yields "", so read paths degrade instead of crashing.
type PIICipher struct {
	aead cipher.AEAD
}

// NewPIICipher derives an AES-256-GCM cipher from the server secret.
func NewPIICipher(secret string) (*PIICipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("pii secret is required")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("building aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("building gcm: %w", err)
	}
	return &PIICipher{aead: aead}, nil
}

// Encrypt seals the plaintext under a fresh nonce.
func (c *PIICipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure returns "".
func (c *PIICipher) Decrypt(blob string) string {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return ""
	}
	if len(raw) < c.aead.NonceSize() {
		return ""
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ""
	}
	return string(plaintext)
}

// MaskIDNumber returns the display form stored in place of the plaintext once
// it is encrypted: "***" plus the last four characters.
func MaskIDNumber(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return "***" + LastFour(trimmed)
}

// LastFour returns up to the last four characters of the value.
func LastFour(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= 4 {
		return trimmed
	}
	return trimmed[len(trimmed)-4:]
}

// IsMasked reports whether the value already carries the display form, which
// makes re-encryption on save a no-op.
func IsMasked(value string) bool {
	return strings.HasPrefix(value, "***")
}

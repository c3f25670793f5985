// File: internal/secrets/cipher.go
// Package secrets encrypts question-bank answers at rest using Fernet tokens,
// the same format the web backend writes, so rows created by either side can
// be read by the other.
package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fernet/fernet-go"
)

// TokenPrefix is how every Fernet token starts (version byte 0x80 plus the
// high bytes of a current timestamp, base64url encoded).
const TokenPrefix = "gAAAAA"

var (
	// ErrNoKey is returned when no encryption key is configured.
	ErrNoKey = errors.New("secrets: no encryption key configured")
	// ErrDecrypt is returned when a token fails verification under every key.
	ErrDecrypt = errors.New("secrets: token could not be verified")
)

// Cipher encrypts with the first key and decrypts with any of them, which
// allows rotating keys by prepending the new one.
// A nil *Cipher is valid and fails every operation with ErrNoKey.
type Cipher struct {
	keys []*fernet.Key
}

// New parses one or more base64url Fernet keys separated by commas.
func New(encodedKeys string) (*Cipher, error) {
	var keys []*fernet.Key
	for _, raw := range strings.Split(encodedKeys, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		k, err := fernet.DecodeKey(raw)
		if err != nil {
			return nil, fmt.Errorf("secrets: invalid encryption key: %w", err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrNoKey
	}
	return &Cipher{keys: keys}, nil
}

// IsCiphertext reports whether s looks like a Fernet token.
func IsCiphertext(s string) bool {
	return strings.HasPrefix(s, TokenPrefix)
}

// Encrypt returns the token for plain. Values that are already tokens are
// returned unchanged so sweeping a table twice is harmless.
func (c *Cipher) Encrypt(plain string) (string, error) {
	if c == nil || len(c.keys) == 0 {
		return "", ErrNoKey
	}
	if IsCiphertext(plain) {
		return plain, nil
	}
	tok, err := fernet.EncryptAndSign([]byte(plain), c.keys[0])
	if err != nil {
		return "", fmt.Errorf("secrets: encrypt: %w", err)
	}
	return string(tok), nil
}

// Decrypt verifies and decrypts a token. Tokens never expire; a negative TTL
// disables the timestamp check.
func (c *Cipher) Decrypt(token string) (string, error) {
	if c == nil || len(c.keys) == 0 {
		return "", ErrNoKey
	}
	msg := fernet.VerifyAndDecrypt([]byte(token), -1, c.keys)
	if msg == nil {
		return "", ErrDecrypt
	}
	return string(msg), nil
}

// GenerateKey returns a fresh key in the encoding New accepts.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("secrets: generate key: %w", err)
	}
	return k.Encode(), nil
}

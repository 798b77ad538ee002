// Package vault encrypts OAuth tokens at rest with AES-256-GCM.
//
// Ciphertexts are stored as "v1:<base64(nonce||sealed)>". The key is derived
// from the process-wide secret with HKDF-SHA256, so the same secret always
// opens what it sealed.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	prefix      = "v1:"
	hkdfContext = "social-agent-token-vault"
	minKeyBytes = 16
)

var (
	// ErrKeyMissing indicates no vault secret was configured.
	ErrKeyMissing = errors.New("vault key not configured")

	// ErrInvalidCiphertext indicates the stored value is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")

	// ErrDecryptionFailed indicates authentication of the ciphertext failed.
	ErrDecryptionFailed = errors.New("decryption failed")
)

// Vault seals and opens token strings. Safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key from secret. The secret may be raw text or
// base64; base64 is decoded first when it parses.
func New(secret string) (*Vault, error) {
	if secret == "" {
		return nil, ErrKeyMissing
	}

	master := []byte(secret)
	if decoded, err := base64.StdEncoding.DecodeString(secret); err == nil && len(decoded) >= minKeyBytes {
		master = decoded
	}
	if len(master) < minKeyBytes {
		return nil, fmt.Errorf("vault key must be at least %d bytes", minKeyBytes)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(hkdfContext)), key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext. The empty string is sealed like any other value.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt.
func (v *Vault) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, prefix) {
		return "", fmt.Errorf("%w: missing version prefix", ErrInvalidCiphertext)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	nonceSize := v.aead.NonceSize()
	if len(data) < nonceSize+v.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := v.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// GenerateKey returns a random 256-bit key, base64 encoded for configuration.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

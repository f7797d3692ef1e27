package auth

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

// Vault seals secrets (the user's directory password) so that only ciphertext is
// stored in sessions and carried on the job queue.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives an AES-256-GCM key from secret.
func NewVault(secret string) (*Vault, error) {
	if secret == "" {
		return nil, errors.New("vault: secret is required")
	}
	key := sha256.Sum256([]byte("vault:" + secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (v *Vault) Seal(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (v *Vault) Open(sealed string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("vault: decode: %w", err)
	}
	ns := v.aead.NonceSize()
	if len(data) < ns {
		return "", errors.New("vault: ciphertext too short")
	}
	plain, err := v.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("vault: open: %w", err)
	}
	return string(plain), nil
}

// Package vault seals and opens provider access tokens at rest.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Vault errors.
var (
	ErrInvalidKey    = errors.New("vault key must be 32 bytes, base64 encoded")
	ErrDecryptFailed = errors.New("unable to open sealed credential")
)

// Vault encrypts secrets with NaCl secretbox under a single key.
type Vault struct {
	key [keySize]byte
}

// New creates a vault from a base64 encoded 32-byte key.
func New(encodedKey string) (*Vault, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}

	v := &Vault{}
	copy(v.key[:], raw)
	return v, nil
}

// GenerateKey returns a fresh random key suitable for New.
func GenerateKey() (string, error) {
	var key [keySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key[:]), nil
}

// Seal encrypts plaintext. The nonce is prepended to the returned ciphertext.
func (v *Vault) Seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &v.key), nil
}

// Open decrypts a value produced by Seal.
func (v *Vault) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrDecryptFailed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", ErrDecryptFailed
	}
	return string(plaintext), nil
}

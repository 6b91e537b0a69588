// Package crypto seals datasource passwords before they reach the metadata store.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// sealedPrefix marks values produced by Encrypt.
const sealedPrefix = "v1:"

var (
	ErrInvalidKey       = errors.New("invalid credentials key: must not be empty")
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or wrong key")
)

// CredentialEncryptor seals secrets with AES-256-GCM.
type CredentialEncryptor struct {
	aead cipher.AEAD
}

// NewCredentialEncryptor accepts a base64 encoded 32-byte key, or any other
// string which is then hashed with SHA-256 into a key.
func NewCredentialEncryptor(keyInput string) (*CredentialEncryptor, error) {
	key, err := deriveKey(keyInput)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &CredentialEncryptor{aead: aead}, nil
}

func deriveKey(keyInput string) ([]byte, error) {
	if keyInput == "" {
		return nil, ErrInvalidKey
	}
	if decoded, err := base64.StdEncoding.DecodeString(keyInput); err == nil && len(decoded) == 32 {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(keyInput))
	return sum[:], nil
}

// Encrypt returns "v1:" + base64(nonce || ciphertext || tag).
// The empty string stays empty.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. The empty string stays empty.
func (e *CredentialEncryptor) Decrypt(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}
	payload, ok := strings.CutPrefix(encrypted, sealedPrefix)
	if !ok {
		return "", fmt.Errorf("%w: missing version prefix", ErrDecryptionFailed)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrDecryptionFailed)
	}
	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	plaintext, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecryptionFailed)
	}
	return string(plaintext), nil
}

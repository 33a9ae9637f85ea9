// Package crypto encrypts tenant SMTP credentials at rest. A process-wide
// master key is run once through HKDF-SHA256 to derive an AES-256-GCM key;
// ciphertext is stored as nonce(12) || ciphertext || tag.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSize = 12
	keySize   = 32
)

var (
	hkdfSalt = []byte("formrelay-tenant-smtp-credentials")
	hkdfInfo = []byte("formrelay/v1/aes-256-gcm")
)

// ErrCiphertextTooShort is returned when decrypting input shorter than the
// nonce size.
var ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

// Helper seals and opens tenant secrets with a key derived from a single
// master key. It is safe for concurrent use.
type Helper struct {
	key [keySize]byte
}

// New derives a 32-byte AES key from masterKey via HKDF-SHA256 and returns a
// Helper bound to it.
func New(masterKey string) (*Helper, error) {
	if masterKey == "" {
		return nil, errors.New("crypto: master key must not be empty")
	}

	h := &Helper{}
	kdf := hkdf.New(sha256.New, []byte(masterKey), hkdfSalt, hkdfInfo)
	if _, err := io.ReadFull(kdf, h.key[:]); err != nil {
		return nil, fmt.Errorf("crypto: derive key: %w", err)
	}
	return h, nil
}

func (h *Helper) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(h.key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext and returns nonce || ciphertext || tag.
func (h *Helper) Seal(plaintext string) ([]byte, error) {
	gcm, err := h.aead()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Open decrypts data previously produced by Seal.
func (h *Helper) Open(data []byte) (string, error) {
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	gcm, err := h.aead()
	if err != nil {
		return "", err
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt: %w", err)
	}

	return string(plaintext), nil
}

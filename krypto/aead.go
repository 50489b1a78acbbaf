package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// GCMNonceSize is the AES-GCM nonce length used throughout the vault.
const GCMNonceSize = 12

// EncryptAESGCM encrypts plaintext using AES-256-GCM with a fresh random
// nonce per call. Nonce reuse under one key breaks confidentiality
// completely, so the nonce is generated here and never accepted from the
// caller.
func EncryptAESGCM(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	if len(key) != KeyLen {
		return nil, nil, errors.New("aes-gcm requires a 32-byte key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("create gcm: %w", err)
	}

	nonce = make([]byte, GCMNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// DecryptAESGCM decrypts the ciphertext using AES-256-GCM. Any tag mismatch
// (wrong key, corrupted data, tampering) returns ErrAuthenticationFailure
// with no intermediate bytes; callers can rely on errors.Is to distinguish
// it from malformed-input errors.
func DecryptAESGCM(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}
	if len(nonce) != GCMNonceSize {
		return nil, errors.New("invalid nonce size")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	return plaintext, nil
}

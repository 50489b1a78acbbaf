package vault

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zkvault/zkvault/internal/boundary"
	"github.com/zkvault/zkvault/krypto"
)

var itemAAD = []byte("vault.item")

// EncryptItem encrypts one secret payload under the session's vault key
// with a fresh nonce per call.
func (s *Session) EncryptItem(plaintext []byte) (ciphertext, nonce []byte, err error) {
	err = s.withKey(func(key []byte) error {
		nonce, ciphertext, err = krypto.EncryptAESGCM(key, plaintext, itemAAD)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return ciphertext, nonce, nil
}

// DecryptItem decrypts one secret payload. A tag mismatch surfaces as
// krypto.ErrAuthenticationFailure, distinct from any later parse error.
func (s *Session) DecryptItem(ciphertext, nonce []byte) ([]byte, error) {
	var plaintext []byte
	err := s.withKey(func(key []byte) error {
		var derr error
		plaintext, derr = krypto.DecryptAESGCM(key, nonce, ciphertext, itemAAD)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// SealSecret runs the authoring flow for a new secret: split into payload
// and metadata, reject unsafe metadata before anything is encrypted or
// transmitted, then encrypt the payload.
func (s *Session) SealSecret(in boundary.SecretInput) (EncryptedItem, error) {
	payload, meta := in.Split()

	if err := boundary.ValidateMetadata(meta); err != nil {
		return EncryptedItem{}, err
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return EncryptedItem{}, fmt.Errorf("encode payload: %w", err)
	}
	defer krypto.Zero(plaintext)

	ciphertext, nonce, err := s.EncryptItem(plaintext)
	if err != nil {
		return EncryptedItem{}, err
	}

	now := time.Now().UTC()
	return EncryptedItem{
		ID:         uuid.NewString(),
		SecretType: meta.Type,
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Metadata:   meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// OpenSecret decrypts a stored item back into its payload.
func (s *Session) OpenSecret(item EncryptedItem) (boundary.Payload, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(item.Ciphertext)
	if err != nil {
		return boundary.Payload{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(item.Nonce)
	if err != nil {
		return boundary.Payload{}, fmt.Errorf("decode nonce: %w", err)
	}

	plaintext, err := s.DecryptItem(ciphertext, nonce)
	if err != nil {
		return boundary.Payload{}, err
	}
	defer krypto.Zero(plaintext)

	var payload boundary.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return boundary.Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

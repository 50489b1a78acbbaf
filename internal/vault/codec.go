// Package vault implements the vault-key lifecycle: deriving the
// key-encryption key, wrapping and unwrapping the vault key, and the
// unlocked session that owns the key in memory.
package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/zkvault/zkvault/krypto"
)

var vaultKeyAAD = []byte("vault.key")

// Bundle is the persisted vault-key bundle. It is meaningless without the
// master password: the server side only ever sees this opaque structure.
type Bundle struct {
	EncryptedVaultKey string           `json:"encryptedVaultKey"` // base64(nonce || ciphertext)
	Salt              string           `json:"salt"`
	KDFParams         krypto.KDFParams `json:"kdfParams"`
}

// NeedsUpgrade reports whether the bundle was wrapped under a superseded
// KDF version and should be migrated on the next unlock.
func (b Bundle) NeedsUpgrade() bool {
	return krypto.NeedsUpgrade(b.KDFParams)
}

// WrapVaultKey encrypts the vault key under the KEK with a fresh nonce and
// returns the base64 nonce||ciphertext blob stored in the bundle.
func WrapVaultKey(vaultKey, kek []byte) (string, error) {
	if len(vaultKey) != krypto.KeyLen {
		return "", errors.New("invalid vault key length")
	}
	nonce, ciphertext, err := krypto.EncryptAESGCM(kek, vaultKey, vaultKeyAAD)
	if err != nil {
		return "", fmt.Errorf("wrap vault key: %w", err)
	}
	blob := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// UnwrapVaultKey decrypts the wrapped vault key. It fails closed with
// krypto.ErrAuthenticationFailure on any tag mismatch and never returns
// intermediate bytes.
func UnwrapVaultKey(encoded string, kek []byte) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped vault key: %w", err)
	}
	if len(blob) <= krypto.GCMNonceSize {
		return nil, errors.New("wrapped vault key too short")
	}
	nonce := blob[:krypto.GCMNonceSize]
	ciphertext := blob[krypto.GCMNonceSize:]

	vaultKey, err := krypto.DecryptAESGCM(kek, nonce, ciphertext, vaultKeyAAD)
	if err != nil {
		return nil, err
	}
	return vaultKey, nil
}

// NewBundle provisions a fresh vault: random salt, random vault key,
// wrapped under a KEK derived from the master password with the given
// parameters. All transient key material is wiped before returning.
func NewBundle(masterPassword []byte, params krypto.KDFParams) (Bundle, error) {
	salt, err := krypto.NewRandomSalt(krypto.SaltLen)
	if err != nil {
		return Bundle{}, err
	}

	kek, err := krypto.Derive(masterPassword, salt, params)
	if err != nil {
		return Bundle{}, fmt.Errorf("derive kek: %w", err)
	}
	defer krypto.Zero(kek)

	vaultKey := make([]byte, krypto.KeyLen)
	if _, err := rand.Read(vaultKey); err != nil {
		return Bundle{}, fmt.Errorf("generate vault key: %w", err)
	}
	defer krypto.Zero(vaultKey)

	wrapped, err := WrapVaultKey(vaultKey, kek)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{
		EncryptedVaultKey: wrapped,
		Salt:              base64.StdEncoding.EncodeToString(salt),
		KDFParams:         params,
	}, nil
}

// RewrapBundle verifies the old master password, then rewraps the same
// vault key under the new password with a fresh salt and the current KDF
// version. Used for master password rotation and for KDF upgrades (pass
// the same password twice). Item ciphertexts are untouched.
func RewrapBundle(b Bundle, oldMaster, newMaster []byte) (Bundle, error) {
	oldSalt, err := base64.StdEncoding.DecodeString(b.Salt)
	if err != nil {
		return Bundle{}, fmt.Errorf("decode salt: %w", err)
	}

	oldKEK, err := krypto.Derive(oldMaster, oldSalt, b.KDFParams)
	if err != nil {
		return Bundle{}, fmt.Errorf("derive old kek: %w", err)
	}
	defer krypto.Zero(oldKEK)

	vaultKey, err := UnwrapVaultKey(b.EncryptedVaultKey, oldKEK)
	if err != nil {
		return Bundle{}, err
	}
	defer krypto.Zero(vaultKey)

	newSalt, err := krypto.NewRandomSalt(krypto.SaltLen)
	if err != nil {
		return Bundle{}, err
	}
	newParams := krypto.DefaultKDFParams()

	newKEK, err := krypto.Derive(newMaster, newSalt, newParams)
	if err != nil {
		return Bundle{}, fmt.Errorf("derive new kek: %w", err)
	}
	defer krypto.Zero(newKEK)

	wrapped, err := WrapVaultKey(vaultKey, newKEK)
	if err != nil {
		return Bundle{}, err
	}

	return Bundle{
		EncryptedVaultKey: wrapped,
		Salt:              base64.StdEncoding.EncodeToString(newSalt),
		KDFParams:         newParams,
	}, nil
}

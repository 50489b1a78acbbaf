package krypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	// MinSaltLen is the minimum accepted salt length in bytes.
	MinSaltLen = 16
	// SaltLen is the salt length generated for new vaults.
	SaltLen = 16
	// KeyLen is the derived key length (AES-256).
	KeyLen = 32

	// KDFVersionPBKDF2 is the superseded iterated-hash derivation, retained
	// for reading vaults created before the scrypt migration.
	KDFVersionPBKDF2 = 1
	// KDFVersionScrypt is the current memory-hard derivation.
	KDFVersionScrypt = 2

	minPBKDF2Iterations = 100_000
	minScryptN          = 1 << 14
	minScryptR          = 8
	minScryptP          = 1
)

// KDFParams selects and parameterises the derivation algorithm. The version
// tag alone decides the algorithm; callers never pick it directly.
type KDFParams struct {
	Version int `json:"version"`

	// Version 1 (PBKDF2) fields.
	Iterations int    `json:"iterations,omitempty"`
	Hash       string `json:"hash,omitempty"`

	// Version 2 (scrypt) fields.
	N int `json:"N,omitempty"`
	R int `json:"r,omitempty"`
	P int `json:"p,omitempty"`
}

// DefaultKDFParams returns the scrypt parameters used for all new vaults.
func DefaultKDFParams() KDFParams {
	return KDFParams{Version: KDFVersionScrypt, N: 1 << 15, R: 8, P: 1}
}

// Validate re-checks stored parameters against the minimum work-factor
// floor. Persisted params are attacker-influenced input and must be
// validated on every derivation, not only at vault creation.
func (p KDFParams) Validate() error {
	switch p.Version {
	case KDFVersionPBKDF2:
		if p.Iterations < minPBKDF2Iterations {
			return fmt.Errorf("%w: pbkdf2 iterations %d < %d", ErrInvalidKDFParams, p.Iterations, minPBKDF2Iterations)
		}
		if _, err := hashByName(p.Hash); err != nil {
			return err
		}
		return nil
	case KDFVersionScrypt:
		if p.N < minScryptN || p.N&(p.N-1) != 0 {
			return fmt.Errorf("%w: scrypt N %d (must be a power of two >= %d)", ErrInvalidKDFParams, p.N, minScryptN)
		}
		if p.R < minScryptR {
			return fmt.Errorf("%w: scrypt r %d < %d", ErrInvalidKDFParams, p.R, minScryptR)
		}
		if p.P < minScryptP {
			return fmt.Errorf("%w: scrypt p %d < %d", ErrInvalidKDFParams, p.P, minScryptP)
		}
		return nil
	default:
		return fmt.Errorf("%w: version %d", ErrUnsupportedKDFVersion, p.Version)
	}
}

// NeedsUpgrade reports whether a vault derived with these parameters should
// be re-wrapped under the current KDF version. The rewrap itself belongs to
// the unlock flow.
func NeedsUpgrade(p KDFParams) bool {
	return p.Version != KDFVersionScrypt
}

// Derive turns the master password into a 32-byte key-encryption key.
// Deterministic for fixed inputs.
func Derive(masterPassword, salt []byte, p KDFParams) ([]byte, error) {
	if len(masterPassword) == 0 {
		return nil, errors.New("master password is required")
	}
	if len(salt) < MinSaltLen {
		return nil, fmt.Errorf("salt must be at least %d bytes", MinSaltLen)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	switch p.Version {
	case KDFVersionPBKDF2:
		h, err := hashByName(p.Hash)
		if err != nil {
			return nil, err
		}
		return pbkdf2.Key(masterPassword, salt, p.Iterations, KeyLen, h), nil
	case KDFVersionScrypt:
		key, err := scrypt.Key(masterPassword, salt, p.N, p.R, p.P, KeyLen)
		if err != nil {
			return nil, fmt.Errorf("derive scrypt key: %w", err)
		}
		return key, nil
	}
	return nil, ErrUnsupportedKDFVersion
}

func hashByName(name string) (func() hash.Hash, error) {
	switch name {
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: pbkdf2 hash %q", ErrInvalidKDFParams, name)
	}
}

// NewRandomSalt returns a cryptographically secure random salt of n bytes,
// or SaltLen bytes when n is below the minimum.
func NewRandomSalt(n int) ([]byte, error) {
	if n < MinSaltLen {
		n = SaltLen
	}
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

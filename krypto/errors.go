package krypto

import "errors"

// Sentinel errors for errors.Is() checks.
var (
	// ErrInvalidKDFParams is returned when stored derivation parameters fall
	// below the minimum work-factor floor.
	ErrInvalidKDFParams = errors.New("kdf parameters below security floor")

	// ErrUnsupportedKDFVersion is returned for an unrecognized version tag.
	ErrUnsupportedKDFVersion = errors.New("unsupported kdf version")

	// ErrAuthenticationFailure is returned when an AEAD tag does not verify:
	// wrong key, corrupted data, or tampering. No plaintext is ever returned
	// alongside it.
	ErrAuthenticationFailure = errors.New("authentication failure")
)

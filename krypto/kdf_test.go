package krypto_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zkvault/zkvault/krypto"
)

func scryptParams() krypto.KDFParams {
	return krypto.KDFParams{Version: krypto.KDFVersionScrypt, N: 1 << 14, R: 8, P: 1}
}

func pbkdf2Params() krypto.KDFParams {
	return krypto.KDFParams{Version: krypto.KDFVersionPBKDF2, Iterations: 100_000, Hash: "sha256"}
}

func TestDeriveDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, 16)

	for name, params := range map[string]krypto.KDFParams{
		"scrypt": scryptParams(),
		"pbkdf2": pbkdf2Params(),
	} {
		first, err := krypto.Derive([]byte("correct horse"), salt, params)
		if err != nil {
			t.Fatalf("%s: Derive returned error: %v", name, err)
		}
		second, err := krypto.Derive([]byte("correct horse"), salt, params)
		if err != nil {
			t.Fatalf("%s: repeat Derive returned error: %v", name, err)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%s: repeated derivation differs", name)
		}
		if len(first) != krypto.KeyLen {
			t.Fatalf("%s: derived key has length %d, want %d", name, len(first), krypto.KeyLen)
		}
	}
}

func TestDeriveVariesWithInputs(t *testing.T) {
	salt := bytes.Repeat([]byte{0x42}, 16)
	otherSalt := bytes.Repeat([]byte{0x43}, 16)
	params := scryptParams()

	base, err := krypto.Derive([]byte("correct horse"), salt, params)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}

	otherPw, err := krypto.Derive([]byte("battery staple"), salt, params)
	if err != nil {
		t.Fatalf("Derive with other password: %v", err)
	}
	if bytes.Equal(base, otherPw) {
		t.Fatal("different passwords derived the same key")
	}

	saltVaried, err := krypto.Derive([]byte("correct horse"), otherSalt, params)
	if err != nil {
		t.Fatalf("Derive with other salt: %v", err)
	}
	if bytes.Equal(base, saltVaried) {
		t.Fatal("varying the salt alone did not change the key")
	}
}

func TestDeriveRejectsWeakParams(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, 16)

	cases := map[string]krypto.KDFParams{
		"scrypt N below floor":     {Version: krypto.KDFVersionScrypt, N: 1 << 13, R: 8, P: 1},
		"scrypt N not power of 2":  {Version: krypto.KDFVersionScrypt, N: (1 << 14) + 2, R: 8, P: 1},
		"scrypt r below floor":     {Version: krypto.KDFVersionScrypt, N: 1 << 14, R: 4, P: 1},
		"pbkdf2 iterations low":    {Version: krypto.KDFVersionPBKDF2, Iterations: 10_000, Hash: "sha256"},
		"pbkdf2 unknown hash":      {Version: krypto.KDFVersionPBKDF2, Iterations: 200_000, Hash: "md5"},
	}
	for name, params := range cases {
		if _, err := krypto.Derive([]byte("pw"), salt, params); !errors.Is(err, krypto.ErrInvalidKDFParams) {
			t.Fatalf("%s: got %v, want ErrInvalidKDFParams", name, err)
		}
	}
}

func TestDeriveRejectsUnknownVersion(t *testing.T) {
	salt := bytes.Repeat([]byte{0x01}, 16)
	_, err := krypto.Derive([]byte("pw"), salt, krypto.KDFParams{Version: 9})
	if !errors.Is(err, krypto.ErrUnsupportedKDFVersion) {
		t.Fatalf("got %v, want ErrUnsupportedKDFVersion", err)
	}
}

func TestDeriveRejectsShortSalt(t *testing.T) {
	if _, err := krypto.Derive([]byte("pw"), []byte("too-short"), scryptParams()); err == nil {
		t.Fatal("expected error for salt below 16 bytes")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	if !krypto.NeedsUpgrade(pbkdf2Params()) {
		t.Fatal("pbkdf2 params should need upgrade")
	}
	if krypto.NeedsUpgrade(krypto.DefaultKDFParams()) {
		t.Fatal("current scrypt params should not need upgrade")
	}
}

func TestNewRandomSalt(t *testing.T) {
	a, err := krypto.NewRandomSalt(0)
	if err != nil {
		t.Fatalf("NewRandomSalt: %v", err)
	}
	if len(a) != krypto.SaltLen {
		t.Fatalf("salt length %d, want %d", len(a), krypto.SaltLen)
	}
	b, err := krypto.NewRandomSalt(32)
	if err != nil {
		t.Fatalf("NewRandomSalt(32): %v", err)
	}
	if len(b) != 32 {
		t.Fatalf("salt length %d, want 32", len(b))
	}
}

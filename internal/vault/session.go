package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/zkvault/zkvault/krypto"
)

// ErrVaultLocked is returned when an operation needs the vault key but the
// session is locked, expired, or already destroyed.
var ErrVaultLocked = errors.New("vault is locked")

// SessionConfig bounds the lifetime of an unlocked session.
type SessionConfig struct {
	// InactivityTimeout locks the session after this long without use.
	InactivityTimeout time.Duration
	// MaxLifetime locks the session this long after unlock regardless of
	// activity.
	MaxLifetime time.Duration
}

// DefaultSessionConfig returns the lifetime bounds used by the CLI.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		InactivityTimeout: 15 * time.Minute,
		MaxLifetime:       8 * time.Hour,
	}
}

// Session is the single owner of the decrypted vault key. The key lives in
// a guarded buffer and is destroyed, not merely unreferenced, on Lock or
// expiry; nothing outside this type can read or cache it.
type Session struct {
	mu         sync.Mutex
	key        *memguard.LockedBuffer
	cfg        SessionConfig
	params     krypto.KDFParams
	unlockedAt time.Time
	lastUsed   time.Time
}

// Unlock derives the KEK from the master password and unwraps the vault
// key from the bundle. Authentication failure is indistinguishable between
// a wrong password and a tampered bundle; callers must present it
// generically.
func Unlock(masterPassword []byte, b Bundle, cfg SessionConfig) (*Session, error) {
	salt, err := base64.StdEncoding.DecodeString(b.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	kek, err := krypto.Derive(masterPassword, salt, b.KDFParams)
	if err != nil {
		return nil, fmt.Errorf("derive kek: %w", err)
	}
	defer krypto.Zero(kek)

	vaultKey, err := UnwrapVaultKey(b.EncryptedVaultKey, kek)
	if err != nil {
		return nil, err
	}

	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = DefaultSessionConfig().InactivityTimeout
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = DefaultSessionConfig().MaxLifetime
	}

	now := time.Now()
	return &Session{
		// NewBufferFromBytes wipes vaultKey as it takes ownership.
		key:        memguard.NewBufferFromBytes(vaultKey),
		cfg:        cfg,
		params:     b.KDFParams,
		unlockedAt: now,
		lastUsed:   now,
	}, nil
}

// Lock destroys the vault key material. The session cannot be reused; a
// new Unlock is required.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked()
}

// Unlocked reports whether the session still holds a usable vault key.
func (s *Session) Unlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkLocked() == nil
}

// NeedsUpgrade reports whether the bundle this session was unlocked from
// uses a superseded KDF version.
func (s *Session) NeedsUpgrade() bool {
	return krypto.NeedsUpgrade(s.params)
}

func (s *Session) destroyLocked() {
	if s.key != nil {
		s.key.Destroy()
		s.key = nil
	}
}

// checkLocked enforces the lifetime bounds. Called with s.mu held.
func (s *Session) checkLocked() error {
	if s.key == nil || !s.key.IsAlive() {
		return ErrVaultLocked
	}
	now := time.Now()
	if now.Sub(s.unlockedAt) > s.cfg.MaxLifetime || now.Sub(s.lastUsed) > s.cfg.InactivityTimeout {
		s.destroyLocked()
		return ErrVaultLocked
	}
	return nil
}

// withKey runs f with the live vault key. The key must not escape f.
func (s *Session) withKey(f func(key []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(); err != nil {
		return err
	}
	s.lastUsed = time.Now()
	return f(s.key.Bytes())
}

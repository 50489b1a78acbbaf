// Package health evaluates password health: strength scoring, in-memory
// reuse detection, and breach exposure. Evaluation is a pure function of
// its inputs; nothing here persists or transmits plaintext.
package health

import (
	"context"
	"time"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/zkvault/zkvault/internal/boundary"
	"github.com/zkvault/zkvault/internal/vault"
)

// Scoring contract. The weights are a compatibility surface: they are kept
// exactly as shipped, not tuned.
const (
	maxLengthScore   = 50.0
	lengthSaturation = 20
	classScore       = 12.5
	reusePenalty     = 30.0
	agePenalty       = 10.0
	breachPenalty    = 50.0
	weakThreshold    = 60

	// DefaultMaxAge is the age beyond which a password is flagged old.
	DefaultMaxAge = 180 * 24 * time.Hour
)

// Flags are the boolean health signals.
type Flags struct {
	Reused   bool `json:"reused"`
	Weak     bool `json:"weak"`
	Old      bool `json:"old"`
	Breached bool `json:"breached"`
}

// Result is a computed health report. It never contains the password and
// is never persisted.
type Result struct {
	Score    int      `json:"score"`
	Warnings []string `json:"warnings"`
	Flags    Flags    `json:"flags"`
}

// Decryptor decrypts a stored item into its payload. Used only for the
// in-memory reuse comparison; plaintext never leaves the process.
type Decryptor func(item vault.EncryptedItem) (boundary.Payload, error)

// BreachChecker reports whether the password appears in a breach corpus.
// The engine never performs a network call on its own; callers opt in by
// supplying one.
type BreachChecker func(ctx context.Context, password string) (bool, error)

// Options supplies the optional signals for an evaluation.
type Options struct {
	// CurrentItemID excludes the item being edited from reuse comparison.
	CurrentItemID string
	// OtherItems are the encrypted items to compare against.
	OtherItems []vault.EncryptedItem
	// Decrypt is required for reuse detection; nil disables it.
	Decrypt Decryptor

	// LastChanged enables the age flag when non-zero.
	LastChanged time.Time
	// MaxAge overrides DefaultMaxAge when positive.
	MaxAge time.Duration

	// CheckBreach opts in to the breach flag. Both it and Breach must be
	// set; unavailability is never interpreted as breached.
	CheckBreach bool
	Breach      BreachChecker
}

// Evaluate computes the health of a password. Deterministic given its
// inputs. Reuse and breach signals are advisory: their internal failures
// are swallowed and reported as "no signal", never as errors.
func Evaluate(ctx context.Context, password string, opts Options) Result {
	var (
		score    float64
		warnings []string
		flags    Flags
	)

	runes := []rune(password)
	length := float64(len(runes))
	if length > lengthSaturation {
		length = lengthSaturation
	}
	score += maxLengthScore * length / lengthSaturation

	hasLower, hasUpper, hasDigit, hasSymbol := classify(runes)
	missingClass := false
	for _, c := range []struct {
		present bool
		warning string
	}{
		{hasLower, "add lowercase letters"},
		{hasUpper, "add uppercase letters"},
		{hasDigit, "add digits"},
		{hasSymbol, "add symbols"},
	} {
		if c.present {
			score += classScore
		} else {
			missingClass = true
			warnings = append(warnings, c.warning)
		}
	}

	// Advisory pattern check; never moves the numeric score.
	if password != "" {
		if strength := zxcvbn.PasswordStrength(password, nil); strength.Score <= 1 {
			warnings = append(warnings, "password follows a predictable pattern")
		}
	}

	if detectReuse(password, opts) {
		flags.Reused = true
		score -= reusePenalty
		warnings = append(warnings, "password is reused by another item")
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if !opts.LastChanged.IsZero() && time.Since(opts.LastChanged) > maxAge {
		flags.Old = true
		score -= agePenalty
		warnings = append(warnings, "password has not been changed recently")
	}

	if opts.CheckBreach && opts.Breach != nil {
		breached, err := opts.Breach(ctx, password)
		// Fail open: an unavailable breach check is "no signal", not a
		// breach and not an error.
		if err == nil && breached {
			flags.Breached = true
			score -= breachPenalty
			warnings = append(warnings, "password appears in a known data breach")
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	final := int(score)
	flags.Weak = final < weakThreshold || missingClass

	return Result{Score: final, Warnings: warnings, Flags: flags}
}

func classify(runes []rune) (lower, upper, digit, symbol bool) {
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return
}

// detectReuse compares the password against the secret fields of every
// other decryptable item. Per-item decryption failures are swallowed:
// reuse detection is advisory, a corrupted item must not block it.
func detectReuse(password string, opts Options) bool {
	if password == "" || opts.Decrypt == nil {
		return false
	}
	for _, item := range opts.OtherItems {
		if item.ID == opts.CurrentItemID {
			continue
		}
		payload, err := opts.Decrypt(item)
		if err != nil {
			continue
		}
		if payload.Password == password || payload.APIKey == password {
			return true
		}
		for _, v := range payload.Variables {
			if v.Value == password {
				return true
			}
		}
	}
	return false
}

package boundary

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Sentinel errors for errors.Is() checks.
var (
	// ErrForbiddenField is returned when metadata carries a field name that
	// may never appear outside the encrypted payload.
	ErrForbiddenField = errors.New("metadata contains a forbidden field")

	// ErrForbiddenPattern is returned when a metadata string value looks
	// like a partial-secret mask.
	ErrForbiddenPattern = errors.New("metadata value matches a secret mask pattern")
)

// ViolationKind classifies a metadata boundary violation.
type ViolationKind int

const (
	ViolationForbiddenField ViolationKind = iota + 1
	ViolationForbiddenPattern
)

// Violation is a structured rejection reason. It names the offending field
// but never echoes the offending value, which may itself be secret.
type Violation struct {
	Kind  ViolationKind
	Field string
}

func (v *Violation) Error() string {
	switch v.Kind {
	case ViolationForbiddenPattern:
		return fmt.Sprintf("metadata field %q matches a secret mask pattern", v.Field)
	default:
		return fmt.Sprintf("metadata field %q is not allowed outside the encrypted payload", v.Field)
	}
}

// Is maps violations onto the sentinel errors.
func (v *Violation) Is(target error) bool {
	switch v.Kind {
	case ViolationForbiddenField:
		return target == ErrForbiddenField
	case ViolationForbiddenPattern:
		return target == ErrForbiddenPattern
	}
	return false
}

// deniedFields may never appear as a metadata key at any nesting depth,
// regardless of the declared secret type. Compared case-insensitively.
var deniedFields = map[string]struct{}{
	"password":     {},
	"apikey":       {},
	"value":        {},
	"secret":       {},
	"token":        {},
	"credential":   {},
	"mask":         {},
	"passwordmask": {},
	"apikeymask":   {},
}

// safeFields is the per-type allowlist of top-level metadata keys
// (lower-cased). Anything else is rejected even if it dodges the denylist.
var safeFields = map[SecretType]map[string]struct{}{
	SecretTypePassword: {
		"type": {}, "title": {}, "username": {}, "website": {},
		"passwordlength": {}, "hasnotes": {},
	},
	SecretTypeAPIKey: {
		"type": {}, "title": {}, "servicename": {}, "environment": {},
		"apikeylength": {}, "hasnotes": {},
	},
	SecretTypeEnvVars: {
		"type": {}, "title": {}, "description": {}, "variablecount": {},
		"variablekeys": {}, "hasnotes": {},
	},
}

// maskPattern matches partial-secret masks of the shape ***<chars>: a run
// of asterisks immediately followed by a visible character. A mask like
// "***word" leaks trailing characters of the secret, so any match is
// rejected no matter which field carries it.
var maskPattern = regexp.MustCompile(`\*{2,}[^*\s]`)

// ValidateMetadata is the authoring-side entry point, run before anything
// is encrypted or transmitted.
func ValidateMetadata(meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return ValidateMetadataJSON(raw)
}

// ValidateMetadataJSON is the receiving-side entry point, run on the raw
// metadata document before persistence. It shares its implementation with
// ValidateMetadata; the two call sites must never diverge.
func ValidateMetadataJSON(raw []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return validateObject(obj)
}

func validateObject(obj map[string]any) error {
	typRaw, _ := obj["type"].(string)
	typ := SecretType(typRaw)
	if !typ.Known() {
		return fmt.Errorf("unknown secret type %q", typRaw)
	}

	// Denylisted names are checked first, at every nesting depth, so that a
	// sensitive field smuggled inside an array or object is still caught.
	if v := findDeniedField(obj); v != nil {
		return v
	}

	// The pattern detector runs before the allowlist so a masked secret in
	// an unexpected field is reported as a pattern violation, not merely an
	// unknown field.
	if v := findMaskedValue("", obj); v != nil {
		return v
	}

	allowed := safeFields[typ]
	for key := range obj {
		if _, ok := allowed[strings.ToLower(key)]; !ok {
			return &Violation{Kind: ViolationForbiddenField, Field: key}
		}
	}
	return nil
}

func findDeniedField(value any) *Violation {
	switch v := value.(type) {
	case map[string]any:
		for key, nested := range v {
			if _, denied := deniedFields[strings.ToLower(key)]; denied {
				return &Violation{Kind: ViolationForbiddenField, Field: key}
			}
			if viol := findDeniedField(nested); viol != nil {
				return viol
			}
		}
	case []any:
		for _, item := range v {
			if viol := findDeniedField(item); viol != nil {
				return viol
			}
		}
	}
	return nil
}

func findMaskedValue(field string, value any) *Violation {
	switch v := value.(type) {
	case string:
		if maskPattern.MatchString(v) {
			return &Violation{Kind: ViolationForbiddenPattern, Field: field}
		}
	case map[string]any:
		for key, nested := range v {
			if viol := findMaskedValue(key, nested); viol != nil {
				return viol
			}
		}
	case []any:
		for _, item := range v {
			if viol := findMaskedValue(field, item); viol != nil {
				return viol
			}
		}
	}
	return nil
}

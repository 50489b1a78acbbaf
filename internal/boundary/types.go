// Package boundary enforces the secret/metadata split: it decides which
// parts of a user-entered secret may live in plaintext metadata and rejects
// any metadata that could carry recoverable secret material.
package boundary

import "unicode/utf8"

// SecretType tags a stored secret record.
type SecretType string

const (
	SecretTypePassword SecretType = "PASSWORD"
	SecretTypeAPIKey   SecretType = "API_KEY"
	SecretTypeEnvVars  SecretType = "ENV_VARS"
)

// Known reports whether t is a recognised secret type.
func (t SecretType) Known() bool {
	switch t {
	case SecretTypePassword, SecretTypeAPIKey, SecretTypeEnvVars:
		return true
	}
	return false
}

// EnvVar is a single environment variable. Only the key name may ever
// appear outside the encrypted payload.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Payload holds the sensitive fields of a secret. It exists only in memory
// and inside the encrypted blob; it is never persisted or transmitted in
// the clear.
type Payload struct {
	Password  string   `json:"password,omitempty"`
	APIKey    string   `json:"apiKey,omitempty"`
	Variables []EnvVar `json:"variables,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Metadata is the plaintext side of a secret record. Fields are derived
// strictly as lengths, counts, booleans, or non-secret names; never a
// prefix, suffix, hash, or masked rendering of the secret itself.
type Metadata struct {
	Type  SecretType `json:"type"`
	Title string     `json:"title"`

	// PASSWORD fields.
	Username       string `json:"username,omitempty"`
	Website        string `json:"website,omitempty"`
	PasswordLength int    `json:"passwordLength,omitempty"`

	// API_KEY fields.
	ServiceName  string `json:"serviceName,omitempty"`
	Environment  string `json:"environment,omitempty"`
	APIKeyLength int    `json:"apiKeyLength,omitempty"`

	// ENV_VARS fields.
	Description   string   `json:"description,omitempty"`
	VariableCount int      `json:"variableCount,omitempty"`
	VariableKeys  []string `json:"variableKeys,omitempty"`

	HasNotes bool `json:"hasNotes"`
}

// SecretInput is a user-entered secret of one of the supported types.
type SecretInput interface {
	// Split partitions the input into the encrypted payload and the safe
	// plaintext metadata.
	Split() (Payload, Metadata)
}

// PasswordInput is a login credential.
type PasswordInput struct {
	Title    string
	Username string
	Website  string
	Password string
	Notes    string
}

// Split implements SecretInput.
func (in PasswordInput) Split() (Payload, Metadata) {
	return Payload{
			Password: in.Password,
			Notes:    in.Notes,
		}, Metadata{
			Type:           SecretTypePassword,
			Title:          in.Title,
			Username:       in.Username,
			Website:        in.Website,
			PasswordLength: utf8.RuneCountInString(in.Password),
			HasNotes:       in.Notes != "",
		}
}

// APIKeyInput is a service API key.
type APIKeyInput struct {
	Title       string
	ServiceName string
	Environment string
	APIKey      string
	Notes       string
}

// Split implements SecretInput.
func (in APIKeyInput) Split() (Payload, Metadata) {
	return Payload{
			APIKey: in.APIKey,
			Notes:  in.Notes,
		}, Metadata{
			Type:         SecretTypeAPIKey,
			Title:        in.Title,
			ServiceName:  in.ServiceName,
			Environment:  in.Environment,
			APIKeyLength: utf8.RuneCountInString(in.APIKey),
			HasNotes:     in.Notes != "",
		}
}

// EnvVarsInput is a set of environment variables.
type EnvVarsInput struct {
	Title       string
	Description string
	Variables   []EnvVar
	Notes       string
}

// Split implements SecretInput. Variable values stay in the payload; only
// the key names are exposed as metadata.
func (in EnvVarsInput) Split() (Payload, Metadata) {
	keys := make([]string, 0, len(in.Variables))
	vars := make([]EnvVar, 0, len(in.Variables))
	for _, v := range in.Variables {
		keys = append(keys, v.Key)
		vars = append(vars, v)
	}
	return Payload{
			Variables: vars,
			Notes:     in.Notes,
		}, Metadata{
			Type:          SecretTypeEnvVars,
			Title:         in.Title,
			Description:   in.Description,
			VariableCount: len(in.Variables),
			VariableKeys:  keys,
			HasNotes:      in.Notes != "",
		}
}

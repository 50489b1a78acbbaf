package boundary_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/zkvault/zkvault/internal/boundary"
)

func TestSplitPassword(t *testing.T) {
	payload, meta := boundary.PasswordInput{
		Title:    "Gmail",
		Username: "user@example.com",
		Website:  "mail.google.com",
		Password: "sécret-pass-12",
		Notes:    "recovery codes in drawer",
	}.Split()

	if payload.Password != "sécret-pass-12" || payload.Notes == "" {
		t.Fatal("payload missing sensitive fields")
	}
	if meta.Type != boundary.SecretTypePassword {
		t.Fatalf("metadata type %q", meta.Type)
	}
	if meta.PasswordLength != 14 {
		t.Fatalf("passwordLength %d, want rune count 14", meta.PasswordLength)
	}
	if !meta.HasNotes {
		t.Fatal("hasNotes should be true")
	}
	if strings.Contains(meta.Title+meta.Username+meta.Website, "sécret") {
		t.Fatal("secret leaked into metadata")
	}
	if err := boundary.ValidateMetadata(meta); err != nil {
		t.Fatalf("split metadata failed validation: %v", err)
	}
}

func TestSplitAPIKey(t *testing.T) {
	payload, meta := boundary.APIKeyInput{
		Title:       "Stripe",
		ServiceName: "stripe",
		Environment: "production",
		APIKey:      "sk_live_abcdef123456",
	}.Split()

	if payload.APIKey == "" {
		t.Fatal("payload missing api key")
	}
	if meta.APIKeyLength != 20 {
		t.Fatalf("apiKeyLength %d, want 20", meta.APIKeyLength)
	}
	if meta.HasNotes {
		t.Fatal("hasNotes should be false with empty notes")
	}
	if err := boundary.ValidateMetadata(meta); err != nil {
		t.Fatalf("split metadata failed validation: %v", err)
	}
}

func TestSplitEnvVars(t *testing.T) {
	payload, meta := boundary.EnvVarsInput{
		Title: "staging env",
		Variables: []boundary.EnvVar{
			{Key: "DB_URL", Value: "postgres://u:p@host/db"},
			{Key: "API_TOKEN", Value: "tok-123"},
		},
	}.Split()

	if len(payload.Variables) != 2 {
		t.Fatalf("payload variables %d, want 2", len(payload.Variables))
	}
	if meta.VariableCount != 2 {
		t.Fatalf("variableCount %d, want 2", meta.VariableCount)
	}
	if !reflect.DeepEqual(meta.VariableKeys, []string{"DB_URL", "API_TOKEN"}) {
		t.Fatalf("variableKeys %v", meta.VariableKeys)
	}
	if err := boundary.ValidateMetadata(meta); err != nil {
		t.Fatalf("split metadata failed validation: %v", err)
	}
}

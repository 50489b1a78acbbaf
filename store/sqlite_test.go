package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/zkvault/zkvault/internal/boundary"
	"github.com/zkvault/zkvault/internal/vault"
	"github.com/zkvault/zkvault/krypto"
	"github.com/zkvault/zkvault/store"
)

func openTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(store.Config{FilePath: filepath.Join(t.TempDir(), "data", "vault.db")})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(t *testing.T) (*vault.Session, vault.Bundle) {
	t.Helper()
	master := []byte("correct horse battery staple")
	params := krypto.KDFParams{Version: krypto.KDFVersionScrypt, N: 1 << 14, R: 8, P: 1}
	b, err := vault.NewBundle(master, params)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	sess, err := vault.Unlock(master, b, vault.SessionConfig{})
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	t.Cleanup(sess.Lock)
	return sess, b
}

func TestBundleRoundTrip(t *testing.T) {
	s := openTestStore(t)
	_, bundle := testSession(t)
	ctx := context.Background()

	if _, err := s.LoadBundle(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("empty store: got %v, want ErrNotFound", err)
	}
	if err := s.SaveBundle(ctx, bundle); err != nil {
		t.Fatalf("SaveBundle: %v", err)
	}
	got, err := s.LoadBundle(ctx)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if got != bundle {
		t.Fatalf("bundle round trip mismatch:\n got %+v\nwant %+v", got, bundle)
	}
}

func TestItemRoundTrip(t *testing.T) {
	s := openTestStore(t)
	sess, _ := testSession(t)
	ctx := context.Background()

	item, err := sess.SealSecret(boundary.PasswordInput{
		Title:    "Gmail",
		Username: "user@example.com",
		Password: "hunter2hunter2",
	})
	if err != nil {
		t.Fatalf("SealSecret: %v", err)
	}
	if err := s.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Ciphertext != item.Ciphertext || got.Nonce != item.Nonce {
		t.Fatal("ciphertext or nonce corrupted by round trip")
	}
	if got.Metadata.Title != "Gmail" || got.Metadata.PasswordLength != 14 {
		t.Fatalf("metadata round trip: %+v", got.Metadata)
	}

	// Stored item must still decrypt.
	payload, err := sess.OpenSecret(got)
	if err != nil {
		t.Fatalf("OpenSecret: %v", err)
	}
	if payload.Password != "hunter2hunter2" {
		t.Fatalf("payload password %q", payload.Password)
	}

	items, err := s.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("ListItems returned %d items", len(items))
	}

	if err := s.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := s.GetItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestPutItemRejectsUnsafeMetadata(t *testing.T) {
	s := openTestStore(t)
	sess, _ := testSession(t)
	ctx := context.Background()

	item, err := sess.SealSecret(boundary.PasswordInput{Title: "ok", Password: "hunter2hunter2"})
	if err != nil {
		t.Fatalf("SealSecret: %v", err)
	}
	// Simulate a compromised or buggy client shipping a masked secret in
	// metadata: the store must reject it independently.
	item.Metadata.Title = "***word"
	if err := s.PutItem(ctx, item); !errors.Is(err, boundary.ErrForbiddenPattern) {
		t.Fatalf("got %v, want ErrForbiddenPattern", err)
	}
	if _, err := s.GetItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("rejected item must not be persisted")
	}
}

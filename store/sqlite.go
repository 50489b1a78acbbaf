package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/zkvault/zkvault/internal/boundary"
	"github.com/zkvault/zkvault/internal/vault"
)

// Config describes how the vault database should be opened.
type Config struct {
	// FilePath points to the SQLite database file.
	// If empty, DefaultDatabasePath is used.
	FilePath string
	// Logger receives structured operational logs. Secret material and
	// metadata string values are never logged.
	Logger zerolog.Logger
}

// DefaultDatabasePath is the relative path for the vault database file.
const DefaultDatabasePath = "vault/vault.db"

// SQLiteStore is the reference Store implementation.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Open creates (if needed) and opens the SQLite database located in the
// vault directory. The caller must Close the returned store.
func Open(cfg Config) (*SQLiteStore, error) {
	dbPath := cfg.FilePath
	if dbPath == "" {
		dbPath = DefaultDatabasePath
	}

	if err := ensureDirectory(dbPath); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}

	// Prime the connection and ensure the database file is created.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping vault database: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, log: cfg.Logger}, nil
}

func ensureDirectory(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return errors.New("database path must include a directory")
	}
	return os.MkdirAll(dir, 0o700)
}

const createSchema = `
CREATE TABLE IF NOT EXISTS vault_bundle (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	bundle     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	secret_type TEXT NOT NULL,
	ciphertext  TEXT NOT NULL,
	nonce       TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);`

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(createSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBundle upserts the single vault-key bundle row.
func (s *SQLiteStore) SaveBundle(ctx context.Context, b vault.Bundle) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vault_bundle (id, bundle, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET bundle = excluded.bundle, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	s.log.Info().Int("kdf_version", b.KDFParams.Version).Msg("vault bundle saved")
	return nil
}

// LoadBundle fetches the vault-key bundle.
func (s *SQLiteStore) LoadBundle(ctx context.Context) (vault.Bundle, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT bundle FROM vault_bundle WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.Bundle{}, ErrNotFound
	}
	if err != nil {
		return vault.Bundle{}, fmt.Errorf("load bundle: %w", err)
	}
	var b vault.Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return vault.Bundle{}, fmt.Errorf("decode bundle: %w", err)
	}
	return b, nil
}

// PutItem upserts one encrypted item. The metadata document is re-validated
// before persistence with the same logic the authoring side runs.
func (s *SQLiteStore) PutItem(ctx context.Context, item vault.EncryptedItem) error {
	if item.ID == "" {
		return errors.New("item id is required")
	}

	metaJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := boundary.ValidateMetadataJSON(metaJSON); err != nil {
		s.log.Warn().Str("item_id", item.ID).Msg("rejected item with unsafe metadata")
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (id, secret_type, ciphertext, nonce, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			secret_type = excluded.secret_type,
			ciphertext  = excluded.ciphertext,
			nonce       = excluded.nonce,
			metadata    = excluded.metadata,
			updated_at  = excluded.updated_at`,
		item.ID, string(item.SecretType), item.Ciphertext, item.Nonce, string(metaJSON),
		item.CreatedAt.UTC().Format(time.RFC3339Nano), item.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	s.log.Info().Str("item_id", item.ID).Str("secret_type", string(item.SecretType)).Msg("item stored")
	return nil
}

// GetItem fetches one encrypted item by id.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (vault.EncryptedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, secret_type, ciphertext, nonce, metadata, created_at, updated_at
		   FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return vault.EncryptedItem{}, ErrNotFound
	}
	return item, err
}

// ListItems returns all encrypted items in creation order.
func (s *SQLiteStore) ListItems(ctx context.Context) ([]vault.EncryptedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, secret_type, ciphertext, nonce, metadata, created_at, updated_at
		   FROM items ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []vault.EncryptedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteItem removes one item by id.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info().Str("item_id", id).Msg("item deleted")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (vault.EncryptedItem, error) {
	var (
		item                 vault.EncryptedItem
		secretType, metaJSON string
		createdAt, updatedAt string
	)
	if err := row.Scan(&item.ID, &secretType, &item.Ciphertext, &item.Nonce, &metaJSON, &createdAt, &updatedAt); err != nil {
		return vault.EncryptedItem{}, err
	}
	item.SecretType = boundary.SecretType(secretType)
	if err := json.Unmarshal([]byte(metaJSON), &item.Metadata); err != nil {
		return vault.EncryptedItem{}, fmt.Errorf("decode metadata: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = t
	}
	return item, nil
}

package store

import (
	"context"
	"database/sql"
	errs "errors"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS save_states (
	key        TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLiteStore keeps save states in a local single-file database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context, key string) ([]byte, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM save_states WHERE key = ?`, key).Scan(&blob)
	if errs.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(blob), nil
}

func (s *SQLiteStore) Save(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO save_states(key, blob, updated_at) VALUES (?,?,?)
	ON CONFLICT(key) DO UPDATE SET blob=excluded.blob, updated_at=excluded.updated_at`,
		key, string(blob), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

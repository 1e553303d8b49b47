package store

import (
	"context"
	"database/sql"
	errs "errors"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresStore keeps save states in the save_states table. Run the migrations first.
type PostgresStore struct {
	gorm *gorm.DB
	sql  *sql.DB
}

// OpenPostgres connects and pings the server.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	sdb, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sdb.SetConnMaxLifetime(30 * time.Minute)
	sdb.SetMaxOpenConns(4)
	sdb.SetMaxIdleConns(2)
	if err := sdb.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}
	return &PostgresStore{gorm: gdb, sql: sdb}, nil
}

func (p *PostgresStore) Close() error { return p.sql.Close() }

// WithTx executes fn within a database transaction.
func (p *PostgresStore) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return p.gorm.WithContext(ctx).Transaction(fn)
}

func (p *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	row := p.gorm.WithContext(ctx).Raw(`SELECT blob FROM save_states WHERE key = ?`, key).Row()
	var blob string
	if err := row.Scan(&blob); err != nil {
		if errs.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return []byte(blob), nil
}

func (p *PostgresStore) Save(ctx context.Context, key string, blob []byte) error {
	return p.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Exec(`INSERT INTO save_states(key, blob, updated_at) VALUES (?,?,now())
	ON CONFLICT (key) DO UPDATE SET blob=EXCLUDED.blob, updated_at=EXCLUDED.updated_at`, key, string(blob)).Error
	})
}

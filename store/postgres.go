package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "auth_credentials"

// PostgresStore keeps credentials in a single key/value table.
//
// Schema (see [PostgresStore.EnsureSchema]):
//
//	key        text primary key
//	value      text not null
//	updated_at timestamptz not null default now()
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore returns a store using table (optionally schema-qualified,
// e.g. "app.credentials"). An empty table name defaults to "auth_credentials".
func NewPostgresStore(pool *pgxpool.Pool, table string) *PostgresStore {
	table = strings.TrimSpace(table)
	if table == "" {
		table = defaultPostgresTable
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier(strings.Split(table, ".")).Sanitize(),
	}
}

// EnsureSchema creates the credentials table when it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+s.table+` (
			key        text PRIMARY KEY,
			value      text NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: ensure schema: %w", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value for key and whether it was present.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}

	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM `+s.table+` WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return value, true, nil
}

// Set upserts value under key.
func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if _, err := s.pool.Exec(ctx, s.upsertSQL(), key, value); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE key = $1`, key); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// SetMany upserts every entry inside one transaction.
func (s *PostgresStore) SetMany(ctx context.Context, values map[string]string) error {
	for k := range values {
		if strings.TrimSpace(k) == "" {
			return ErrEmptyKey
		}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			if _, err := tx.Exec(ctx, s.upsertSQL(), k, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// DeleteMany removes every key in a single statement.
func (s *PostgresStore) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE key = ANY($1)`, keys); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) upsertSQL() string {
	return `
		INSERT INTO ` + s.table + ` (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
}

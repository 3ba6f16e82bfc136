// Package sqlite provides a SQLite-backed record store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"holder-roles/internal/observability"
	"holder-roles/internal/storage"
	"holder-roles/internal/storage/migrations"
)

const database = "sqlite"

// Store persists records in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.RecordStore = (*Store)(nil)

// Open opens a SQLite record store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrations.RunSQLiteMigrations(context.Background(), sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Read returns the document at key.
func (s *Store) Read(ctx context.Context, key string) (value string, err error) {
	defer observe("read", time.Now(), &err)

	err = s.sqlDB.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read record %s: %w", key, err)
	}
	return value, nil
}

// Write replaces the document at key.
func (s *Store) Write(ctx context.Context, key, value string) (err error) {
	if key == "" {
		return storage.ErrInvalidInput
	}
	defer observe("write", time.Now(), &err)

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO records (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	return nil
}

// List returns keys starting with prefix in byte order.
func (s *Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer observe("list", time.Now(), &err)

	// substr avoids LIKE wildcards in the prefix.
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT key FROM records
WHERE substr(key, 1, length(?1)) = ?1
ORDER BY key
`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	keys = make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan record key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return keys, nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) (err error) {
	defer observe("remove", time.Now(), &err)

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("remove record %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove record %s: %w", key, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func observe(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery(database, operation, time.Since(start).Seconds(), err)
}

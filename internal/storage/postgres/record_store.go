package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"holder-roles/internal/observability"
	"holder-roles/internal/storage"
)

const database = "postgres"

// RecordStore implements storage.RecordStore using PostgreSQL.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

// Read returns the document at key. Returns ErrNotFound if not exists.
func (s *RecordStore) Read(ctx context.Context, key string) (value string, err error) {
	defer observe("read", time.Now(), &err)

	query := `SELECT value FROM records WHERE key = $1`

	if err := s.pool.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("read record %s: %w", key, err)
	}
	return value, nil
}

// Write replaces the document at key in a single statement.
func (s *RecordStore) Write(ctx context.Context, key, value string) (err error) {
	if key == "" {
		return storage.ErrInvalidInput
	}
	defer observe("write", time.Now(), &err)

	query := `
		INSERT INTO records (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := s.pool.Exec(ctx, query, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	return nil
}

// List returns keys starting with prefix in byte order.
func (s *RecordStore) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer observe("list", time.Now(), &err)

	query := `
		SELECT key FROM records
		WHERE starts_with(key, $1)
		ORDER BY key COLLATE "C"
	`

	rows, err := s.pool.Query(ctx, query, prefix)
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

// Remove deletes key. Returns ErrNotFound if not exists.
func (s *RecordStore) Remove(ctx context.Context, key string) (err error) {
	defer observe("remove", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("remove record %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// observe records query latency. ErrNotFound is a normal outcome, not a failure.
func observe(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery(database, operation, time.Since(start).Seconds(), err)
}

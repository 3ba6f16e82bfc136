package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"holder-roles/internal/storage/postgres"
)

// postgresMigrationLock is the pg_advisory_xact_lock key held while migrating,
// so several holderd processes starting together apply each file once.
const postgresMigrationLock = 0x686f6c64 // "hold"

// RunPostgresMigrations applies every embedded PostgreSQL file not yet recorded
// in schema_migrations, one transaction per file.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := migrationFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		data, err := fs.ReadFile(PostgresFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		upSQL := extractUpMigration(string(data))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		err = pool.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", postgresMigrationLock); err != nil {
				return fmt.Errorf("lock: %w", err)
			}

			var found int
			err := tx.QueryRow(ctx, "SELECT 1 FROM schema_migrations WHERE name = $1", name).Scan(&found)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("check: %w", err)
			}

			if _, err := tx.Exec(ctx, upSQL); err != nil {
				return fmt.Errorf("apply: %w", err)
			}
			_, err = tx.Exec(ctx,
				"INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)",
				name, time.Now().UTC().UnixMilli(),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %s: %w", name, err)
		}
	}

	return nil
}

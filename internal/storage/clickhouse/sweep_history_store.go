package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
	"holder-roles/internal/storage"
)

const database = "clickhouse"

// SweepHistoryStore implements storage.SweepHistoryStore using ClickHouse.
type SweepHistoryStore struct {
	conn *Conn
}

// NewSweepHistoryStore creates a new SweepHistoryStore.
func NewSweepHistoryStore(conn *Conn) *SweepHistoryStore {
	return &SweepHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SweepHistoryStore = (*SweepHistoryStore)(nil)

// Insert appends a sweep. Returns ErrDuplicateKey if sweep_id exists.
func (s *SweepHistoryStore) Insert(ctx context.Context, r *domain.SweepRecord) (err error) {
	if r == nil || r.Project == "" {
		return storage.ErrInvalidInput
	}
	id, err := uuid.Parse(r.SweepID)
	if err != nil {
		return fmt.Errorf("%w: sweep id %q", storage.ErrInvalidInput, r.SweepID)
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery(database, "insert_sweep", time.Since(start).Seconds(), err)
	}()

	// MergeTree does not enforce uniqueness.
	exists, err := s.exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO sweep_history (
			sweep_id, project, started_at, finished_at, read_only, holders,
			added, removed, skipped, unchanged, errors, donations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	m := r.Metrics
	err = s.conn.Exec(ctx, query,
		id, r.Project, uint64(r.StartedAt), uint64(r.FinishedAt), r.ReadOnly, uint32(r.Holders),
		uint32(m.Added), uint32(m.Removed), uint32(m.Skipped), uint32(m.Unchanged), uint32(m.Error), uint32(m.Donations),
	)
	if err != nil {
		return fmt.Errorf("insert sweep: %w", err)
	}
	return nil
}

// GetByProject retrieves sweeps of a project ordered by started_at descending.
func (s *SweepHistoryStore) GetByProject(ctx context.Context, project string, limit int) (result []*domain.SweepRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery(database, "get_sweeps", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT
			sweep_id, project, started_at, finished_at, read_only, holders,
			added, removed, skipped, unchanged, errors, donations
		FROM sweep_history
		WHERE project = ?
		ORDER BY started_at DESC, sweep_id ASC
	`
	args := []any{project}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, uint64(limit))
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by project: %w", err)
	}
	defer rows.Close()

	return scanSweepRecords(rows)
}

func (s *SweepHistoryStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM sweep_history WHERE sweep_id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanSweepRecords(rows driver.Rows) ([]*domain.SweepRecord, error) {
	var result []*domain.SweepRecord
	for rows.Next() {
		var (
			id                                                uuid.UUID
			project                                           string
			startedAt, finishedAt                             uint64
			readOnly                                          bool
			holders, added, removed, skipped, unchanged, errs uint32
			donations                                         uint32
		)
		if err := rows.Scan(
			&id, &project, &startedAt, &finishedAt, &readOnly, &holders,
			&added, &removed, &skipped, &unchanged, &errs, &donations,
		); err != nil {
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		result = append(result, &domain.SweepRecord{
			SweepID:    id.String(),
			Project:    project,
			StartedAt:  int64(startedAt),
			FinishedAt: int64(finishedAt),
			ReadOnly:   readOnly,
			Holders:    int(holders),
			Metrics: domain.Metrics{
				Added:     int(added),
				Removed:   int(removed),
				Skipped:   int(skipped),
				Unchanged: int(unchanged),
				Error:     int(errs),
				Donations: int(donations),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweeps: %w", err)
	}
	return result, nil
}

package storage

import (
	"context"

	"holder-roles/internal/domain"
)

// RecordStore is a flat key/value document store.
// Every write replaces the whole document; readers never observe a partial write.
type RecordStore interface {
	// Read returns the document at key. Returns ErrNotFound if absent.
	Read(ctx context.Context, key string) (string, error)

	// Write stores value at key, replacing any previous document.
	Write(ctx context.Context, key, value string) error

	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Remove deletes key. Returns ErrNotFound if absent.
	Remove(ctx context.Context, key string) error
}

// SweepHistoryStore keeps an append-only log of completed sweeps.
type SweepHistoryStore interface {
	// Insert appends a sweep. Returns ErrDuplicateKey if the sweep id exists.
	Insert(ctx context.Context, r *domain.SweepRecord) error

	// GetByProject returns the most recent sweeps of project, newest first.
	// A limit of zero or less returns every sweep.
	GetByProject(ctx context.Context, project string, limit int) ([]*domain.SweepRecord, error)
}

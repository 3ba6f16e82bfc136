package memory

import (
	"context"
	"sort"
	"sync"

	"holder-roles/internal/domain"
	"holder-roles/internal/storage"
)

// SweepHistoryStore is an in-memory implementation of storage.SweepHistoryStore.
type SweepHistoryStore struct {
	mu     sync.RWMutex
	sweeps []*domain.SweepRecord
	ids    map[string]struct{}
}

// NewSweepHistoryStore creates a new in-memory sweep history store.
func NewSweepHistoryStore() *SweepHistoryStore {
	return &SweepHistoryStore{
		ids: make(map[string]struct{}),
	}
}

// Insert appends a sweep. Returns ErrDuplicateKey if sweep_id already exists.
func (s *SweepHistoryStore) Insert(_ context.Context, r *domain.SweepRecord) error {
	if r == nil || r.SweepID == "" || r.Project == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[r.SweepID]; exists {
		return storage.ErrDuplicateKey
	}

	recordCopy := *r
	s.sweeps = append(s.sweeps, &recordCopy)
	s.ids[r.SweepID] = struct{}{}
	return nil
}

// GetByProject returns sweeps of project ordered by started_at descending.
func (s *SweepHistoryStore) GetByProject(_ context.Context, project string, limit int) ([]*domain.SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SweepRecord
	for _, r := range s.sweeps {
		if r.Project == project {
			recordCopy := *r
			result = append(result, &recordCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt > result[j].StartedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.SweepHistoryStore = (*SweepHistoryStore)(nil)

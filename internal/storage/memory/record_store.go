package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"holder-roles/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
type RecordStore struct {
	mu      sync.RWMutex
	records map[string]string // keyed by record key
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[string]string),
	}
}

// Read returns the document at key. Returns ErrNotFound if not exists.
func (s *RecordStore) Read(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, exists := s.records[key]
	if !exists {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// Write replaces the document at key.
func (s *RecordStore) Write(_ context.Context, key, value string) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = value
	return nil
}

// List returns keys with prefix, sorted.
func (s *RecordStore) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Remove deletes key. Returns ErrNotFound if not exists.
func (s *RecordStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[key]; !exists {
		return storage.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

var _ storage.RecordStore = (*RecordStore)(nil)

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"holder-roles/internal/domain"
)

// Key layout of project documents in a RecordStore.
const (
	configPrefix        = "config/prod-"
	holdersPrefix       = "holders/prod-"
	documentSuffix      = ".json"
	revalidationSuccess = "status/revalidation-success"
)

// ConfigKey returns the key of a project's configuration document.
func ConfigKey(project string) string {
	return configPrefix + project + documentSuffix
}

// HoldersKey returns the key of a project's holder collection.
func HoldersKey(project string) string {
	return holdersPrefix + project + documentSuffix
}

// ProjectStore reads and writes project documents as JSON on a RecordStore.
type ProjectStore struct {
	records RecordStore
}

// NewProjectStore creates a ProjectStore.
func NewProjectStore(records RecordStore) *ProjectStore {
	return &ProjectStore{records: records}
}

// Records returns the underlying record store.
func (s *ProjectStore) Records() RecordStore {
	return s.records
}

// Config loads a project configuration. Returns ErrNotFound if absent.
func (s *ProjectStore) Config(ctx context.Context, project string) (*domain.ProjectConfig, error) {
	if project == "" {
		return nil, ErrInvalidInput
	}
	raw, err := s.records.Read(ctx, ConfigKey(project))
	if err != nil {
		return nil, err
	}
	var cfg domain.ProjectConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of %s: %w", project, err)
	}
	return &cfg, nil
}

// SaveConfig replaces a project configuration.
func (s *ProjectStore) SaveConfig(ctx context.Context, project string, cfg *domain.ProjectConfig) error {
	if project == "" || cfg == nil {
		return ErrInvalidInput
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config of %s: %w", project, err)
	}
	return s.records.Write(ctx, ConfigKey(project), string(raw))
}

// Holders loads a project's holder collection. A missing document is an empty collection.
func (s *ProjectStore) Holders(ctx context.Context, project string) ([]*domain.HolderRecord, error) {
	if project == "" {
		return nil, ErrInvalidInput
	}
	raw, err := s.records.Read(ctx, HoldersKey(project))
	if errors.Is(err, ErrNotFound) {
		return []*domain.HolderRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var holders []*domain.HolderRecord
	if err := json.Unmarshal([]byte(raw), &holders); err != nil {
		return nil, fmt.Errorf("decode holders of %s: %w", project, err)
	}
	if holders == nil {
		holders = []*domain.HolderRecord{}
	}
	return holders, nil
}

// SaveHolders replaces a project's holder collection.
func (s *ProjectStore) SaveHolders(ctx context.Context, project string, holders []*domain.HolderRecord) error {
	if project == "" {
		return ErrInvalidInput
	}
	if holders == nil {
		holders = []*domain.HolderRecord{}
	}
	raw, err := json.Marshal(holders)
	if err != nil {
		return fmt.Errorf("encode holders of %s: %w", project, err)
	}
	return s.records.Write(ctx, HoldersKey(project), string(raw))
}

// Projects lists every project with a configuration document, sorted by name.
func (s *ProjectStore) Projects(ctx context.Context) ([]string, error) {
	keys, err := s.records.List(ctx, configPrefix)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	projects := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, configPrefix), documentSuffix)
		if name != "" && strings.HasSuffix(key, documentSuffix) {
			projects = append(projects, name)
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// RemoveProject deletes a project's configuration and holder collection.
// Returns ErrNotFound if the project has no configuration.
func (s *ProjectStore) RemoveProject(ctx context.Context, project string) error {
	if project == "" {
		return ErrInvalidInput
	}
	if err := s.records.Remove(ctx, ConfigKey(project)); err != nil {
		return err
	}
	if err := s.records.Remove(ctx, HoldersKey(project)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// MarkRevalidated records the time of the last successful revalidation batch.
func (s *ProjectStore) MarkRevalidated(ctx context.Context, at time.Time) error {
	return s.records.Write(ctx, revalidationSuccess, strconv.FormatInt(at.UnixMilli(), 10))
}

// LastRevalidated returns the time of the last successful revalidation batch.
// Returns ErrNotFound if none was recorded.
func (s *ProjectStore) LastRevalidated(ctx context.Context) (time.Time, error) {
	raw, err := s.records.Read(ctx, revalidationSuccess)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode revalidation timestamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

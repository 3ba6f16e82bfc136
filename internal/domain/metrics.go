package domain

// Metrics aggregates the outcome of one reconciliation sweep.
// Created fresh per sweep and returned to the caller.
type Metrics struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Skipped   int `json:"skipped"`
	Unchanged int `json:"unchanged"`
	Error     int `json:"error"`
	Donations int `json:"donations"`
}

// Add accumulates other into m.
func (m *Metrics) Add(other Metrics) {
	m.Added += other.Added
	m.Removed += other.Removed
	m.Skipped += other.Skipped
	m.Unchanged += other.Unchanged
	m.Error += other.Error
	m.Donations += other.Donations
}

// BatchMetrics aggregates sweeps across all projects.
// Projects counts reloads that succeeded and Failed the ones that did not.
type BatchMetrics struct {
	Projects int `json:"projects"`
	Failed   int `json:"failed"`
	Metrics
}

// SweepRecord is an append-only history row for one completed sweep.
type SweepRecord struct {
	SweepID    string // uuid
	Project    string
	StartedAt  int64 // unix ms
	FinishedAt int64 // unix ms
	ReadOnly   bool
	Holders    int // holders loaded at sweep start
	Metrics    Metrics
}

// Package reconcile keeps granted directory roles in line with what holders earn on chain.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"holder-roles/internal/concurrency"
	"holder-roles/internal/directory"
	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
	"holder-roles/internal/storage"
)

// DefaultHolderConcurrency bounds concurrent holder pipelines within one sweep.
const DefaultHolderConcurrency = 10

// Wallets computes entitlements from on-chain state.
// Implemented by verify.WalletLoader.
type Wallets interface {
	Evaluate(ctx context.Context, address string, cfg *domain.ProjectConfig) (domain.Entitlement, error)
	LastTransaction(ctx context.Context, address string) string
}

// Options configures a Reconciler.
type Options struct {
	Projects    *storage.ProjectStore
	Wallets     Wallets
	Directories directory.Factory

	// Section serializes every directory mutation in the process.
	// A private section is created when nil.
	Section *concurrency.ExclusiveSection

	// History receives one row per completed sweep. Optional.
	History storage.SweepHistoryStore

	HolderConcurrency int
	ReloadInterval    time.Duration

	// ReadOnly suppresses role removals and all persistence of sweep results.
	ReadOnly bool

	// CommunityDonation is the cumulative donation count that upgrades a project to premium.
	// Zero disables the upgrade.
	CommunityDonation int

	// MaxFreeVerifications caps enrollments of non-premium projects. Zero or less is unlimited.
	MaxFreeVerifications int

	Logger *log.Logger
	Now    func() time.Time
}

// Reconciler runs reconciliation sweeps and enrollments.
type Reconciler struct {
	projects             *storage.ProjectStore
	wallets              Wallets
	directories          directory.Factory
	section              *concurrency.ExclusiveSection
	history              storage.SweepHistoryStore
	holderConcurrency    int
	reloadInterval       time.Duration
	readOnly             bool
	communityDonation    int
	maxFreeVerifications int
	logger               *log.Logger
	now                  func() time.Time
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	r := &Reconciler{
		projects:             opts.Projects,
		wallets:              opts.Wallets,
		directories:          opts.Directories,
		section:              opts.Section,
		history:              opts.History,
		holderConcurrency:    opts.HolderConcurrency,
		reloadInterval:       opts.ReloadInterval,
		readOnly:             opts.ReadOnly,
		communityDonation:    opts.CommunityDonation,
		maxFreeVerifications: opts.MaxFreeVerifications,
		logger:               opts.Logger,
		now:                  opts.Now,
	}
	if r.section == nil {
		r.section = concurrency.NewExclusiveSection()
	}
	if r.holderConcurrency <= 0 {
		r.holderConcurrency = DefaultHolderConcurrency
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard, "", 0)
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Reconcile runs one sweep over every holder of project.
//
// A missing project, a project without verifications, or one swept less than
// ReloadInterval ago yields empty metrics. Per-holder failures are counted in
// the metrics and never returned; the error reports store or directory setup
// failures only.
func (r *Reconciler) Reconcile(ctx context.Context, project string) (domain.Metrics, error) {
	var metrics domain.Metrics

	ctx, span := observability.Tracer().Start(ctx, "reconcile.sweep")
	defer span.End()
	span.SetAttributes(attribute.String("project", project), attribute.Bool("read_only", r.readOnly))

	if r.readOnly {
		r.logger.Printf("reloading project %s in read-only mode", project)
	} else {
		r.logger.Printf("reloading project %s in write mode", project)
	}

	cfg, err := r.projects.Config(ctx, project)
	if errors.Is(err, storage.ErrNotFound) {
		r.logger.Printf("project %s not found", project)
		return metrics, nil
	}
	if err != nil {
		return metrics, r.fail(span, fmt.Errorf("load config of %s: %w", project, err))
	}

	if cfg.Verifications <= 0 {
		r.logger.Printf("not yet any verifications for %s", project)
		return metrics, nil
	}

	started := r.now()
	elapsed := started.Sub(time.UnixMilli(cfg.LastReload))
	if elapsed < r.reloadInterval {
		r.logger.Printf("reload not currently required for %s, last reload %v ago", project, elapsed.Round(time.Second))
		return metrics, nil
	}

	// Stamped before any holder work so an overlapping sweep sees it early.
	cfg.LastReload = started.UnixMilli()
	if err := r.projects.SaveConfig(ctx, project, cfg); err != nil {
		return metrics, r.fail(span, fmt.Errorf("stamp reload of %s: %w", project, err))
	}

	dir, err := r.directories.For(cfg)
	if err != nil {
		r.logger.Printf("directory client not initialized for %s: %v", project, err)
		return metrics, r.fail(span, fmt.Errorf("%w: %s: %v", ErrDirectoryUnavailable, project, err))
	}

	holders, err := r.projects.Holders(ctx, project)
	if err != nil {
		return metrics, r.fail(span, fmt.Errorf("load holders of %s: %w", project, err))
	}

	results := make([]*domain.HolderRecord, len(holders))
	outcomes := make([]domain.Metrics, len(holders))

	group := concurrency.NewTaskGroup(r.holderConcurrency)
	submitted := 0
	for i, h := range holders {
		err := group.Go(ctx, func() {
			results[i], outcomes[i] = r.reconcileHolder(ctx, project, cfg, dir, h)
		})
		if err != nil {
			// Unsubmitted holders are kept as they were.
			r.logger.Printf("project %s: stopped submitting holders at %d/%d: %v", project, i, len(holders), err)
			break
		}
		submitted++
	}

	r.logger.Printf("waiting for %s holders %d to complete", project, submitted)
	group.Wait()

	updated := make([]*domain.HolderRecord, 0, len(holders))
	for i := range holders {
		if i >= submitted {
			updated = append(updated, holders[i])
			continue
		}
		metrics.Add(outcomes[i])
		if results[i] != nil {
			updated = append(updated, results[i])
		}
	}

	status := "ok"
	if !r.readOnly {
		if err := r.persist(ctx, project, cfg, updated, metrics); err != nil {
			status = "error"
			r.record(ctx, project, started, len(holders), metrics, status)
			return metrics, r.fail(span, err)
		}
	}

	r.record(ctx, project, started, len(holders), metrics, status)
	r.logger.Printf("reloaded roles for %s in %v with results %+v", project, r.now().Sub(started).Round(time.Millisecond), metrics)
	return metrics, ctx.Err()
}

func (r *Reconciler) persist(ctx context.Context, project string, cfg *domain.ProjectConfig, holders []*domain.HolderRecord, metrics domain.Metrics) error {
	r.logger.Printf("updating %s holder list with %d users", project, len(holders))
	if err := r.projects.SaveHolders(ctx, project, holders); err != nil {
		return fmt.Errorf("save holders of %s: %w", project, err)
	}

	cfg.Donations += metrics.Donations
	r.logger.Printf("updating %s config with %d donations", project, cfg.Donations)
	if !cfg.IsHolder && r.communityDonation > 0 && cfg.Donations >= r.communityDonation {
		r.logger.Printf("project %s upgraded by community donations %d", project, cfg.Donations)
		cfg.IsHolder = true
	}
	if err := r.projects.SaveConfig(ctx, project, cfg); err != nil {
		return fmt.Errorf("save config of %s: %w", project, err)
	}
	return nil
}

// record publishes the sweep to metrics and the optional history store.
func (r *Reconciler) record(ctx context.Context, project string, started time.Time, holders int, metrics domain.Metrics, status string) {
	finished := r.now()
	observability.RecordSweep(status, finished.Sub(started).Seconds(), metrics)

	if r.history == nil {
		return
	}
	rec := &domain.SweepRecord{
		SweepID:    uuid.NewString(),
		Project:    project,
		StartedAt:  started.UnixMilli(),
		FinishedAt: finished.UnixMilli(),
		ReadOnly:   r.readOnly,
		Holders:    holders,
		Metrics:    metrics,
	}
	if err := r.history.Insert(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Printf("project %s: record sweep history: %v", project, err)
	}
}

func (r *Reconciler) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

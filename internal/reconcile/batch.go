package reconcile

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"holder-roles/internal/concurrency"
	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
)

// DefaultProjectConcurrency bounds concurrent project sweeps within one batch.
const DefaultProjectConcurrency = 10

// BatchOptions configures a Batch.
type BatchOptions struct {
	Reconciler         *Reconciler
	ProjectConcurrency int
	Logger             *log.Logger
}

// Batch revalidates every project.
type Batch struct {
	reconciler         *Reconciler
	projectConcurrency int
	logger             *log.Logger
}

// NewBatch creates a Batch.
func NewBatch(opts BatchOptions) *Batch {
	b := &Batch{
		reconciler:         opts.Reconciler,
		projectConcurrency: opts.ProjectConcurrency,
		logger:             opts.Logger,
	}
	if b.projectConcurrency <= 0 {
		b.projectConcurrency = DefaultProjectConcurrency
	}
	if b.logger == nil {
		b.logger = log.New(io.Discard, "", 0)
	}
	return b
}

// Run sweeps every project and aggregates the results. A failing project is
// logged and counted in Failed; it never stops the batch. The revalidation
// timestamp is written once all projects have finished.
func (b *Batch) Run(ctx context.Context) domain.BatchMetrics {
	var (
		mu    sync.Mutex
		total domain.BatchMetrics
	)

	ctx, span := observability.Tracer().Start(ctx, "reconcile.batch")
	defer span.End()

	start := time.Now()
	status := "ok"

	b.logger.Printf("loading all projects for holder revalidation")
	projects, err := b.reconciler.projects.Projects(ctx)
	if err != nil {
		b.logger.Printf("error retrieving project list: %v", err)
		status = "error"
	}
	b.logger.Printf("retrieved %d projects", len(projects))

	group := concurrency.NewTaskGroup(b.projectConcurrency)
	for _, project := range projects {
		err := group.Go(ctx, func() {
			defer func() {
				if p := recover(); p != nil {
					b.logger.Printf("error reloading project %s: panic: %v", project, p)
					mu.Lock()
					total.Failed++
					mu.Unlock()
				}
			}()

			m, err := b.reconciler.Reconcile(ctx, project)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				b.logger.Printf("error reloading project %s: %v", project, err)
				total.Failed++
			} else {
				total.Projects++
			}
			total.Add(m)
		})
		if err != nil {
			b.logger.Printf("batch cancelled before scheduling %s: %v", project, err)
			status = "error"
			break
		}
	}

	b.logger.Printf("waiting for %d projects to complete", len(projects))
	group.Wait()

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("projects", total.Projects), attribute.Int("failed", total.Failed))
	b.logger.Printf("holder revalidation completed in %v, results: %+v", elapsed.Round(time.Millisecond), total)

	now := b.reconciler.now()
	if err := b.reconciler.projects.MarkRevalidated(context.WithoutCancel(ctx), now); err != nil {
		b.logger.Printf("error writing revalidation timestamp: %v", err)
		status = "error"
	} else {
		observability.UpdateLastRevalidation(now.Unix())
	}
	observability.RecordBatch(status, elapsed.Seconds())

	return total
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"holder-roles/internal/concurrency"
	"holder-roles/internal/config"
	"holder-roles/internal/directory"
	"holder-roles/internal/metadata"
	"holder-roles/internal/observability"
	"holder-roles/internal/reconcile"
	"holder-roles/internal/solana"
	"holder-roles/internal/storage"
	chstore "holder-roles/internal/storage/clickhouse"
	"holder-roles/internal/storage/memory"
	"holder-roles/internal/storage/migrations"
	pgstore "holder-roles/internal/storage/postgres"
	"holder-roles/internal/storage/sqlite"
	"holder-roles/internal/verify"
)

const serviceName = "holderd"

// app holds the wired components shared by every subcommand.
type app struct {
	cfg        *config.Config
	projects   *storage.ProjectStore
	history    storage.SweepHistoryStore
	reconciler *reconcile.Reconciler
	batch      *reconcile.Batch
	rpc        *solana.HTTPClient
	logger     *log.Logger

	cleanup []func()
}

// newLogger returns a component logger in the process-wide format.
// Logs go to stderr so command output on stdout stays machine readable.
func newLogger(component string) *log.Logger {
	return log.New(os.Stderr, "["+component+"] ", log.LstdFlags|log.Lshortfile)
}

// newApp opens the stores and wires the reconciliation engine from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: newLogger(serviceName)}

	shutdown, err := observability.SetupTracing(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.cleanup = append(a.cleanup, func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Printf("Tracing shutdown error: %v", err)
		}
	})

	records, err := a.openRecords(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.projects = storage.NewProjectStore(records)

	if err := a.openHistory(ctx); err != nil {
		a.Close()
		return nil, err
	}

	// One limiter and one exclusive section for the whole process: every
	// project and holder shares the RPC budget and the directory lock.
	limiter := concurrency.NewLimiter(cfg.RPCConcurrency)
	section := concurrency.NewExclusiveSection()

	// Retries live in the wallet loader, so the transport makes a single attempt.
	a.rpc = solana.NewHTTPClient(cfg.RPCEndpoint, solana.WithMaxRetries(0), solana.WithTimeout(cfg.RPCTimeout))
	retry := verify.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.RPCMaxAttempts

	wallets := verify.NewWalletLoader(verify.LoaderOptions{
		Chain:               solana.NewChainClient(a.rpc, newLogger("solana")),
		Metadata:            metadata.NewHTTPFetcher(),
		Limiter:             limiter,
		Retry:               retry,
		DonationAuthority:   cfg.DonationAuthority,
		MetadataConcurrency: cfg.MetadataConcurrency,
		Logger:              newLogger("verify"),
	})

	var dirOpts []directory.Option
	if cfg.DiscordAPIBase != "" {
		dirOpts = append(dirOpts, directory.WithAPIBase(cfg.DiscordAPIBase))
	}

	a.reconciler = reconcile.New(reconcile.Options{
		Projects:             a.projects,
		Wallets:              wallets,
		Directories:          directory.NewDiscordFactory(cfg.DiscordBotToken, dirOpts...),
		Section:              section,
		History:              a.history,
		HolderConcurrency:    cfg.HolderConcurrency,
		ReloadInterval:       cfg.ReloadInterval(),
		ReadOnly:             cfg.DisableRemoveRoles,
		CommunityDonation:    cfg.CommunityDonation,
		MaxFreeVerifications: cfg.MaxFreeVerifications,
		Logger:               newLogger("reconcile"),
	})
	a.batch = reconcile.NewBatch(reconcile.BatchOptions{
		Reconciler:         a.reconciler,
		ProjectConcurrency: cfg.ProjectConcurrency,
		Logger:             newLogger("batch"),
	})

	if cfg.DisableRemoveRoles {
		a.logger.Println("Read-only mode: roles are never revoked and results are not persisted")
	}
	return a, nil
}

// openRecords opens the record store selected by STORE_DRIVER.
func (a *app) openRecords(ctx context.Context) (storage.RecordStore, error) {
	switch a.cfg.StoreDriver {
	case config.DriverMemory:
		return memory.NewRecordStore(), nil

	case config.DriverSQLite:
		store, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.cleanup = append(a.cleanup, func() { store.Close() })
		return store, nil

	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.cleanup = append(a.cleanup, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return pgstore.NewRecordStore(pool), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
}

// openHistory connects the sweep history store. Without CLICKHOUSE_DSN,
// history is kept in memory for the lifetime of the process.
func (a *app) openHistory(ctx context.Context) error {
	if a.cfg.ClickhouseDSN == "" {
		a.history = memory.NewSweepHistoryStore()
		return nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, a.cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { conn.Close() })
	a.history = chstore.NewSweepHistoryStore(conn)
	return nil
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

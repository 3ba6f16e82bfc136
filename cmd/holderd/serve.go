package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"holder-roles/internal/domain"
	"holder-roles/internal/observability"
)

// shutdownTimeout bounds graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		interval time.Duration
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Revalidate every project periodically",
		Long: `Run a revalidation batch immediately and then on every interval.

Serves /health, /ready, /metrics and /status on the metrics address. A batch that is
still running when the next tick fires is not overlapped; the tick is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rootOpts.Config
			if cmd.Flags().Changed("interval") {
				cfg.RevalidateInterval = interval
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = addr
			}
			return serve(cmd.Context(), rootOpts)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Hour, "revalidation interval, overrides REVALIDATE_INTERVAL")
	cmd.Flags().StringVar(&addr, "metrics-addr", ":9090", "health/metrics/status HTTP address, overrides METRICS_ADDR")

	return cmd
}

func serve(parent context.Context, opts *RootOptions) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	ready := func(ctx context.Context) error {
		_, err := a.rpc.GetSlot(ctx)
		return err
	}
	server := NewServer(a.batch.Run, ready, opts.Config.RevalidateInterval, a.logger)

	// Channel to signal completion
	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			a.logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			a.logger.Printf("Graceful shutdown timed out after %v, forcing exit", shutdownTimeout)
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := &http.Server{
		Addr:              opts.Config.MetricsAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.logger.Printf("Starting HTTP server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Printf("HTTP server error: %v", err)
		}
	}()

	err = server.Run(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		a.logger.Printf("HTTP server shutdown error: %v", serr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Println("Shutdown complete")
	return nil
}

// RevalidateFunc runs one batch over every project.
type RevalidateFunc func(ctx context.Context) domain.BatchMetrics

// ReadyFunc reports whether upstream dependencies answer.
type ReadyFunc func(ctx context.Context) error

// readyTimeout bounds one readiness probe.
const readyTimeout = 5 * time.Second

// Server schedules revalidation batches and reports their state.
type Server struct {
	revalidate RevalidateFunc
	ready      ReadyFunc
	interval   time.Duration
	logger     *log.Logger
	now        func() time.Time

	mu         sync.Mutex
	started    time.Time
	lastRun    time.Time
	lastResult domain.BatchMetrics
	running    bool
	runs       int
	skipped    int
}

// NewServer creates a Server. A nil ready func always reports ready.
func NewServer(revalidate RevalidateFunc, ready ReadyFunc, interval time.Duration, logger *log.Logger) *Server {
	return &Server{
		revalidate: revalidate,
		ready:      ready,
		interval:   interval,
		logger:     logger,
		now:        time.Now,
	}
}

// Run revalidates immediately and then on every tick until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	s.logger.Printf("Starting revalidation scheduler (interval: %v)...", s.interval)

	go s.runRevalidation(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			go s.runRevalidation(ctx)
		}
	}
}

// runRevalidation executes one batch unless one is already in progress.
// A panicking batch is logged and releases the guard for the next tick.
func (s *Server) runRevalidation(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.skipped++
		s.mu.Unlock()
		s.logger.Println("Revalidation already running, skipping...")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		if p := recover(); p != nil {
			s.logger.Printf("Revalidation panicked: %v", p)
		}
	}()

	s.logger.Println("Running revalidation...")
	start := s.now()

	result := s.revalidate(ctx)

	s.mu.Lock()
	s.lastRun = s.now()
	s.lastResult = result
	s.runs++
	s.mu.Unlock()

	s.logger.Printf("Revalidation completed in %v: %d projects, %d failed, +%d -%d roles, %d errors",
		time.Since(start), result.Projects, result.Failed, result.Added, result.Removed, result.Error)
}

// Handler returns the health, readiness, metrics and status routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readiness: the chain RPC endpoint answers
	mux.HandleFunc("/ready", s.handleReady)

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", s.handleStatus)

	return mux
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			http.Error(w, "rpc unavailable: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status     string              `json:"status"`
	Uptime     string              `json:"uptime"`
	Started    time.Time           `json:"started"`
	Interval   string              `json:"interval"`
	LastRun    time.Time           `json:"last_run,omitempty"`
	LastResult domain.BatchMetrics `json:"last_result"`
	Runs       int                 `json:"runs"`
	Skipped    int                 `json:"skipped"`
	Running    bool                `json:"running"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Uptime:     s.now().Sub(s.started).Round(time.Second).String(),
		Started:    s.started,
		Interval:   s.interval.String(),
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
		Runs:       s.runs,
		Skipped:    s.skipped,
		Running:    s.running,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

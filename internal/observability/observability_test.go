package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"holder-roles/internal/domain"
)

func TestRecordSweep_AddsHolderOutcomes(t *testing.T) {
	added := testutil.ToFloat64(DefaultMetrics.HolderOutcomes.WithLabelValues("added"))
	skipped := testutil.ToFloat64(DefaultMetrics.HolderOutcomes.WithLabelValues("skipped"))
	sweeps := testutil.ToFloat64(DefaultMetrics.SweepsTotal.WithLabelValues("ok"))

	RecordSweep("ok", 1.5, domain.Metrics{Added: 2, Skipped: 3})

	if got := testutil.ToFloat64(DefaultMetrics.HolderOutcomes.WithLabelValues("added")) - added; got != 2 {
		t.Errorf("added delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.HolderOutcomes.WithLabelValues("skipped")) - skipped; got != 3 {
		t.Errorf("skipped delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.SweepsTotal.WithLabelValues("ok")) - sweeps; got != 1 {
		t.Errorf("sweeps delta = %v, want 1", got)
	}
}

func TestRecordRPCCall_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("test_method"))

	RecordRPCCall("test_method", 0.01, nil)
	RecordRPCCall("test_method", 0.01, errors.New("timeout"))

	if got := testutil.ToFloat64(DefaultMetrics.RPCCallErrors.WithLabelValues("test_method")) - before; got != 1 {
		t.Errorf("error delta = %v, want 1", got)
	}
}

func TestRecordDirectoryCall_Status(t *testing.T) {
	ok := testutil.ToFloat64(DefaultMetrics.DirectoryCalls.WithLabelValues("add_role", "ok"))
	failed := testutil.ToFloat64(DefaultMetrics.DirectoryCalls.WithLabelValues("add_role", "error"))

	RecordDirectoryCall("add_role", nil)
	RecordDirectoryCall("add_role", errors.New("forbidden"))
	RecordDirectoryCall("add_role", errors.New("forbidden"))

	if got := testutil.ToFloat64(DefaultMetrics.DirectoryCalls.WithLabelValues("add_role", "ok")) - ok; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.DirectoryCalls.WithLabelValues("add_role", "error")) - failed; got != 2 {
		t.Errorf("error delta = %v, want 2", got)
	}
}

func TestSetupTracing_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "test-service", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupTracing_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export happens.
	shutdown, err := SetupTracing(context.Background(), "test-service", "http://192.0.2.1:4318")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Tracer() == nil {
		t.Fatal("expected tracer")
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

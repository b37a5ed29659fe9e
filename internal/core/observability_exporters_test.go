package core

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" {
		t.Fatalf("generated name is empty")
	}
	ctx := context.Background()
	rec.Observe(ctx, "partial_import", true, 20*time.Millisecond)
	rec.Observe(ctx, "partial_import", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.DurationsMS["partial_import"] != 25 {
		t.Fatalf("unexpected duration total: %v", snap.DurationsMS)
	}
	if snap.Results["partial_import"]["success"] != 1 || snap.Results["partial_import"]["error"] != 1 {
		t.Fatalf("unexpected result counters: %v", snap.Results)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusMetricsRecorder(reg)
	ctx := context.Background()
	rec.Observe(ctx, "recompute_fees", true, 10*time.Millisecond)
	rec.Observe(ctx, "recompute_fees", true, 10*time.Millisecond)
	rec.Observe(ctx, "recompute_fees", false, 10*time.Millisecond)

	expected := `
		# HELP eventcore_operation_results_total Service operation outcomes by status.
		# TYPE eventcore_operation_results_total counter
		eventcore_operation_results_total{operation="recompute_fees",status="error"} 1
		eventcore_operation_results_total{operation="recompute_fees",status="success"} 2
	`
	if err := testutil.CollectAndCompare(rec.results, strings.NewReader(expected), "eventcore_operation_results_total"); err != nil {
		t.Fatalf("counter mismatch: %v", err)
	}
}

func TestJSONTracerWritesEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "partial_import")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Operation != "partial_import" || entries[0].Status != "success" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if !strings.Contains(buf.String(), `"operation":"partial_import"`) {
		t.Fatalf("span not encoded to writer: %s", buf.String())
	}
}

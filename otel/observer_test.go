package otel_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	otterotel "github.com/otter-labs/ottershipper/otel"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestToolObserver_ObserveCallRecordsMetricsAndSpan(t *testing.T) {
	reader, mp := newTestMeter()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	observer, err := otterotel.NewToolObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewToolObserver: %v", err)
	}

	observer.ObserveCall("otter_create_app", true, "", 20*time.Millisecond)
	observer.ObserveCall("otter_create_app", false, "duplicate_name", 5*time.Millisecond)

	rm := collectMetrics(t, reader)

	invocations := findMetric(rm, "ottershipper.tool.invocations")
	if invocations == nil {
		t.Fatal("invocations metric not recorded")
	}
	sum, ok := invocations.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("invocations data type = %T, want Sum[int64]", invocations.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Fatalf("invocations total = %d, want 2", total)
	}

	failures := findMetric(rm, "ottershipper.tool.failures")
	if failures == nil {
		t.Fatal("failures metric not recorded")
	}
	failSum, ok := failures.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("failures data type = %T, want Sum[int64]", failures.Data)
	}
	var failed int64
	for _, dp := range failSum.DataPoints {
		failed += dp.Value
	}
	if failed != 1 {
		t.Fatalf("failures total = %d, want 1", failed)
	}

	if findMetric(rm, "ottershipper.tool.latency") == nil {
		t.Fatal("latency metric not recorded")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	for _, span := range spans {
		if span.Name != "tool.call" {
			t.Fatalf("span name = %q, want tool.call", span.Name)
		}
	}
}

func TestToolObserver_NilSafe(t *testing.T) {
	var observer *otterotel.ToolObserver
	// Must not panic.
	observer.ObserveCall("otter_list_apps", true, "", time.Millisecond)
}

package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/gistblog/gistfeed/pkg/config"
)

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(&config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	shutdown()
}

func TestCounter(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	ctx := context.Background()
	counter := NewCounter("gistfeed.test.events", "Test events")
	counter.Add(ctx, 2, attribute.String("namespace", "post"))
	first := counter.inst
	counter.Add(ctx, 3, attribute.String("namespace", "post"))

	if first == nil || counter.inst != first {
		t.Error("expected the instrument to be created once and reused")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "gistfeed.test.events" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("data = %T, want metricdata.Sum[int64]", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	if total != 5 {
		t.Errorf("counter total = %d, want 5", total)
	}
}

func TestStartSpanWithoutInit(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test.span")
	defer span.End()
	if ctx == nil {
		t.Fatal("StartSpan() returned a nil context")
	}
}

package otel

import (
	"context"
	"testing"

	authcore "github.com/veriden/authcore"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	counters map[authcore.MetricID]uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authcore.MetricsSnapshot {
	return authcore.MetricsSnapshot{Counters: f.counters}
}

func (f *fakeSource) EventsDropped() uint64 { return f.dropped }

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				values[m.Name] = dp.Value
			}
		}
	}
	return values
}

func TestExporterObservesCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := &fakeSource{
		counters: map[authcore.MetricID]uint64{
			authcore.MetricSignInSuccess: 4,
			authcore.MetricTOTPReplay:    1,
		},
		dropped: 2,
	}

	exporter, err := NewExporter(provider.Meter("authcore-test"), source)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	t.Cleanup(func() { _ = exporter.Close() })

	values := collect(t, reader)
	if values["authcore_signin_success_total"] != 4 {
		t.Fatalf("unexpected signin counter: %v", values)
	}
	if values["authcore_totp_replay_total"] != 1 {
		t.Fatalf("unexpected replay counter: %v", values)
	}
	if values["authcore_events_dropped_total"] != 2 {
		t.Fatalf("unexpected dropped counter: %v", values)
	}
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	source := &fakeSource{counters: map[authcore.MetricID]uint64{authcore.MetricSignInSuccess: 1}}
	exporter, err := NewExporter(provider.Meter("authcore-test"), source)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	if err := exporter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	values := collect(t, reader)
	if _, ok := values["authcore_signin_success_total"]; ok && values["authcore_signin_success_total"] != 0 {
		t.Fatalf("unregistered callback must not report values: %v", values)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	if _, err := NewExporter(provider.Meter("authcore-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
}

package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordPoll(ctx, PollOK)
	m.RecordPoll(ctx, PollOK)
	m.RecordPoll(ctx, PollUnauthorized)
	m.RecordValidation(ctx, "valid")
	m.RecordSecurityAlert(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data = %T, want Sum[int64]", md.Name, md.Data)
			}
			for _, dp := range sum.DataPoints {
				totals[md.Name] += dp.Value
			}
		}
	}
	want := map[string]int64{
		"medconnect.notification_polls": 3,
		"medconnect.validations":        1,
		"medconnect.security_alerts":    1,
	}
	for name, v := range want {
		if totals[name] != v {
			t.Errorf("%s = %d, want %d", name, totals[name], v)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordPoll(context.Background(), PollOK)
	m.RecordValidation(context.Background(), "valid")
	m.RecordSecurityAlert(context.Background())

	noop, err := NewMetrics(nil)
	if err != nil || noop == nil {
		t.Fatalf("NewMetrics(nil) = %v, %v", noop, err)
	}
	noop.RecordPoll(context.Background(), PollError)
}

package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"medconnect/client/internal/telemetry"
)

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogout}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestEmit_NilEvent_ReturnsNil(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(ctx, nil): %v", err)
	}
}

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	rec otellog.Record
	n   int
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
	r.n++
}

func TestEmit_AttributeAndBodyMapping(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	event := &telemetry.Event{
		Type:           telemetry.EventSecurityAlert,
		UserID:         "user1",
		Role:           "doctor",
		NotificationID: "n1",
		Detail:         "SECURITY ALERT: new device",
		CreatedAt:      created,
	}
	if err := em.Emit(context.Background(), event); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec

	if got := rec.Body().AsString(); got != event.Detail {
		t.Errorf("body = %q, want %q", got, event.Detail)
	}
	if !rec.Timestamp().Equal(created) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), created)
	}
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want WARN for security alerts", rec.Severity())
	}

	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	want := map[string]string{
		"event_type":      "security_alert",
		"user_id":         "user1",
		"role":            "doctor",
		"notification_id": "n1",
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %s = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_OmitsEmptyAttributes(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	if err := em.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogout}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if cap.n != 1 {
		t.Fatalf("records = %d, want 1", cap.n)
	}
	if cap.rec.AttributesLen() != 1 {
		t.Errorf("attributes = %d, want only event_type", cap.rec.AttributesLen())
	}
	if cap.rec.Timestamp().IsZero() {
		t.Error("timestamp should default to now")
	}
	if cap.rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want INFO", cap.rec.Severity())
	}
}

func TestNewEventEmitterWithLogger_Nil(t *testing.T) {
	if _, ok := NewEventEmitterWithLogger(nil).(telemetry.Nop); !ok {
		t.Error("nil logger should yield Nop")
	}
}

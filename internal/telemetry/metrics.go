package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "medconnect/client"

// Poll outcomes recorded on medconnect.notification_polls.
const (
	PollOK           = "ok"
	PollError        = "error"
	PollUnauthorized = "unauthorized"
	PollNoToken      = "no_token"
	PollDiscarded    = "discarded"
)

// Metrics records client counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	validations    metric.Int64Counter
	polls          metric.Int64Counter
	securityAlerts metric.Int64Counter
}

// NewMetrics creates the client counters on mp. A nil mp uses a no-op provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)
	validations, err := meter.Int64Counter("medconnect.validations",
		metric.WithDescription("Session validations by result"))
	if err != nil {
		return nil, err
	}
	polls, err := meter.Int64Counter("medconnect.notification_polls",
		metric.WithDescription("Notification polls by outcome"))
	if err != nil {
		return nil, err
	}
	alerts, err := meter.Int64Counter("medconnect.security_alerts",
		metric.WithDescription("Security alerts raised to the user"))
	if err != nil {
		return nil, err
	}
	return &Metrics{validations: validations, polls: polls, securityAlerts: alerts}, nil
}

// RecordValidation counts one validation with its result (valid, invalid, role_mismatch, skipped).
func (m *Metrics) RecordValidation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordPoll counts one notification poll with its outcome.
func (m *Metrics) RecordPoll(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSecurityAlert counts one raised security alert.
func (m *Metrics) RecordSecurityAlert(ctx context.Context) {
	if m == nil {
		return
	}
	m.securityAlerts.Add(ctx, 1)
}

// Package telemetry defines client telemetry events and the emitters and counters that export them.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// EventType names a client telemetry event.
type EventType string

const (
	EventLoginSuccess              EventType = "login_success"
	EventLoginFailure              EventType = "login_failure"
	EventLogout                    EventType = "logout"
	EventSessionInvalidated        EventType = "session_invalidated"
	EventValidationFailed          EventType = "validation_failed"
	EventRoleMismatch              EventType = "role_mismatch"
	EventSecurityAlert             EventType = "security_alert"
	EventNotificationsUnauthorized EventType = "notifications_unauthorized"
)

// Event is one client telemetry record. Never carries tokens or passwords.
type Event struct {
	Type           EventType `json:"type"`
	UserID         string    `json:"user_id,omitempty"`
	Role           string    `json:"role,omitempty"`
	NotificationID string    `json:"notification_id,omitempty"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// Nop is an EventEmitter that drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, *Event) error { return nil }

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

func (m Multi) Emit(ctx context.Context, event *Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

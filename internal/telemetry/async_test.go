package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*Event
	emitErr error
	delay   time.Duration
	done    chan struct{}
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Event(nil), m.events...)
}

func TestEmitAsync_NilEmitterOrEvent(t *testing.T) {
	// Should not panic.
	EmitAsync(nil, context.Background(), &Event{Type: EventLogout})
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, context.Background(), nil)
	time.Sleep(10 * time.Millisecond)
	if n := len(emitter.getEvents()); n != 0 {
		t.Errorf("events = %d, want 0", n)
	}
}

func TestEmitAsync_EmitsAndStampsTime(t *testing.T) {
	emitter := &mockEventEmitter{done: make(chan struct{}, 1)}
	EmitAsync(emitter, context.Background(), &Event{Type: EventLoginSuccess, UserID: "u1"})

	select {
	case <-emitter.done:
	case <-time.After(time.Second):
		t.Fatal("event not emitted")
	}
	events := emitter.getEvents()
	if len(events) != 1 || events[0].Type != EventLoginSuccess {
		t.Fatalf("events = %+v", events)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be filled in")
	}
}

func TestEmitAsync_CallerCancelDoesNotAbort(t *testing.T) {
	emitter := &mockEventEmitter{delay: 20 * time.Millisecond, done: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	EmitAsync(emitter, ctx, &Event{Type: EventLogout})
	cancel()

	select {
	case <-emitter.done:
	case <-time.After(time.Second):
		t.Fatal("emit aborted by caller cancellation")
	}
}

func TestMulti(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("kafka down")}
	m := Multi{a, nil, b}

	err := m.Emit(context.Background(), &Event{Type: EventSecurityAlert})
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Multi.Emit err = %v, want kafka down", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Error("every emitter should receive the event")
	}
	if err := (Nop{}).Emit(context.Background(), nil); err != nil {
		t.Errorf("Nop.Emit = %v", err)
	}
}

func TestShutdownDrainDuration(t *testing.T) {
	if ShutdownDrainDuration < emitTimeout {
		t.Errorf("ShutdownDrainDuration = %v, must be >= emitTimeout %v", ShutdownDrainDuration, emitTimeout)
	}
}

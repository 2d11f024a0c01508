// Package producer ships client telemetry events to a message broker (Kafka).
package producer

import (
	"medconnect/client/internal/telemetry"
)

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close flushes and releases resources. Safe to call if already closed.
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)

// AsEmitter returns p as an EventEmitter, or a nil interface when p is nil.
func AsEmitter(p *KafkaProducer) telemetry.EventEmitter {
	if p == nil {
		return nil
	}
	return p
}

package producer

import (
	"context"
	"testing"

	"medconnect/client/internal/telemetry"
)

func TestNewKafkaProducer_DisabledWithoutConfig(t *testing.T) {
	testCases := []struct {
		name    string
		brokers []string
		topic   string
	}{
		{"no brokers", nil, "topic"},
		{"no topic", []string{"localhost:9092"}, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewKafkaProducer(tc.brokers, tc.topic, nil)
			if err != nil || p != nil {
				t.Errorf("NewKafkaProducer = %v, %v; want nil, nil", p, err)
			}
			if AsEmitter(p) != nil {
				t.Error("AsEmitter(nil) should be a nil interface")
			}
		})
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &telemetry.Event{Type: telemetry.EventLogout}); err != nil {
		t.Errorf("nil Emit = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestNewKafkaProducer_Configured(t *testing.T) {
	p, err := NewKafkaProducer([]string{"localhost:9092"}, "medconnect-client-telemetry", nil)
	if err != nil || p == nil {
		t.Fatalf("NewKafkaProducer = %v, %v", p, err)
	}
	if p.writer.Topic != "medconnect-client-telemetry" {
		t.Errorf("Topic = %q", p.writer.Topic)
	}
	if AsEmitter(p) == nil {
		t.Error("AsEmitter should wrap a configured producer")
	}
	if err := p.Emit(context.Background(), nil); err != nil {
		t.Errorf("Emit(nil) = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}

package producer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pawplanner/backend/internal/telemetry"
	"pawplanner/backend/internal/telemetry/domain"
)

var _ Producer = (*KafkaProducer)(nil)
var _ telemetry.EventEmitter = (*KafkaProducer)(nil)

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("no brokers should disable the producer")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Error("empty topic should disable the producer")
	}
}

func TestKafkaProducer_NilSafe(t *testing.T) {
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.AuthEvent{Type: domain.EventSessionCreated}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_NilEvent(t *testing.T) {
	p := NewKafkaProducer([]string{"localhost:9092"}, "pawplanner-auth-events")
	defer p.Close()
	if err := p.Emit(context.Background(), nil); err != nil {
		t.Errorf("nil event Emit: %v", err)
	}
}

func TestEventMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := eventMessage(&domain.AuthEvent{
		Type:      domain.EventSessionRevoked,
		OrgID:     "org-1",
		UserID:    "user-1",
		SessionID: "sess-1",
		Source:    "guard",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("eventMessage: %v", err)
	}
	if string(msg.Key) != "user-1" {
		t.Errorf("key = %q, want user-1", msg.Key)
	}
	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded["eventType"] != "session.revoked" {
		t.Errorf("eventType = %v", decoded["eventType"])
	}
	if decoded["createdAt"] != "2026-03-01T12:00:00Z" {
		t.Errorf("createdAt = %v", decoded["createdAt"])
	}
}

func TestEventMessage_NoUserNoKey(t *testing.T) {
	msg, err := eventMessage(&domain.AuthEvent{Type: domain.EventLoginFailed, Source: "identity"})
	if err != nil {
		t.Fatalf("eventMessage: %v", err)
	}
	if msg.Key != nil {
		t.Errorf("key = %q, want nil", msg.Key)
	}
}

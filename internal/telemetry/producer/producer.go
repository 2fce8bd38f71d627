// Package producer writes auth events to a message broker for the event worker.
package producer

import (
	"context"

	"pawplanner/backend/internal/telemetry/domain"
)

// Producer emits auth events. It satisfies telemetry.EventEmitter so it can sit in a telemetry.Fanout.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; use telemetry.EmitAsync from request paths.
	Emit(ctx context.Context, event *domain.AuthEvent) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

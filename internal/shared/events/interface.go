package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ealmetes/HealthExtent/internal/shared/config"
)

// EventBus defines the interface for event publishing
type EventBus interface {
	// Publish publishes an event to the bus
	Publish(ctx context.Context, event Event) error

	// Close closes the event bus connection
	Close()

	// Health checks the event bus connection
	Health() error
}

// NewEventBus connects to KurrentDB and verifies the connection
func NewEventBus(ctx context.Context, cfg config.KurrentDBConfig) (EventBus, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bus, err := NewBus(timeoutCtx, cfg)
	if err != nil {
		return nil, err
	}

	if err := bus.Health(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("KurrentDB unavailable: %w", err)
	}

	return bus, nil
}

// NopBus discards events. Used when KurrentDB is disabled or unreachable.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, event Event) error { return nil }
func (NopBus) Close()                                         {}
func (NopBus) Health() error                                  { return nil }

// Ensure Bus implements EventBus
var _ EventBus = (*Bus)(nil)

var _ EventBus = NopBus{}

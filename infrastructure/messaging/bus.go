// Package messaging provides event buses that do not need AWS.
package messaging

import (
	"context"
	"fmt"

	"canvas-backend/application/ports"
	"canvas-backend/domain/events"

	"go.uber.org/zap"
)

// LoggingBus writes every event to the log
type LoggingBus struct {
	logger *zap.Logger
}

var _ ports.EventBus = (*LoggingBus)(nil)

// NewLoggingBus creates a bus that only logs
func NewLoggingBus(logger *zap.Logger) *LoggingBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingBus{logger: logger}
}

// Publish logs the events
func (b *LoggingBus) Publish(_ context.Context, evts ...events.DomainEvent) error {
	for _, e := range evts {
		b.logger.Info("Domain event",
			zap.String("event_type", e.GetEventType()),
			zap.String("aggregate_id", e.GetAggregateID()),
			zap.Time("timestamp", e.GetTimestamp()),
			zap.Any("event", e),
		)
	}
	return nil
}

// Dispatcher hands events to every configured bus. A failing bus does not
// stop delivery to the others.
type Dispatcher struct {
	buses  []ports.EventBus
	logger *zap.Logger
}

var _ ports.EventBus = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher over the given buses
func NewDispatcher(logger *zap.Logger, buses ...ports.EventBus) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{buses: buses, logger: logger}
}

// Publish delivers the events to each bus in turn
func (d *Dispatcher) Publish(ctx context.Context, evts ...events.DomainEvent) error {
	if len(evts) == 0 {
		return nil
	}
	failed := 0
	for _, bus := range d.buses {
		if err := bus.Publish(ctx, evts...); err != nil {
			failed++
			d.logger.Warn("Failed to dispatch events",
				zap.Int("count", len(evts)),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to dispatch events to %d of %d buses", failed, len(d.buses))
	}
	return nil
}

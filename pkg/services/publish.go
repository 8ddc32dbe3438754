package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowboard/flowboard/pkg/eventbus"
	"github.com/flowboard/flowboard/pkg/events"
)

// publisher is the shared event emission helper. Publishing is
// best-effort: a broker outage must not fail the operation that
// triggered the event.
type publisher struct {
	logger *slog.Logger
	bus    eventbus.EventBus
}

func (p *publisher) base(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         p.bus.GenerateID(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

func (p *publisher) publish(ctx context.Context, key string, event eventbus.Event) {
	if p.bus == nil {
		return
	}

	if err := p.bus.Publish(ctx, key, event); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (p *publisher) enabled() bool {
	return p.bus != nil
}

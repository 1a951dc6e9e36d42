package outbox

import (
	"context"
	"log/slog"
	"maps"

	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

// Producer is implemented by the kafka and rabbitmq adapters.
type Producer interface {
	Publish(ctx context.Context, msg Message) error
}

type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	return &Dispatcher{log: log, producer: producer, topic: topic}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make(map[string]string, len(event.Headers)+3)
	maps.Copy(headers, event.Headers)
	headers[HeaderEventType] = event.Type
	if event.EventID != "" {
		headers[HeaderEventID] = event.EventID
	}
	if event.Traceparent != "" {
		headers[tracing.TraceparentHeader] = event.Traceparent
	}

	msg := Message{
		Topic:   d.topic,
		Key:     event.AggregateID,
		Value:   event.Payload,
		Headers: headers,
	}
	if err := d.producer.Publish(ctx, msg); err != nil {
		d.log.Error("outbox dispatch failed", "outbox_id", event.ID, "event_id", event.EventID, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "outbox_id", event.ID, "event_id", event.EventID, "type", event.Type, "key", event.AggregateID)
	return nil
}

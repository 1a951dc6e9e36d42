package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/food-order-events/internal/notification/application"
	"github.com/dmehra2102/food-order-events/pkg/rabbitmq"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

type Processor interface {
	Process(ctx context.Context, payload []byte) application.Outcome
}

type channelSource interface {
	ConsumerChannel(prefetch int) (*amqp.Channel, error)
}

// Consumer reads the service queue with manual acks. Dead-lettered deliveries
// are rejected without requeue and routed to the DLQ by the broker.
type Consumer struct {
	log      *slog.Logger
	source   channelSource
	queue    string
	prefetch int
	proc     Processor
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, client *rabbitmq.Client, prefetch int, proc Processor) *Consumer {
	return &Consumer{
		log:      log,
		source:   client,
		queue:    client.Topology().Queue,
		prefetch: prefetch,
		proc:     proc,
		tracer:   otel.Tracer("notification-consumer"),
	}
}

// Run consumes until ctx is cancelled, reopening the channel when the broker
// closes it.
func (c *Consumer) Run(ctx context.Context) error {
	reopen := backoff.NewExponentialBackOff()
	reopen.InitialInterval = time.Second
	reopen.MaxInterval = 30 * time.Second

	for ctx.Err() == nil {
		err := c.consume(ctx, reopen)
		if ctx.Err() != nil {
			return nil
		}
		wait := reopen.NextBackOff()
		c.log.ErrorContext(ctx, "rabbitmq consumer interrupted", "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context, reopen *backoff.ExponentialBackOff) error {
	ch, err := c.source.ConsumerChannel(c.prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	reopen.Reset()
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	c.log.InfoContext(ctx, "rabbitmq consumer started", "queue", c.queue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("consumer channel closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	msgCtx := tracing.ExtractMap(ctx, rabbitmq.HeaderMap(d.Headers))
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent", trace.WithAttributes(
		attribute.String("messaging.destination", d.Exchange),
		attribute.String("messaging.rabbitmq.routing_key", d.RoutingKey),
	))
	defer span.End()

	outcome := c.proc.Process(msgCtx, d.Body)
	span.SetAttributes(attribute.String("notification.outcome", outcome.String()))

	var err error
	switch outcome {
	case application.Ack:
		err = d.Ack(false)
	case application.DeadLetter:
		err = d.Nack(false, false)
		c.log.WarnContext(ctx, "order event dead-lettered", "message_id", d.MessageId, "routing_key", d.RoutingKey)
	case application.Requeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		c.log.ErrorContext(ctx, "rabbitmq settle failed", "outcome", outcome.String(), "err", err)
	}
}

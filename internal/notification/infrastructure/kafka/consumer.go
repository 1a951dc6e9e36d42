package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/food-order-events/internal/notification/application"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

const HeaderDeadLetterReason = "x-dead-letter-reason"

type Processor interface {
	Process(ctx context.Context, payload []byte) application.Outcome
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer reads order events one at a time. kafka-go never redelivers an
// uncommitted offset inside a live session, so retries happen in Process and
// an exhausted message is copied to the DLQ topic before its offset moves on.
type Consumer struct {
	log      *slog.Logger
	reader   reader
	dlq      writer
	dlqTopic string
	proc     Processor
	tracer   trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, dlqTopic, group string, proc Processor) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newConsumer(log, r, w, dlqTopic, proc)
}

func newConsumer(log *slog.Logger, r reader, w writer, dlqTopic string, proc Processor) *Consumer {
	return &Consumer{
		log:      log,
		reader:   r,
		dlq:      w,
		dlqTopic: dlqTopic,
		proc:     proc,
		tracer:   otel.Tracer("notification-consumer"),
	}
}

// Run blocks until ctx is cancelled or the broker fails. A clean shutdown
// returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeOrderEvent", trace.WithAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	))
	defer span.End()

	outcome := c.proc.Process(msgCtx, msg.Value)
	span.SetAttributes(attribute.String("notification.outcome", outcome.String()))

	switch outcome {
	case application.Requeue:
		// Leave the offset uncommitted; the next group member resumes here.
		return fmt.Errorf("offset %d left for redelivery", msg.Offset)
	case application.DeadLetter:
		if err := c.deadLetter(ctx, msg); err != nil {
			return err
		}
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message) error {
	headers := append([]kafka.Header{}, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDeadLetterReason, Value: []byte("retries exhausted")},
		kafka.Header{Key: "x-original-topic", Value: []byte(msg.Topic)},
	)
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic:   c.dlqTopic,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	})
	if err != nil {
		return errors.Join(fmt.Errorf("dead-letter offset %d", msg.Offset), err)
	}
	c.log.WarnContext(ctx, "order event dead-lettered", "dlq_topic", c.dlqTopic, "partition", msg.Partition, "offset", msg.Offset)
	return nil
}

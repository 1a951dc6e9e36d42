package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/food-order-events/pkg/outbox"
	"github.com/dmehra2102/food-order-events/pkg/tracing"
)

// Writer hashes on the message key so every event of one order lands on the
// same partition and keeps its order. The relay publishes one message at a
// time, so the batch timeout bounds the latency of every dispatch.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

func (w *Writer) Publish(ctx context.Context, msg outbox.Message) error {
	return w.Writer.WriteMessages(ctx, kafka.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: tracing.KafkaHeaders(msg.Headers),
	})
}

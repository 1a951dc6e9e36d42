package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceparentRoundTrip(t *testing.T) {
	_, err := Init(context.Background(), "test", "")
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	tp := Traceparent(ctx)
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", tp)

	headers := KafkaHeaders(map[string]string{TraceparentHeader: tp, "event_type": "OrderStatusChanged"})
	got := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, "OrderStatusChanged", HeaderMap(headers)["event_type"])
}

func TestTraceparentEmptyWithoutSpan(t *testing.T) {
	_, err := Init(context.Background(), "test", "")
	require.NoError(t, err)
	assert.Empty(t, Traceparent(context.Background()))
}

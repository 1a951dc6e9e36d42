package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	notifygrpc "github.com/dmehra2102/food-order-events/internal/notification/infrastructure/grpc"
)

type runFunc func(ctx context.Context) error

func (f runFunc) Run(ctx context.Context) error { return f(ctx) }

func status(t *testing.T, h *notifygrpc.Health) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.Check(context.Background(), &healthpb.HealthCheckRequest{Service: notifygrpc.ServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestConsume_FailureStopsServiceWithError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	health := notifygrpc.NewHealth()
	dlqDown := errors.New("dead-letter write failed")

	done := consume(ctx, cancel, runFunc(func(context.Context) error { return dlqDown }), health)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, dlqDown)
	case <-time.After(time.Second):
		t.Fatal("consumer error not reported")
	}
	assert.Error(t, ctx.Err(), "shutdown is triggered")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, health))
}

func TestConsume_CleanShutdownReportsNoError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	health := notifygrpc.NewHealth()
	started := make(chan struct{})

	done := consume(ctx, cancel, runFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}), health)

	<-started
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, health))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "notification.OrderEventConsumer"

// Health reports consumer liveness through the standard gRPC health service.
type Health struct {
	*health.Server
}

func NewHealth() *Health {
	h := &Health{Server: health.NewServer()}
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) Serving() {
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

func (h *Health) Stopping() {
	h.Shutdown()
}

func Run(addr string, h *Health) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(lis, h), nil
}

func Serve(lis net.Listener, h *Health) *grpc.Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h)
	go func() {
		_ = gs.Serve(lis)
	}()
	return gs
}

package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/example/face-attendance/internal/logging"
)

// ServiceName is the health-check service name reported for the recognition API.
const ServiceName = "attendance.Recognition"

// HealthServer exposes grpc.health.v1.Health for orchestrators and load balancers.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// New registers the health service on a fresh gRPC server. Both the overall
// status and ServiceName start as NOT_SERVING.
func New(logger *zap.Logger, opts ...grpc.ServerOption) *HealthServer {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &HealthServer{server: srv, health: hs, logger: logger.Named("grpc")}
	h.SetServing(false)
	return h
}

// SetServing flips the reported status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	h.logger.Info("health status changed", zap.String("status", status.String()))
}

// Serve blocks until the listener fails or Stop is called.
func (h *HealthServer) Serve(listener net.Listener) error {
	h.logger.Info("gRPC health listening", zap.String("addr", listener.Addr().String()))
	if err := h.server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return logging.NewOperationError("grpcserver.serve", "", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight calls until ctx
// expires, after which the server is stopped forcibly.
func (h *HealthServer) Stop(ctx context.Context) {
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("graceful stop timed out, forcing")
		h.server.Stop()
	}
}

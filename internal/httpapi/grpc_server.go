package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"arkiva.org/internal/obs"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// GRPCServer exposes the standard gRPC health service backed by the same
// readiness probe as /readyz.
type GRPCServer struct {
	grpc_health_v1.UnimplementedHealthServer

	readiness readinessChecker
	version   string
}

// NewGRPCServer creates the gRPC service wrapper.
func NewGRPCServer(r readinessChecker, version string) *GRPCServer {
	return &GRPCServer{
		readiness: r,
		version:   version,
	}
}

// Register attaches the health service to a gRPC server.
func (s *GRPCServer) Register(srv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(srv, s)
}

// Check evaluates readiness. A failing dependency reports NOT_SERVING.
func (s *GRPCServer) Check(ctx context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		return &grpc_health_v1.HealthCheckResponse{
			Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING,
		}, nil
	}
	obs.SetReady(true)
	return &grpc_health_v1.HealthCheckResponse{
		Status: grpc_health_v1.HealthCheckResponse_SERVING,
	}, nil
}

// Watch performs a single check and streams the result. Clients needing
// continuous updates re-subscribe.
func (s *GRPCServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	resp, err := s.Check(stream.Context(), req)
	if err != nil {
		return status.Errorf(codes.Internal, "health check failed: %v", err)
	}
	return stream.Send(resp)
}

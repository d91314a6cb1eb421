package telemetry

import (
	"context"
	"fmt"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/danielpatrickdp/ccs-cadence/internal/mode"
)

// #region health-reporter

// HealthReporter exposes the pipeline mode through the standard gRPC health
// service: FALLBACK reports NOT_SERVING, every other mode SERVING.
type HealthReporter struct {
	server  *health.Server
	service string
}

// NewHealthReporter starts SERVING for service.
func NewHealthReporter(service string) *HealthReporter {
	srv := health.NewServer()
	srv.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{server: srv, service: service}
}

// ApplyInterval implements cadence.Sink.
func (h *HealthReporter) ApplyInterval(m mode.Mode, _ int64) error {
	status := healthpb.HealthCheckResponse_SERVING
	if m == mode.Fallback {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(h.service, status)
	return nil
}

// Server returns the health server for direct checks.
func (h *HealthReporter) Server() *health.Server { return h.server }

// Register adds the health service to s.
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Serve listens on addr until ctx is done.
func (h *HealthReporter) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s := grpc.NewServer()
	h.Register(s)

	go func() {
		<-ctx.Done()
		h.server.Shutdown()
		s.GracefulStop()
	}()

	log.Printf("health service %q listening on %s", h.service, lis.Addr())
	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

// #endregion health-reporter

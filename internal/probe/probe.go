// Package probe exposes the server's dependency health over the standard
// gRPC health checking protocol.
package probe

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName prefixes the per-dependency service names.
const ServiceName = "authchat"

const defaultCheckTimeout = 5 * time.Second

// Pinger is a dependency that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check is one dependency reported as service "authchat.<Name>".
type Check struct {
	Name   string
	Pinger Pinger
}

// Server is a gRPC health server whose status follows periodic dependency
// checks. The overall service "" is SERVING only when every check passes.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a probe server. Every service starts NOT_SERVING until the
// first refresh.
func New(interval time.Duration, checks ...Check) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		grpc:     gs,
		health:   hs,
		checks:   checks,
		interval: interval,
		timeout:  defaultCheckTimeout,
		logger:   slog.Default().With("component", "probe"),
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, c := range checks {
		hs.SetServingStatus(s.serviceName(c), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

func (s *Server) serviceName(c Check) string {
	return ServiceName + "." + c.Name
}

// Refresh runs every check once and publishes the result. It reports
// whether all checks passed.
func (s *Server) Refresh(ctx context.Context) bool {
	healthy := true
	for _, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := c.Pinger.Ping(checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("Dependency check failed", "check", c.Name, "error", err)
		}
		s.health.SetServingStatus(s.serviceName(c), status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	return healthy
}

// Run refreshes immediately and then every interval until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.Refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve accepts health RPCs on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health probe listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains the gRPC server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

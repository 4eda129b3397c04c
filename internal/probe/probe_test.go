package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type switchPinger struct {
	down atomic.Bool
}

func (p *switchPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func newTestClient(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error = %v", service, err)
	}
	return resp.GetStatus()
}

func TestProbeFollowsDependencies(t *testing.T) {
	db := &switchPinger{}
	backend := &switchPinger{}
	s := New(time.Hour, Check{Name: "store", Pinger: db}, Check{Name: "backend", Pinger: backend})
	client := newTestClient(t, s)

	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status before refresh = %v", got)
	}

	if !s.Refresh(context.Background()) {
		t.Fatalf("Refresh() = false with healthy deps")
	}
	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("overall = %v, want SERVING", got)
	}

	backend.down.Store(true)
	if s.Refresh(context.Background()) {
		t.Fatalf("Refresh() = true with backend down")
	}
	if got := status(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("overall = %v, want NOT_SERVING", got)
	}
	if got := status(t, client, "authchat.backend"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("backend = %v, want NOT_SERVING", got)
	}
	if got := status(t, client, "authchat.store"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("store = %v, want SERVING", got)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	s := New(10*time.Millisecond, Check{Name: "store", Pinger: &switchPinger{}})
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}

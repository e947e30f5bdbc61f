package grpc

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const probedService = "unveil.connections.v1.ConnectionService"

func serveHealth(t *testing.T) (*health.Server, *gogrpc.ClientConn) {
	t.Helper()
	listener := bufconn.Listen(1 << 16)
	server := gogrpc.NewServer()
	hs := RegisterHealth(server, probedService)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := gogrpc.NewClient("passthrough:///health",
		gogrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return hs, conn
}

func statusOf(t *testing.T, conn *gogrpc.ClientConn, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestRegisterHealthStartsNotServing(t *testing.T) {
	hs, conn := serveHealth(t)
	for _, service := range []string{"", probedService} {
		if got := statusOf(t, conn, service); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
			t.Fatalf("%q status = %v before SetServing", service, got)
		}
	}

	SetServing(hs, probedService)
	for _, service := range []string{"", probedService} {
		if got := statusOf(t, conn, service); got != grpc_health_v1.HealthCheckResponse_SERVING {
			t.Fatalf("%q status = %v after SetServing", service, got)
		}
	}
	SetServing(nil, probedService)
}

func TestWaitForHealthWaitsForServing(t *testing.T) {
	hs, conn := serveHealth(t)

	var mu sync.Mutex
	var lines []string
	logf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, format)
	}

	go func() {
		time.Sleep(300 * time.Millisecond)
		SetServing(hs, probedService)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := WaitForHealth(ctx, conn, probedService, logf); err != nil {
		t.Fatalf("wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) < 2 || !strings.Contains(lines[len(lines)-1], "serving") {
		t.Fatalf("log lines = %v, want waits followed by serving", lines)
	}
}

func TestWaitForHealthStopsWithContext(t *testing.T) {
	_, conn := serveHealth(t)
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	err := WaitForHealth(ctx, conn, probedService, nil)
	if err == nil || !strings.Contains(err.Error(), probedService) {
		t.Fatalf("err = %v, want a deadline error naming the service", err)
	}
	if err := WaitForHealth(ctx, nil, probedService, nil); err == nil {
		t.Fatal("expected an error without a connection")
	}
}

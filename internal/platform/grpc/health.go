package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthProbeTimeout = time.Second
	healthRetryFloor   = 200 * time.Millisecond
	healthRetryCeiling = time.Second
)

// RegisterHealth attaches a health server and reports the process and every
// named service as NOT_SERVING until SetServing is called.
func RegisterHealth(server *gogrpc.Server, services ...string) *health.Server {
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, hs)
	setAll(hs, grpc_health_v1.HealthCheckResponse_NOT_SERVING, services)
	return hs
}

// SetServing reports the process and every named service as SERVING.
func SetServing(hs *health.Server, services ...string) {
	if hs == nil {
		return
	}
	setAll(hs, grpc_health_v1.HealthCheckResponse_SERVING, services)
}

func setAll(hs *health.Server, status grpc_health_v1.HealthCheckResponse_ServingStatus, services []string) {
	hs.SetServingStatus("", status)
	for _, name := range services {
		hs.SetServingStatus(name, status)
	}
}

// WaitForHealth polls the health service until service reports SERVING,
// backing off between probes. It gives up when ctx ends.
func WaitForHealth(ctx context.Context, conn gogrpc.ClientConnInterface, service string, logf func(string, ...any)) error {
	if conn == nil {
		return errors.New("gRPC connection is not configured")
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	wait := healthRetryFloor
	for {
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		resp, err := client.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err != nil:
			logf("health %q not ready: %v", service, err)
		case resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("health %q serving", service)
			return nil
		default:
			logf("health %q not ready: %s", service, resp.GetStatus())
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for health %q: %w", service, ctx.Err())
		case <-timer.C:
		}
		wait = min(wait*2, healthRetryCeiling)
	}
}

// Package cmd runs service binaries: configuration, log prefix, signals and
// tracing around a service's run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/louisbranch/unveil/internal/platform/config"
	"github.com/louisbranch/unveil/internal/platform/otel"
	"github.com/louisbranch/unveil/internal/platform/timeouts"
)

// ServiceUnveil names the reveal engine process in logs and traces.
const ServiceUnveil = "unveil"

// ParseConfig fills cfg from its env tags and defaults.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies flag overrides. Call it after ParseConfig so flags win.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	return fs.Parse(append([]string{}, args...))
}

// RunWithTelemetry installs the tracer provider for service, runs run, and
// flushes spans when it returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case run == nil:
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s: flush traces: %v", service, err)
		}
	}()
	return run(ctx)
}

// Main is the body of a service's main function. Parse or run failures exit
// with status 1; SIGINT and SIGTERM cancel the run context.
func Main[T any](service string, parse func(*flag.FlagSet, []string) (T, error), run func(context.Context, T) error) {
	cfg, err := parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		exitf("parse flags: %v", err)
	}
	log.SetPrefix("[" + strings.ToUpper(strings.TrimSpace(service)) + "] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		stop()
		exitf("%s stopped: %v", service, err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

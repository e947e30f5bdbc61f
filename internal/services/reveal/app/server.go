// Package server wires the reveal runtime: the gRPC API, the websocket
// gateway, both SQLite stores and the typing sweep.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	platformgrpc "github.com/louisbranch/unveil/internal/platform/grpc"
	grpcmeta "github.com/louisbranch/unveil/internal/platform/grpc/metadata"
	"github.com/louisbranch/unveil/internal/platform/timeouts"
	notificationsservice "github.com/louisbranch/unveil/internal/services/notifications/api/grpc/notifications"
	notificationsdomain "github.com/louisbranch/unveil/internal/services/notifications/domain"
	notificationssqlite "github.com/louisbranch/unveil/internal/services/notifications/storage/sqlite"
	connectionsservice "github.com/louisbranch/unveil/internal/services/reveal/api/grpc/connections"
	"github.com/louisbranch/unveil/internal/services/reveal/gateway"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	revealservice "github.com/louisbranch/unveil/internal/services/reveal/service"
	revealsqlite "github.com/louisbranch/unveil/internal/services/reveal/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
)

// Config defines the inputs for one reveal process.
type Config struct {
	GRPCAddr            string
	HTTPAddr            string
	DBPath              string
	NotificationsDBPath string

	RequestQuota  int
	RequestWindow time.Duration
	CodeTTL       time.Duration

	SessionIssuer    string
	SessionAudience  string
	SessionPublicKey string
	CORSOrigins      []string

	TypingSweepInterval time.Duration
	ReadHeaderTimeout   time.Duration
	ShutdownTimeout     time.Duration
}

// Server hosts the reveal gRPC API and websocket gateway over shared stores.
type Server struct {
	grpcListener net.Listener
	httpListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	httpServer   *http.Server

	revealStore        *revealsqlite.Store
	notificationsStore *notificationssqlite.Store
	emitter            *notify.InboxEmitter
	typing             *presence.Tracker
	sweepInterval      time.Duration
	shutdownTimeout    time.Duration

	closeOnce sync.Once
}

// New opens the stores, builds the engine and binds both listeners.
func New(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		return nil, errors.New("grpc address is required")
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "unveil.db")
	}
	if strings.TrimSpace(cfg.NotificationsDBPath) == "" {
		cfg.NotificationsDBPath = filepath.Join("data", "notifications.db")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	if cfg.TypingSweepInterval <= 0 {
		cfg.TypingSweepInterval = presence.StaleAfter
	}

	authenticator, err := sessionAuthenticator(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		sweepInterval:   cfg.TypingSweepInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
	}
	if err := s.open(cfg, authenticator); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) open(cfg Config, authenticator gateway.Authenticator) error {
	var err error
	if err := ensureDir(cfg.DBPath); err != nil {
		return err
	}
	if s.revealStore, err = revealsqlite.Open(cfg.DBPath); err != nil {
		return fmt.Errorf("open reveal sqlite store: %w", err)
	}
	if err := ensureDir(cfg.NotificationsDBPath); err != nil {
		return err
	}
	if s.notificationsStore, err = notificationssqlite.Open(cfg.NotificationsDBPath); err != nil {
		return fmt.Errorf("open notifications sqlite store: %w", err)
	}

	inbox := notificationsdomain.NewService(s.notificationsStore, time.Now, nil)
	hub := realtime.NewHub(realtime.DefaultBuffer)
	s.typing = presence.NewTracker(nil)
	s.emitter = notify.NewInboxEmitter(inbox, s.revealStore)
	engine := revealservice.New(s.revealStore,
		revealservice.WithProfiles(s.revealStore),
		revealservice.WithPublisher(hub),
		revealservice.WithNotifier(s.emitter),
		revealservice.WithTracker(s.typing),
		revealservice.WithConfig(revealservice.Config{
			RequestQuota:  cfg.RequestQuota,
			RequestWindow: cfg.RequestWindow,
			CodeTTL:       cfg.CodeTTL,
		}),
	)

	if s.grpcListener, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}
	if s.httpListener, err = net.Listen("tcp", cfg.HTTPAddr); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpcmeta.UnaryServerInterceptor(nil)),
	)
	connectionsservice.Register(s.grpcServer, connectionsservice.NewService(engine))
	notificationsservice.Register(s.grpcServer, notificationsservice.NewService(inbox))
	s.health = platformgrpc.RegisterHealth(s.grpcServer, connectionsservice.ServiceName, notificationsservice.ServiceName)

	s.httpServer = &http.Server{
		Handler: gateway.NewHandler(gateway.Config{
			Engine:         engine,
			Hub:            hub,
			Authenticator:  authenticator,
			AllowedOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return nil
}

// sessionAuthenticator returns nil when no key is configured, which leaves
// the websocket route answering 503.
func sessionAuthenticator(cfg Config) (gateway.Authenticator, error) {
	if strings.TrimSpace(cfg.SessionPublicKey) == "" {
		log.Printf("session public key not set, websocket gateway disabled")
		return nil, nil
	}
	key, err := gateway.ParsePublicKey(cfg.SessionPublicKey)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.SessionIssuer) == "" || strings.TrimSpace(cfg.SessionAudience) == "" {
		return nil, errors.New("session issuer and audience are required with a session public key")
	}
	return gateway.SessionVerifier{
		Issuer:   strings.TrimSpace(cfg.SessionIssuer),
		Audience: strings.TrimSpace(cfg.SessionAudience),
		Key:      key,
	}, nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// HTTPAddr returns the bound gateway listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Run creates and serves a reveal server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return fmt.Errorf("init reveal server: %w", err)
	}
	return server.Serve(ctx)
}

// Serve runs both listeners and the typing sweep until ctx ends or either
// listener fails.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.typing.Run(sweepCtx, s.sweepInterval)

	grpcErr := make(chan error, 1)
	httpErr := make(chan error, 1)
	log.Printf("reveal gRPC listening at %v", s.grpcListener.Addr())
	go func() {
		grpcErr <- s.grpcServer.Serve(s.grpcListener)
	}()
	log.Printf("reveal gateway listening at %v", s.httpListener.Addr())
	go func() {
		httpErr <- s.httpServer.Serve(s.httpListener)
	}()
	platformgrpc.SetServing(s.health, connectionsservice.ServiceName, notificationsservice.ServiceName)

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-grpcErr:
		_ = s.shutdown()
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-httpErr:
		_ = s.shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) shutdown() error {
	if s.health != nil {
		s.health.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.grpcServer.GracefulStop()
	if err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases listeners and stores. Pending notification writes finish
// before the stores close.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.grpcListener != nil {
			_ = s.grpcListener.Close()
		}
		if s.httpListener != nil {
			_ = s.httpListener.Close()
		}
		if s.emitter != nil {
			s.emitter.Wait()
		}
		if s.revealStore != nil {
			if err := s.revealStore.Close(); err != nil {
				log.Printf("close reveal store: %v", err)
			}
		}
		if s.notificationsStore != nil {
			if err := s.notificationsStore.Close(); err != nil {
				log.Printf("close notifications store: %v", err)
			}
		}
	})
}

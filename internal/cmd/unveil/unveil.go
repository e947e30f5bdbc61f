// Package unveil parses reveal service flags and launches the process.
package unveil

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/unveil/internal/platform/cmd"
	"github.com/louisbranch/unveil/internal/platform/config"
	server "github.com/louisbranch/unveil/internal/services/reveal/app"
)

// Config holds unveil command configuration.
type Config struct {
	Port                int           `env:"UNVEIL_GRPC_PORT" envDefault:"8095"`
	HTTPAddr            string        `env:"UNVEIL_HTTP_ADDR" envDefault:":8096"`
	DBPath              string        `env:"UNVEIL_DB_PATH" envDefault:"data/unveil.db"`
	NotificationsDBPath string        `env:"UNVEIL_NOTIFICATIONS_DB_PATH" envDefault:"data/notifications.db"`
	RequestQuota        int           `env:"UNVEIL_REQUEST_QUOTA" envDefault:"20"`
	RequestWindow       time.Duration `env:"UNVEIL_REQUEST_WINDOW" envDefault:"24h"`
	CodeTTL             time.Duration `env:"UNVEIL_CODE_TTL" envDefault:"10m"`
	SessionIssuer       string        `env:"UNVEIL_SESSION_ISSUER"`
	SessionAudience     string        `env:"UNVEIL_SESSION_AUDIENCE"`
	SessionPublicKey    string        `env:"UNVEIL_SESSION_PUBLIC_KEY"`
	CORSOrigins         string        `env:"UNVEIL_CORS_ORIGINS"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The reveal gRPC server port")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The websocket gateway listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the reveal SQLite database")
	fs.StringVar(&cfg.NotificationsDBPath, "notifications-db", cfg.NotificationsDBPath, "Path to the notifications SQLite database")
	fs.IntVar(&cfg.RequestQuota, "request-quota", cfg.RequestQuota, "Connection requests allowed per window")
	fs.DurationVar(&cfg.RequestWindow, "request-window", cfg.RequestWindow, "Rolling window for the request quota")
	fs.DurationVar(&cfg.CodeTTL, "code-ttl", cfg.CodeTTL, "Lifetime of known-connection verification codes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// serverConfig maps command configuration onto the process wiring.
func (c Config) serverConfig() server.Config {
	return server.Config{
		GRPCAddr:            fmt.Sprintf(":%d", c.Port),
		HTTPAddr:            c.HTTPAddr,
		DBPath:              c.DBPath,
		NotificationsDBPath: c.NotificationsDBPath,
		RequestQuota:        c.RequestQuota,
		RequestWindow:       c.RequestWindow,
		CodeTTL:             c.CodeTTL,
		SessionIssuer:       c.SessionIssuer,
		SessionAudience:     c.SessionAudience,
		SessionPublicKey:    c.SessionPublicKey,
		CORSOrigins:         config.SplitList(c.CORSOrigins),
	}
}

// Run starts the reveal gRPC API and websocket gateway.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceUnveil, func(context.Context) error {
		return server.Run(ctx, cfg.serverConfig())
	})
}

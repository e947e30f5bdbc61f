// Package gateway serves live reveal sessions over websockets. Frames carry
// full records so clients upsert by ID, and every write goes through the
// reveal engine.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/platform/requestctx"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	"github.com/rs/cors"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	maxClientMessageIDRunes = 128
	historyPageSize         = 50
)

// Engine is the slice of the reveal service the gateway drives.
type Engine interface {
	GetConnection(ctx context.Context, connectionID string, viewerID string) (domain.Connection, error)
	SendMessage(ctx context.Context, connectionID string, senderID string, content string, clientMessageID string) (domain.Message, error)
	FetchMessages(ctx context.Context, connectionID string, readerID string, before domain.MessageCursor, limit int) ([]domain.Message, error)
	MarkRead(ctx context.Context, connectionID string, readerID string) (int64, error)
	SetTyping(ctx context.Context, connectionID string, userID string, isTyping bool) (presence.State, error)
	ListTyping(ctx context.Context, connectionID string, viewerID string) ([]presence.State, error)
}

// Config wires the gateway's collaborators.
type Config struct {
	Engine        Engine
	Hub           *realtime.Hub
	Authenticator Authenticator
	// AllowedOrigins restricts browser origins for both CORS and the
	// websocket handshake. Empty allows any origin.
	AllowedOrigins []string
}

// NewHandler builds the gateway routes: /up for liveness and /ws for
// authenticated sessions.
func NewHandler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsServer := websocket.Server{
		Handshake: func(config *websocket.Config, r *http.Request) error {
			return checkOrigin(cfg.AllowedOrigins, r)
		},
		Handler: func(conn *websocket.Conn) {
			handleWSConn(conn, cfg)
		},
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if cfg.Engine == nil || cfg.Hub == nil || cfg.Authenticator == nil {
			http.Error(w, "websocket gateway is not configured", http.StatusServiceUnavailable)
			return
		}

		token := tokenFromRequest(r)
		if token == "" {
			log.Printf("gateway: websocket unauthorized: missing session token remote=%s", r.RemoteAddr)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		userID, err := cfg.Authenticator.Authenticate(r.Context(), token)
		if err != nil || strings.TrimSpace(userID) == "" {
			log.Printf("gateway: websocket unauthorized remote=%s err=%v", r.RemoteAddr, err)
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		ctx := requestctx.WithSession(r.Context(), requestctx.Session{
			UserID: userID,
			Locale: localeFromRequest(r),
		})
		wsServer.ServeHTTP(w, r.WithContext(ctx))
	})

	options := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) == 0 {
		options.AllowedOrigins = []string{"*"}
		options.AllowCredentials = false
	}
	return cors.New(options).Handler(mux)
}

// checkOrigin enforces the allow list on the websocket handshake. Non-browser
// clients that send no Origin are accepted.
func checkOrigin(allowed []string, r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(allowed) == 0 {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin %q", origin)
	}
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(strings.TrimRight(candidate, "/"), origin) {
			return nil
		}
	}
	return fmt.Errorf("origin %q is not allowed", origin)
}

func handleWSConn(conn *websocket.Conn, cfg Config) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	caller, ok := requestctx.SessionFromContext(ctx)
	if !ok {
		return
	}

	peer := newWSPeer(json.NewEncoder(conn), caller.Locale)
	sub := cfg.Hub.Subscribe(realtime.RequestsTopic(caller.UserID))
	session := newWSSession(caller.UserID, peer, sub)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		session.pump()
	}()
	defer func() {
		sub.Close()
		<-pumpDone
	}()

	decoder := json.NewDecoder(conn)
	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			_ = peer.writeError("", codeInvalidArgument, "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = peer.writeError(frame.RequestID, codeInvalidArgument, "payload too large")
			continue
		}

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = peer.writeError(frame.RequestID, codeRateLimited, "rate limit exceeded")
			return
		}

		switch frame.Type {
		case frameConnectionJoin:
			handleJoinFrame(ctx, cfg.Engine, session, frame)
		case frameMessageSend:
			handleSendFrame(ctx, cfg.Engine, session, frame)
		case frameHistoryBefore:
			handleHistoryBeforeFrame(ctx, cfg.Engine, session, frame)
		case frameMessageRead:
			handleReadFrame(ctx, cfg.Engine, session, frame)
		case frameTypingSet:
			handleTypingFrame(ctx, cfg.Engine, session, frame)
		default:
			_ = peer.writeError(frame.RequestID, codeInvalidArgument, "unsupported frame type")
		}
	}
}

// Package requestctx carries an authenticated session through HTTP request
// contexts.
package requestctx

import (
	"context"
	"strings"
)

type sessionContextKey struct{}

// Session is the caller resolved at the edge.
type Session struct {
	UserID string
	Locale string
}

// WithSession stores the caller. A blank user leaves ctx unchanged.
func WithSession(ctx context.Context, session Session) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	session.UserID = strings.TrimSpace(session.UserID)
	if session.UserID == "" {
		return ctx
	}
	session.Locale = strings.TrimSpace(session.Locale)
	return context.WithValue(ctx, sessionContextKey{}, session)
}

// SessionFromContext returns the stored caller and whether one was set.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}

// UserIDFromContext returns the stored caller's user ID.
func UserIDFromContext(ctx context.Context) string {
	session, _ := SessionFromContext(ctx)
	return session.UserID
}

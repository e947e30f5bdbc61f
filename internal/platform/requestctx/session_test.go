package requestctx

import (
	"context"
	"testing"
)

func TestSessionRoundTrip(t *testing.T) {
	ctx := WithSession(context.Background(), Session{UserID: " alice ", Locale: "pt-BR"})
	got, ok := SessionFromContext(ctx)
	if !ok {
		t.Fatal("expected session in context")
	}
	if got.UserID != "alice" || got.Locale != "pt-BR" {
		t.Fatalf("session = %+v", got)
	}
	if UserIDFromContext(ctx) != "alice" {
		t.Fatalf("UserIDFromContext = %q, want alice", UserIDFromContext(ctx))
	}
}

func TestWithSessionIgnoresBlankUser(t *testing.T) {
	ctx := WithSession(context.Background(), Session{UserID: "  ", Locale: "en-US"})
	if _, ok := SessionFromContext(ctx); ok {
		t.Fatal("expected no session for blank user")
	}
}

func TestSessionFromNilContext(t *testing.T) {
	if _, ok := SessionFromContext(nil); ok {
		t.Fatal("expected no session for nil context")
	}
	if got := UserIDFromContext(nil); got != "" {
		t.Fatalf("expected empty user, got %q", got)
	}
	ctx := WithSession(nil, Session{UserID: "bob"})
	if UserIDFromContext(ctx) != "bob" {
		t.Fatal("expected session on nil parent")
	}
}

package gateway

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testIssuer   = "unveil-accounts"
	testAudience = "unveil-reveal"
)

var testNow = time.Date(2026, time.April, 6, 18, 0, 0, 0, time.UTC)

func newTestKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func signToken(t *testing.T, priv ed25519.PrivateKey, claims jwt.RegisteredClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    testIssuer,
		Audience:  jwt.ClaimStrings{testAudience},
		IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
	}
}

func testVerifier(pub ed25519.PublicKey) SessionVerifier {
	return SessionVerifier{
		Issuer:   testIssuer,
		Audience: testAudience,
		Key:      pub,
		Now:      func() time.Time { return testNow },
	}
}

func TestSessionVerifierAcceptsValidToken(t *testing.T) {
	pub, priv := newTestKeys(t)
	userID, err := testVerifier(pub).Authenticate(context.Background(), signToken(t, priv, validClaims("alice")))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != "alice" {
		t.Fatalf("user id = %q, want alice", userID)
	}
}

func TestSessionVerifierRejections(t *testing.T) {
	pub, priv := newTestKeys(t)
	_, otherPriv := newTestKeys(t)

	expired := validClaims("alice")
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second))

	wrongIssuer := validClaims("alice")
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := validClaims("alice")
	wrongAudience.Audience = jwt.ClaimStrings{"chat"}

	noExpiry := validClaims("alice")
	noExpiry.ExpiresAt = nil

	hmac, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("alice")).SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign hmac token: %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "  ", want: ErrSessionInvalid},
		{name: "garbage", token: "not-a-token", want: ErrSessionInvalid},
		{name: "expired", token: signToken(t, priv, expired), want: ErrSessionExpired},
		{name: "wrong issuer", token: signToken(t, priv, wrongIssuer), want: ErrSessionMismatch},
		{name: "wrong audience", token: signToken(t, priv, wrongAudience), want: ErrSessionMismatch},
		{name: "missing expiry", token: signToken(t, priv, noExpiry), want: ErrSessionInvalid},
		{name: "other key", token: signToken(t, otherPriv, validClaims("alice")), want: ErrSessionInvalid},
		{name: "hmac method", token: hmac, want: ErrSessionInvalid},
		{name: "blank subject", token: signToken(t, priv, validClaims(" ")), want: ErrSessionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testVerifier(pub).Authenticate(context.Background(), tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSessionVerifierRequiresConfiguration(t *testing.T) {
	_, priv := newTestKeys(t)
	_, err := SessionVerifier{Issuer: testIssuer}.Authenticate(context.Background(), signToken(t, priv, validClaims("alice")))
	if err == nil {
		t.Fatal("expected error for verifier without key")
	}
}

func TestParsePublicKey(t *testing.T) {
	pub, _ := newTestKeys(t)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		got, err := ParsePublicKey(" " + enc.EncodeToString(pub) + "\n")
		if err != nil {
			t.Fatalf("parse key: %v", err)
		}
		if !got.Equal(pub) {
			t.Fatal("parsed key does not match")
		}
	}

	if _, err := ParsePublicKey(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Fatal("expected size error")
	}
	if _, err := ParsePublicKey("%%%"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTokenFromRequest(t *testing.T) {
	withCookie := httptest.NewRequest(http.MethodGet, "/ws", nil)
	withCookie.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	withCookie.Header.Set("Authorization", "Bearer header-token")
	if got := tokenFromRequest(withCookie); got != "cookie-token" {
		t.Fatalf("token = %q, want cookie-token", got)
	}

	withHeader := httptest.NewRequest(http.MethodGet, "/ws", nil)
	withHeader.Header.Set("Authorization", "bearer  header-token ")
	if got := tokenFromRequest(withHeader); got != "header-token" {
		t.Fatalf("token = %q, want header-token", got)
	}

	basic := httptest.NewRequest(http.MethodGet, "/ws", nil)
	basic.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if got := tokenFromRequest(basic); got != "" {
		t.Fatalf("token = %q, want empty", got)
	}
	if got := tokenFromRequest(nil); got != "" {
		t.Fatalf("token = %q, want empty", got)
	}
}

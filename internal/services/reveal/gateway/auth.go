package gateway

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the browser cookie carrying the session token.
const SessionCookieName = "unveil_session"

var (
	// ErrSessionInvalid covers malformed, unsigned, or mis-signed tokens.
	ErrSessionInvalid = errors.New("session token is invalid")
	// ErrSessionExpired indicates a token past its exp claim.
	ErrSessionExpired = errors.New("session token is expired")
	// ErrSessionMismatch indicates issuer or audience do not match.
	ErrSessionMismatch = errors.New("session token issuer or audience mismatch")
)

// Authenticator resolves a session token to a user ID.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// SessionVerifier checks ed25519-signed session tokens issued by the account
// service. The user ID is the token subject.
type SessionVerifier struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// ParsePublicKey decodes a base64 (standard or URL alphabet) ed25519 key.
func ParsePublicKey(raw string) (ed25519.PublicKey, error) {
	raw = strings.TrimSpace(raw)
	var (
		keyBytes []byte
		err      error
	)
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		keyBytes, err = enc.DecodeString(raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode session public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("session public key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(keyBytes), nil
}

// Authenticate verifies token and returns its subject.
func (v SessionVerifier) Authenticate(_ context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrSessionInvalid
	}
	if v.Issuer == "" || v.Audience == "" || len(v.Key) != ed25519.PublicKeySize {
		return "", errors.New("session verifier is not configured")
	}
	now := v.Now
	if now == nil {
		now = time.Now
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(v.Issuer),
		jwt.WithAudience(v.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrSessionInvalid
	}
	return subject, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrSessionExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrSessionMismatch
	default:
		return fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
}

// tokenFromRequest reads the session cookie, then a bearer Authorization
// header.
func tokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

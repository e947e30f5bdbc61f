package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// CodeLength is the number of characters in a verification code.
	CodeLength = 6
	// MaxCodeAttempts is the number of failed redemptions that burns a code.
	MaxCodeAttempts = 3
	// DefaultCodeTTL is how long a freshly issued code stays redeemable.
	DefaultCodeTTL = 10 * time.Minute
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCode returns a random code drawn uniformly from A-Z0-9.
// A nil reader uses crypto/rand.
func GenerateCode(random io.Reader) (string, error) {
	if random == nil {
		random = rand.Reader
	}
	// 252 is the largest multiple of 36 below 256; higher bytes are rejected
	// to keep the distribution uniform.
	const limit = 252
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(out) < CodeLength {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeCode upper-cases and trims a submitted code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// CodesEqual compares a stored code with a submitted one in constant time.
// Both sides are copied into fixed-size buffers so the comparison does not
// depend on the submitted length.
func CodesEqual(stored, submitted string) bool {
	var a, b [CodeLength]byte
	copy(a[:], NormalizeCode(stored))
	copy(b[:], NormalizeCode(submitted))
	sameLength := subtle.ConstantTimeEq(int32(len(NormalizeCode(submitted))), CodeLength)
	return subtle.ConstantTimeCompare(a[:], b[:])&sameLength == 1 && stored != ""
}

// CodeUsable reports whether the connection's code can still be redeemed.
func CodeUsable(c Connection, now time.Time) bool {
	if c.VerificationCode == "" || c.CodeExpiresAt == nil {
		return false
	}
	if c.CodeAttempts >= MaxCodeAttempts {
		return false
	}
	return now.Before(*c.CodeExpiresAt)
}

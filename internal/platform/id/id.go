// Package id mints the opaque ids used for connections, messages and
// notifications.
package id

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// Length is the size of every id NewID returns.
const Length = 26

var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// NewID returns a random version 4 UUID as unpadded lowercase base32, which
// is URL and filename safe.
func NewID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("new id: %w", err)
	}
	return lowerBase32.EncodeToString(raw[:]), nil
}

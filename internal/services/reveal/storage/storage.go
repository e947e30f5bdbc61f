// Package storage defines persistence contracts for the reveal engine.
//
// Every state-changing method is a conditional write: it names the state it
// expects to replace and reports ErrConflict when another actor changed the
// row first. Callers surface that as "already handled" and never retry blindly.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a conditional write matched no row.
	ErrConflict = errors.New("record changed concurrently")
	// ErrDuplicate indicates a uniqueness rule rejected the write.
	ErrDuplicate = errors.New("record already exists")
	// ErrForbidden indicates a guard on the write failed, such as a block
	// between the pair or a message to a connection that is no longer accepted.
	ErrForbidden = errors.New("write not permitted")
)

// ConnectionStore persists connection records and their transitions.
type ConnectionStore interface {
	// CreateConnection inserts a pending connection. It returns ErrForbidden
	// when either user blocked the other and ErrDuplicate when the pair already
	// holds a pending or accepted connection.
	CreateConnection(ctx context.Context, connection domain.Connection) error
	GetConnection(ctx context.Context, connectionID string) (domain.Connection, error)
	// FindActiveBetween returns the pending or accepted connection for the
	// unordered pair.
	FindActiveBetween(ctx context.Context, userA string, userB string) (domain.Connection, error)
	CountRequestsSince(ctx context.Context, requesterID string, since time.Time) (int, error)

	TransitionStatus(ctx context.Context, connectionID string, from domain.Status, to domain.Status, now time.Time) error
	// AcceptConnection moves a pending connection to accepted, clears any code
	// and seeds the reveal fields.
	AcceptConnection(ctx context.Context, connectionID string, now time.Time) error
	// RedeemCode accepts a pending known connection only while its code is
	// unexpired and under the attempt cap.
	RedeemCode(ctx context.Context, connectionID string, now time.Time) error
	// RecordFailedCodeAttempt increments the attempt counter of a live code and
	// returns the new value. Expired or exhausted codes are left untouched and
	// yield ErrConflict.
	RecordFailedCodeAttempt(ctx context.Context, connectionID string, now time.Time) (int, error)
	ReplaceCode(ctx context.Context, connectionID string, code string, expiresAt time.Time, now time.Time) error

	ListPendingKnownForRecipient(ctx context.Context, recipientID string) ([]domain.Connection, error)
	ListActiveConnections(ctx context.Context, userID string) ([]domain.Connection, error)
	ListIncomingRequests(ctx context.Context, recipientID string) ([]domain.Connection, error)

	// IncrementMessageCount bumps the counter of an accepted connection and
	// returns the updated record.
	IncrementMessageCount(ctx context.Context, connectionID string, now time.Time) (domain.Connection, error)
	// AdvanceStage moves reveal_stage from one value to the next and resets
	// pending consent for every stage the connection has now reached.
	AdvanceStage(ctx context.Context, connectionID string, from domain.Stage, to domain.Stage, now time.Time) error
	// SetConsent swaps one stage's consent state. When touchRequest is set the
	// connection's last consent request time is updated in the same write.
	SetConsent(ctx context.Context, connectionID string, stage domain.Stage, from domain.ConsentState, to domain.ConsentState, now time.Time, touchRequest bool) error
}

// BlockStore persists user blocks.
type BlockStore interface {
	// BlockPair records the block and moves every pending or accepted
	// connection of the pair to blocked, returning the affected IDs.
	BlockPair(ctx context.Context, blockerID string, blockedID string, now time.Time) ([]string, error)
	IsBlocked(ctx context.Context, userA string, userB string) (bool, error)
}

// MessageStore persists connection messages.
type MessageStore interface {
	// AppendMessage inserts a message only while the connection is accepted
	// and, for user messages, the sender is a member. A failed guard yields
	// ErrForbidden; a repeated client message ID yields ErrDuplicate.
	AppendMessage(ctx context.Context, message domain.Message) error
	GetMessageByClientID(ctx context.Context, connectionID string, senderID string, clientMessageID string) (domain.Message, error)
	// ListMessagesBefore returns up to limit messages ordered strictly before
	// the cursor by (created_at, id), newest first. A cursor without an ID
	// excludes every message at its timestamp.
	ListMessagesBefore(ctx context.Context, connectionID string, before domain.MessageCursor, limit int) ([]domain.Message, error)
	// MarkRead flags every unread message not sent by readerID and returns
	// how many changed.
	MarkRead(ctx context.Context, connectionID string, readerID string) (int64, error)
}

// Store groups the reveal persistence contracts.
type Store interface {
	ConnectionStore
	BlockStore
	MessageStore
}

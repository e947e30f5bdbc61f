package domain

import (
	"strings"
	"time"
)

// ConnectionType is the trust model a connection was created under.
type ConnectionType string

const (
	TypeStranger ConnectionType = "stranger"
	TypeKnown    ConnectionType = "known"
)

// Valid reports whether t is a known connection type.
func (t ConnectionType) Valid() bool {
	return t == TypeStranger || t == TypeKnown
}

// Status is the lifecycle state of a connection.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAccepted     Status = "accepted"
	StatusDeclined     Status = "declined"
	StatusCancelled    Status = "cancelled"
	StatusDisconnected Status = "disconnected"
	StatusBlocked      Status = "blocked"
)

// Decision is a party's answer to a request or a consent solicitation.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// ParseDecision normalizes a decision token.
func ParseDecision(raw string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionAccept:
		return DecisionAccept, true
	case DecisionDecline:
		return DecisionDecline, true
	default:
		return "", false
	}
}

// Party identifies which side of a connection a user is on.
type Party string

const (
	PartyNone      Party = ""
	PartyRequester Party = "requester"
	PartyRecipient Party = "recipient"
)

// Other returns the opposite side.
func (p Party) Other() Party {
	switch p {
	case PartyRequester:
		return PartyRecipient
	case PartyRecipient:
		return PartyRequester
	default:
		return PartyNone
	}
}

// MessageType distinguishes user authored messages from engine announcements.
type MessageType string

const (
	MessageTypeUser   MessageType = "user"
	MessageTypeSystem MessageType = "system"
)

// Consent is one stage's handshake entry.
type Consent struct {
	State     ConsentState
	UpdatedAt time.Time
}

// Connection is the central record shared by two users.
type Connection struct {
	ID                 string
	RequesterID        string
	RecipientID        string
	Type               ConnectionType
	Status             Status
	RequestMessage     string
	VerificationCode   string
	CodeExpiresAt      *time.Time
	CodeAttempts       int
	RevealStage        Stage
	MessageCount       int
	Consent            map[Stage]Consent
	LastConsentRequest *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PartyOf returns the side userID occupies, or PartyNone for outsiders.
func (c Connection) PartyOf(userID string) Party {
	switch {
	case userID == "":
		return PartyNone
	case userID == c.RequesterID:
		return PartyRequester
	case userID == c.RecipientID:
		return PartyRecipient
	default:
		return PartyNone
	}
}

// IsMember reports whether userID is one of the two parties.
func (c Connection) IsMember(userID string) bool {
	return c.PartyOf(userID) != PartyNone
}

// Counterpart returns the other member's ID, or "" for outsiders.
func (c Connection) Counterpart(userID string) string {
	switch c.PartyOf(userID) {
	case PartyRequester:
		return c.RecipientID
	case PartyRecipient:
		return c.RequesterID
	default:
		return ""
	}
}

// ConsentFor returns the consent state for stage, defaulting to none.
func (c Connection) ConsentFor(stage Stage) ConsentState {
	if entry, ok := c.Consent[stage]; ok && entry.State != "" {
		return entry.State
	}
	return ConsentNone
}

// Redacted returns a copy without the verification code, for anyone other
// than the requester.
func (c Connection) Redacted() Connection {
	c.VerificationCode = ""
	return c
}

// Message is one entry in a connection's channel.
type Message struct {
	ID              string
	ConnectionID    string
	SenderID        string
	ClientMessageID string
	Content         string
	Type            MessageType
	CreatedAt       time.Time
	IsRead          bool
}

// MessageCursor is a position in a connection's history. Messages sort by
// (CreatedAt, ID); a zero cursor starts at the newest message.
type MessageCursor struct {
	CreatedAt time.Time
	ID        string
}

// Cursor returns the position just after m, so a page fetched from it
// continues with the messages older than m.
func (m Message) Cursor() MessageCursor {
	return MessageCursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// PairKey orders two user IDs so the pair is unordered.
func PairKey(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

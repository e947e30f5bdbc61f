// Package wire holds the JSON shapes reveal records take on every client
// transport.
package wire

import (
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
)

// Connection is the wire form of a connection record.
type Connection struct {
	ID                 string            `json:"id"`
	RequesterID        string            `json:"requester_id"`
	RecipientID        string            `json:"recipient_id"`
	Type               string            `json:"type"`
	Status             string            `json:"status"`
	RequestMessage     string            `json:"request_message,omitempty"`
	VerificationCode   string            `json:"verification_code,omitempty"`
	CodeExpiresAt      *time.Time        `json:"code_expires_at,omitempty"`
	CodeAttempts       int               `json:"code_attempts"`
	RevealStage        string            `json:"reveal_stage"`
	MessageCount       int               `json:"message_count"`
	Consent            map[string]string `json:"consent,omitempty"`
	LastConsentRequest *time.Time        `json:"last_consent_request,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Message is the wire form of a channel message.
type Message struct {
	ID              string    `json:"id"`
	ConnectionID    string    `json:"connection_id"`
	SenderID        string    `json:"sender_id,omitempty"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
	Content         string    `json:"content"`
	Type            string    `json:"type"`
	CreatedAt       time.Time `json:"created_at"`
	IsRead          bool      `json:"is_read"`
}

// TypingState is one member's typing presence.
type TypingState struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	IsTyping     bool      `json:"is_typing"`
	LastTypedAt  time.Time `json:"last_typed_at"`
}

// FromConnection converts a connection record. Consent entries at none are
// omitted.
func FromConnection(c domain.Connection) Connection {
	out := Connection{
		ID:                 c.ID,
		RequesterID:        c.RequesterID,
		RecipientID:        c.RecipientID,
		Type:               string(c.Type),
		Status:             string(c.Status),
		RequestMessage:     c.RequestMessage,
		VerificationCode:   c.VerificationCode,
		CodeExpiresAt:      c.CodeExpiresAt,
		CodeAttempts:       c.CodeAttempts,
		RevealStage:        string(c.RevealStage),
		MessageCount:       c.MessageCount,
		LastConsentRequest: c.LastConsentRequest,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	for stage, entry := range c.Consent {
		if entry.State == "" || entry.State == domain.ConsentNone {
			continue
		}
		if out.Consent == nil {
			out.Consent = make(map[string]string)
		}
		out.Consent[string(stage)] = string(entry.State)
	}
	return out
}

// FromConnections converts a slice of connection records.
func FromConnections(in []domain.Connection) []Connection {
	out := make([]Connection, 0, len(in))
	for _, c := range in {
		out = append(out, FromConnection(c))
	}
	return out
}

// FromMessage converts a channel message.
func FromMessage(m domain.Message) Message {
	return Message{
		ID:              m.ID,
		ConnectionID:    m.ConnectionID,
		SenderID:        m.SenderID,
		ClientMessageID: m.ClientMessageID,
		Content:         m.Content,
		Type:            string(m.Type),
		CreatedAt:       m.CreatedAt,
		IsRead:          m.IsRead,
	}
}

// FromTyping converts a typing state.
func FromTyping(s presence.State) TypingState {
	return TypingState{
		ConnectionID: s.ConnectionID,
		UserID:       s.UserID,
		IsTyping:     s.IsTyping,
		LastTypedAt:  s.LastTypedAt,
	}
}

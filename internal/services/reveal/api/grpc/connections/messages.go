package connections

import (
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/api/wire"
	"github.com/louisbranch/unveil/internal/services/reveal/identity"
)

// Empty is used by calls that take no arguments beyond the caller identity.
type Empty struct{}

// ConnectionRef addresses one connection the caller belongs to.
type ConnectionRef struct {
	ConnectionID string `json:"connection_id"`
}

type CreateStrangerRequestRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
	Message         string `json:"message,omitempty"`
}

type CreateKnownRequestRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
}

type RedeemCodeRequest struct {
	Code string `json:"code"`
}

type RespondToRequestRequest struct {
	ConnectionID string `json:"connection_id"`
	Decision     string `json:"decision"`
}

type BlockRequest struct {
	TargetUserID string `json:"target_user_id"`
}

type RequestStageConsentRequest struct {
	ConnectionID string `json:"connection_id"`
	Stage        string `json:"stage"`
	Decision     string `json:"decision"`
}

type SendMessageRequest struct {
	ConnectionID    string `json:"connection_id"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// FetchMessagesRequest pages backwards from (Before, BeforeID); a nil Before
// starts at the newest message. BeforeID is the oldest message already held
// and keeps messages sharing its timestamp on the next page.
type FetchMessagesRequest struct {
	ConnectionID string     `json:"connection_id"`
	Before       *time.Time `json:"before,omitempty"`
	BeforeID     string     `json:"before_id,omitempty"`
	Limit        int        `json:"limit,omitempty"`
}

type SetTypingRequest struct {
	ConnectionID string `json:"connection_id"`
	IsTyping     bool   `json:"is_typing"`
}

type ConnectionResponse struct {
	Connection wire.Connection `json:"connection"`
}

type ConnectionsResponse struct {
	Connections []wire.Connection `json:"connections"`
}

type MessageResponse struct {
	Message wire.Message `json:"message"`
}

type MessagesResponse struct {
	Messages []wire.Message `json:"messages"`
}

type MarkReadResponse struct {
	Changed int64 `json:"changed"`
}

type TypingResponse struct {
	State wire.TypingState `json:"state"`
}

type TypingListResponse struct {
	States []wire.TypingState `json:"states"`
}

type ProfileResponse struct {
	Profile identity.VisibleProfile `json:"profile"`
}

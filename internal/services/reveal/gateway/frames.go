package gateway

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/api/wire"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

const (
	frameConnectionJoin = "connection.join"
	frameMessageSend    = "message.send"
	frameHistoryBefore  = "message.history.before"
	frameMessageRead    = "message.read"
	frameTypingSet      = "typing.set"

	frameConnectionJoined  = "connection.joined"
	frameConnectionUpdated = "connection.updated"
	frameMessageCreated    = "message.created"
	frameTypingUpdated     = "typing.updated"
	frameStageReached      = "stage.reached"
	frameAck               = "ack"
	frameError             = "error"
)

const (
	codeInvalidArgument = string(apperrors.CodeInvalidArgument)
	codeForbidden       = string(apperrors.CodeForbidden)
	codeConflict        = string(apperrors.CodeConflict)
	codeRateLimited     = string(apperrors.CodeRateLimited)
	codeUnknown         = string(apperrors.CodeUnknown)
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable"`
}

type connectionPayload struct {
	ConnectionID string `json:"connection_id"`
}

type sendPayload struct {
	ConnectionID    string `json:"connection_id"`
	Content         string `json:"content"`
	ClientMessageID string `json:"client_message_id"`
}

type historyBeforePayload struct {
	ConnectionID string    `json:"connection_id"`
	Before       time.Time `json:"before"`
	BeforeID     string    `json:"before_id,omitempty"`
	Limit        int       `json:"limit"`
}

type typingPayload struct {
	ConnectionID string `json:"connection_id"`
	IsTyping     bool   `json:"is_typing"`
}

type joinedPayload struct {
	Connection wire.Connection    `json:"connection"`
	Messages   []wire.Message     `json:"messages"`
	Typing     []wire.TypingState `json:"typing"`
	ServerTime time.Time          `json:"server_time"`
}

type connectionEnvelope struct {
	Connection wire.Connection `json:"connection"`
}

type messageEnvelope struct {
	Message wire.Message `json:"message"`
}

type typingEnvelope struct {
	Typing wire.TypingState `json:"typing"`
}

type readPayload struct {
	ConnectionID string    `json:"connection_id"`
	ReaderID     string    `json:"reader_id"`
	At           time.Time `json:"at"`
}

type stagePayload struct {
	Connection wire.Connection `json:"connection"`
	Stage      string          `json:"stage"`
	At         time.Time       `json:"at"`
}

type ackEnvelope struct {
	Result ackResult `json:"result"`
}

type ackResult struct {
	Status   string            `json:"status"`
	Message  *wire.Message     `json:"message,omitempty"`
	Messages []wire.Message    `json:"messages,omitempty"`
	Count    int               `json:"count"`
	Changed  int64             `json:"changed,omitempty"`
	Typing   *wire.TypingState `json:"typing,omitempty"`
}

func handleJoinFrame(ctx context.Context, engine Engine, session *wsSession, frame wsFrame) {
	var payload connectionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "invalid join payload")
		return
	}
	connectionID := strings.TrimSpace(payload.ConnectionID)
	if connectionID == "" {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "connection_id is required")
		return
	}

	connection, err := engine.GetConnection(ctx, connectionID, session.userID)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	// Subscribe before reading history so nothing falls between the two.
	session.join(connection.ID)

	messages, err := engine.FetchMessages(ctx, connection.ID, session.userID, domain.MessageCursor{}, historyPageSize)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	typing, err := engine.ListTyping(ctx, connection.ID, session.userID)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}

	joined := joinedPayload{
		Connection: wire.FromConnection(connection),
		Messages:   make([]wire.Message, 0, len(messages)),
		Typing:     make([]wire.TypingState, 0, len(typing)),
		ServerTime: time.Now().UTC(),
	}
	for _, msg := range messages {
		joined.Messages = append(joined.Messages, wire.FromMessage(msg))
	}
	for _, state := range typing {
		joined.Typing = append(joined.Typing, wire.FromTyping(state))
	}
	_ = session.peer.writeFrame(wsFrame{Type: frameConnectionJoined, RequestID: frame.RequestID, Payload: mustJSON(joined)})
}

func handleSendFrame(ctx context.Context, engine Engine, session *wsSession, frame wsFrame) {
	var payload sendPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "invalid send payload")
		return
	}
	clientMessageID := strings.TrimSpace(payload.ClientMessageID)
	if utf8.RuneCountInString(clientMessageID) > maxClientMessageIDRunes {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "client_message_id must be at most 128 characters")
		return
	}
	if !requireJoined(session, frame, payload.ConnectionID) {
		return
	}

	msg, err := engine.SendMessage(ctx, payload.ConnectionID, session.userID, payload.Content, clientMessageID)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	out := wire.FromMessage(msg)
	writeAck(session, frame.RequestID, ackResult{Status: "ok", Message: &out, Count: 1})
}

func handleHistoryBeforeFrame(ctx context.Context, engine Engine, session *wsSession, frame wsFrame) {
	var payload historyBeforePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "invalid history payload")
		return
	}
	if payload.Before.IsZero() {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "before is required")
		return
	}
	if !requireJoined(session, frame, payload.ConnectionID) {
		return
	}

	page, err := engine.FetchMessages(ctx, payload.ConnectionID, session.userID, domain.MessageCursor{CreatedAt: payload.Before, ID: payload.BeforeID}, payload.Limit)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	messages := make([]wire.Message, 0, len(page))
	for _, msg := range page {
		messages = append(messages, wire.FromMessage(msg))
	}
	writeAck(session, frame.RequestID, ackResult{Status: "ok", Messages: messages, Count: len(messages)})
}

func handleReadFrame(ctx context.Context, engine Engine, session *wsSession, frame wsFrame) {
	var payload connectionPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "invalid read payload")
		return
	}
	if !requireJoined(session, frame, payload.ConnectionID) {
		return
	}
	changed, err := engine.MarkRead(ctx, payload.ConnectionID, session.userID)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	writeAck(session, frame.RequestID, ackResult{Status: "ok", Changed: changed})
}

func handleTypingFrame(ctx context.Context, engine Engine, session *wsSession, frame wsFrame) {
	var payload typingPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = session.peer.writeError(frame.RequestID, codeInvalidArgument, "invalid typing payload")
		return
	}
	if !requireJoined(session, frame, payload.ConnectionID) {
		return
	}
	state, err := engine.SetTyping(ctx, payload.ConnectionID, session.userID, payload.IsTyping)
	if err != nil {
		writeEngineError(session, frame.RequestID, err)
		return
	}
	out := wire.FromTyping(state)
	writeAck(session, frame.RequestID, ackResult{Status: "ok", Typing: &out})
}

func requireJoined(session *wsSession, frame wsFrame, connectionID string) bool {
	if session.hasJoined(strings.TrimSpace(connectionID)) {
		return true
	}
	_ = session.peer.writeError(frame.RequestID, codeForbidden, "must join the connection first")
	return false
}

func writeAck(session *wsSession, requestID string, result ackResult) {
	_ = session.peer.writeFrame(wsFrame{Type: frameAck, RequestID: requestID, Payload: mustJSON(ackEnvelope{Result: result})})
}

// writeEngineError sends the engine's error code to the client. Uncoded
// errors are logged and reported as UNKNOWN.
func writeEngineError(session *wsSession, requestID string, err error) {
	code := string(apperrors.CodeOf(err))
	if code == codeUnknown {
		log.Printf("gateway: engine call user=%q err=%v", session.userID, err)
		_ = session.peer.writeError(requestID, codeUnknown, "")
		return
	}
	_ = session.peer.writeError(requestID, code, err.Error())
}

package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/platform/grpc/pagination"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

// SendMessage appends a user message to an accepted connection. A repeated
// clientMessageID from the same sender returns the stored message without
// publishing it again.
func (s *Service) SendMessage(ctx context.Context, connectionID string, senderID string, content string, clientMessageID string) (domain.Message, error) {
	if err := s.ready(); err != nil {
		return domain.Message{}, err
	}
	content = strings.TrimSpace(content)
	clientMessageID = strings.TrimSpace(clientMessageID)
	if content == "" {
		return domain.Message{}, apperrors.New(apperrors.CodeEmptyContent, "message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxMessageRunes {
		return domain.Message{}, apperrors.New(apperrors.CodeInvalidArgument, "message content is too long")
	}
	connection, err := s.loadConnection(ctx, connectionID, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if connection.Status != domain.StatusAccepted {
		return domain.Message{}, apperrors.New(apperrors.CodeForbidden, "connection is not accepted")
	}
	if clientMessageID != "" {
		existing, err := s.store.GetMessageByClientID(ctx, connection.ID, senderID, clientMessageID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return domain.Message{}, storeError("lookup client message", err)
		}
	}

	messageID, err := s.newID()
	if err != nil {
		return domain.Message{}, apperrors.Wrap(apperrors.CodeUnknown, "generate message id", err)
	}
	msg := domain.Message{
		ID:              messageID,
		ConnectionID:    connection.ID,
		SenderID:        senderID,
		ClientMessageID: clientMessageID,
		Content:         content,
		Type:            domain.MessageTypeUser,
		CreatedAt:       s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, storage.ErrDuplicate) && clientMessageID != "" {
			existing, lookupErr := s.store.GetMessageByClientID(ctx, connection.ID, senderID, clientMessageID)
			if lookupErr == nil {
				return existing, nil
			}
		}
		if errors.Is(err, storage.ErrForbidden) {
			return domain.Message{}, apperrors.Wrap(apperrors.CodeForbidden, "connection is not accepted", err)
		}
		return domain.Message{}, storeError("append message", err)
	}

	s.publishMessage(msg)
	if _, err := s.OnMessageAppended(ctx, connection.ID); err != nil {
		s.log("reveal: stage engine connection=%q err=%v", connection.ID, err)
	}
	s.emit(ctx, notify.Event{
		Type:         notify.TypeMessageReceived,
		RecipientID:  connection.Counterpart(senderID),
		ActorID:      senderID,
		ConnectionID: connection.ID,
		Metadata: map[string]string{
			notify.MetaMessageID: msg.ID,
			notify.MetaPreview:   msg.Content,
		},
	})
	return msg, nil
}

// FetchMessages returns up to limit messages ordered before the cursor, in
// ascending order. A zero cursor starts at the newest message; a page
// shorter than limit means history is exhausted. Passing the oldest
// message's Cursor fetches the next page without skipping messages that
// share its timestamp.
func (s *Service) FetchMessages(ctx context.Context, connectionID string, readerID string, before domain.MessageCursor, limit int) ([]domain.Message, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	connection, err := s.loadConnection(ctx, connectionID, readerID)
	if err != nil {
		return nil, err
	}
	limit = pagination.Messages.Clamp(limit)
	page, err := s.store.ListMessagesBefore(ctx, connection.ID, before, limit)
	if err != nil {
		return nil, storeError("list messages", err)
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// MarkRead flags every message the reader received as read. It is
// idempotent and only publishes when something changed.
func (s *Service) MarkRead(ctx context.Context, connectionID string, readerID string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	connection, err := s.loadConnection(ctx, connectionID, readerID)
	if err != nil {
		return 0, err
	}
	changed, err := s.store.MarkRead(ctx, connection.ID, readerID)
	if err != nil {
		return 0, storeError("mark read", err)
	}
	if changed > 0 {
		s.publish(realtime.ConnectionTopic(connection.ID), realtime.Event{
			Type:     realtime.EventMessageRead,
			ReaderID: readerID,
			At:       s.now(),
		})
	}
	return changed, nil
}

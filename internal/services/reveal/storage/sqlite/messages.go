package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

const messageColumns = `id, connection_id, sender_id, client_message_id, content, message_type, created_at, is_read`

// Message timestamps keep nanosecond precision so the pagination cursor can
// separate messages sent within the same millisecond.
func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		m           domain.Message
		messageType string
		createdAt   int64
		isRead      int
	)
	if err := row.Scan(
		&m.ID,
		&m.ConnectionID,
		&m.SenderID,
		&m.ClientMessageID,
		&m.Content,
		&messageType,
		&createdAt,
		&isRead,
	); err != nil {
		return domain.Message{}, err
	}
	m.Type = domain.MessageType(messageType)
	m.CreatedAt = fromNanos(createdAt)
	m.IsRead = isRead != 0
	return m, nil
}

// AppendMessage inserts a message guarded by the connection's live state.
func (s *Store) AppendMessage(ctx context.Context, message domain.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if message.ID == "" || message.ConnectionID == "" {
		return fmt.Errorf("message id and connection id are required")
	}

	var (
		result sql.Result
		err    error
	)
	switch message.Type {
	case domain.MessageTypeUser:
		if strings.TrimSpace(message.SenderID) == "" {
			return fmt.Errorf("sender id is required for user messages")
		}
		result, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`)
			 SELECT ?, ?, ?, ?, ?, 'user', ?, 0
			 WHERE EXISTS (
			   SELECT 1 FROM connections
			   WHERE id = ? AND status = 'accepted' AND (requester_id = ? OR recipient_id = ?)
			 )`,
			message.ID,
			message.ConnectionID,
			message.SenderID,
			message.ClientMessageID,
			message.Content,
			toNanos(message.CreatedAt),
			message.ConnectionID,
			message.SenderID,
			message.SenderID,
		)
	case domain.MessageTypeSystem:
		result, err = s.sqlDB.ExecContext(ctx,
			`INSERT INTO messages (`+messageColumns+`)
			 SELECT ?, ?, '', '', ?, 'system', ?, 0
			 WHERE EXISTS (SELECT 1 FROM connections WHERE id = ? AND status = 'accepted')`,
			message.ID,
			message.ConnectionID,
			message.Content,
			toNanos(message.CreatedAt),
			message.ConnectionID,
		)
	default:
		return fmt.Errorf("unknown message type %q", message.Type)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("append message: %w", err)
	}
	if err := requireOne(result, "append message"); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return storage.ErrForbidden
		}
		return err
	}
	return nil
}

// GetMessageByClientID returns the message a sender stored under a client ID.
func (s *Store) GetMessageByClientID(ctx context.Context, connectionID string, senderID string, clientMessageID string) (domain.Message, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Message{}, err
	}
	if strings.TrimSpace(clientMessageID) == "" {
		return domain.Message{}, storage.ErrNotFound
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE connection_id = ? AND sender_id = ? AND client_message_id = ?`,
		connectionID,
		senderID,
		clientMessageID,
	)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Message{}, storage.ErrNotFound
		}
		return domain.Message{}, fmt.Errorf("get message by client id: %w", err)
	}
	return m, nil
}

// ListMessagesBefore returns messages strictly before the (created_at, id)
// cursor, newest first.
func (s *Store) ListMessagesBefore(ctx context.Context, connectionID string, before domain.MessageCursor, limit int) ([]domain.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	var cursor int64
	if !before.CreatedAt.IsZero() {
		cursor = toNanos(before.CreatedAt)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE connection_id = ?
		   AND (? = 0 OR created_at < ? OR (created_at = ? AND ? <> '' AND id < ?))
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		connectionID,
		cursor,
		cursor,
		cursor,
		before.ID,
		before.ID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// MarkRead flags unread messages not sent by readerID.
func (s *Store) MarkRead(ctx context.Context, connectionID string, readerID string) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE messages SET is_read = 1
		 WHERE connection_id = ? AND sender_id <> ? AND is_read = 0`,
		connectionID,
		readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read rows affected: %w", err)
	}
	return affected, nil
}

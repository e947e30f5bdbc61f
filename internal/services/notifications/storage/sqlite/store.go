// Package sqlite keeps notification inboxes in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/unveil/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/unveil/internal/services/notifications/domain"
	"github.com/louisbranch/unveil/internal/services/notifications/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store is the inbox store. It satisfies domain.Store.
type Store struct {
	db *sql.DB
}

const itemColumns = `id, recipient_id, kind, payload, dedupe_key, source, created_at, updated_at, read_at`

// Open opens the inbox database at path and brings its schema up to date.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := sql.Open("sqlite", filepath.Clean(path)+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open inbox db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping inbox db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), db, migrations.FS, ""); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate inbox db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context, recipientID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.db == nil {
		return "", domain.ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return "", domain.ErrRecipientUserIDRequired
	}
	return recipientID, nil
}

// PutNotification inserts a new inbox item. A second item with the same
// recipient and dedupe key fails with domain.ErrConflict.
func (s *Store) PutNotification(ctx context.Context, n domain.Notification) error {
	recipientID, err := s.check(ctx, n.RecipientUserID)
	if err != nil {
		return err
	}
	n.RecipientUserID = recipientID
	n.ID = strings.TrimSpace(n.ID)
	n.MessageType = domain.NormalizeMessageType(n.MessageType)
	switch {
	case n.ID == "":
		return domain.ErrNotificationIDRequired
	case n.MessageType == "":
		return domain.ErrMessageTypeRequired
	case n.CreatedAt.IsZero():
		return fmt.Errorf("notification %s has no creation time", n.ID)
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	var readAt sql.NullInt64
	if n.ReadAt != nil {
		readAt = sql.NullInt64{Int64: n.ReadAt.UTC().UnixMilli(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO inbox_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.RecipientUserID, n.MessageType,
		strings.TrimSpace(n.PayloadJSON), strings.TrimSpace(n.DedupeKey), strings.TrimSpace(n.Source),
		n.CreatedAt.UTC().UnixMilli(), n.UpdatedAt.UTC().UnixMilli(), readAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert inbox item %s: %w", n.ID, err)
	}
	return nil
}

// GetNotificationByRecipientAndDedupeKey finds the item a producer already
// stored under dedupeKey. A blank key never matches.
func (s *Store) GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (domain.Notification, error) {
	recipientID, err := s.check(ctx, recipientUserID)
	if err != nil {
		return domain.Notification{}, err
	}
	dedupeKey = strings.TrimSpace(dedupeKey)
	if dedupeKey == "" {
		return domain.Notification{}, domain.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inbox_items WHERE recipient_id = ? AND dedupe_key = ?`,
		recipientID, dedupeKey)
	return scanItem(row)
}

// ListNotificationsByRecipient returns up to pageSize items, newest first.
// The page token names the last item of the previous page as
// "<created millis>.<id>", so paging needs no extra lookup.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (domain.NotificationPage, error) {
	recipientID, err := s.check(ctx, recipientUserID)
	if err != nil {
		return domain.NotificationPage{}, err
	}
	if pageSize < 1 {
		return domain.NotificationPage{}, fmt.Errorf("page size %d is not positive", pageSize)
	}

	query := `SELECT ` + itemColumns + ` FROM inbox_items WHERE recipient_id = ?`
	args := []any{recipientID}
	if token := strings.TrimSpace(pageToken); token != "" {
		afterMillis, afterID, err := parseCursor(token)
		if err != nil {
			return domain.NotificationPage{}, err
		}
		query += ` AND (created_at < ? OR (created_at = ? AND id < ?))`
		args = append(args, afterMillis, afterMillis, afterID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.NotificationPage{}, fmt.Errorf("list inbox for %s: %w", recipientID, err)
	}
	defer rows.Close()

	items := make([]domain.Notification, 0, pageSize+1)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return domain.NotificationPage{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.NotificationPage{}, fmt.Errorf("list inbox for %s: %w", recipientID, err)
	}

	var page domain.NotificationPage
	if len(items) > pageSize {
		items = items[:pageSize]
		page.NextPageToken = formatCursor(items[pageSize-1])
	}
	page.Notifications = items
	return page, nil
}

// CountUnreadNotificationsByRecipient counts items without a read time.
func (s *Store) CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error) {
	recipientID, err := s.check(ctx, recipientUserID)
	if err != nil {
		return 0, err
	}
	var unread int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inbox_items WHERE recipient_id = ? AND read_at IS NULL`,
		recipientID).Scan(&unread)
	if err != nil {
		return 0, fmt.Errorf("count unread for %s: %w", recipientID, err)
	}
	return unread, nil
}

// MarkNotificationRead stamps the item read. The first read time sticks.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (domain.Notification, error) {
	recipientID, err := s.check(ctx, recipientUserID)
	if err != nil {
		return domain.Notification{}, err
	}
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return domain.Notification{}, domain.ErrNotificationIDRequired
	}
	at := readAt.UTC().UnixMilli()
	row := s.db.QueryRowContext(ctx, `
UPDATE inbox_items
SET read_at = COALESCE(read_at, ?), updated_at = CASE WHEN read_at IS NULL THEN ? ELSE updated_at END
WHERE recipient_id = ? AND id = ?
RETURNING `+itemColumns, at, at, recipientID, notificationID)
	return scanItem(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (domain.Notification, error) {
	var (
		n                    domain.Notification
		createdAt, updatedAt int64
		readAt               sql.NullInt64
	)
	err := row.Scan(&n.ID, &n.RecipientUserID, &n.MessageType, &n.PayloadJSON, &n.DedupeKey, &n.Source, &createdAt, &updatedAt, &readAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Notification{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Notification{}, fmt.Errorf("scan inbox item: %w", err)
	}
	n.CreatedAt = time.UnixMilli(createdAt).UTC()
	n.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if readAt.Valid {
		at := time.UnixMilli(readAt.Int64).UTC()
		n.ReadAt = &at
	}
	return n, nil
}

func formatCursor(n domain.Notification) string {
	return strconv.FormatInt(n.CreatedAt.UnixMilli(), 10) + "." + n.ID
}

func parseCursor(token string) (int64, string, error) {
	rawMillis, id, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return 0, "", domain.ErrInvalidPageToken
	}
	millis, err := strconv.ParseInt(rawMillis, 10, 64)
	if err != nil || millis < 0 {
		return 0, "", domain.ErrInvalidPageToken
	}
	return millis, id, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

var _ domain.Store = (*Store)(nil)

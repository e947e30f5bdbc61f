// Package domain owns the recipient inbox: producers record intents, members
// list and acknowledge them.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/unveil/internal/platform/grpc/pagination"
	"github.com/louisbranch/unveil/internal/platform/id"
)

var (
	ErrNotFound                = errors.New("notification not found")
	ErrConflict                = errors.New("notification already exists")
	ErrStoreNotConfigured      = errors.New("notification store is not configured")
	ErrRecipientUserIDRequired = errors.New("recipient user id is required")
	ErrMessageTypeRequired     = errors.New("notification message type is required")
	ErrNotificationIDRequired  = errors.New("notification id is required")
	ErrInvalidPageToken        = errors.New("notification page token is invalid")
)

// Notification is one inbox item. DedupeKey is unique per recipient when set.
type Notification struct {
	ID              string
	RecipientUserID string
	MessageType     string
	PayloadJSON     string
	DedupeKey       string
	Source          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ReadAt          *time.Time
}

// NotificationPage is one slice of an inbox, newest first.
type NotificationPage struct {
	Notifications []Notification
	NextPageToken string
}

// CreateIntentInput is what a producer asks to deliver.
type CreateIntentInput struct {
	RecipientUserID string
	MessageType     string
	PayloadJSON     string
	DedupeKey       string
	Source          string
}

type ListInboxInput struct {
	RecipientUserID string
	PageSize        int
	PageToken       string
}

type MarkReadInput struct {
	RecipientUserID string
	NotificationID  string
}

type GetUnreadStatusInput struct {
	RecipientUserID string
}

type UnreadStatus struct {
	HasUnread   bool
	UnreadCount int
}

// Store persists inboxes. PutNotification returns ErrConflict when the
// recipient already holds the dedupe key, and lookups return ErrNotFound.
type Store interface {
	GetNotificationByRecipientAndDedupeKey(ctx context.Context, recipientUserID string, dedupeKey string) (Notification, error)
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientUserID string, pageSize int, pageToken string) (NotificationPage, error)
	CountUnreadNotificationsByRecipient(ctx context.Context, recipientUserID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientUserID string, notificationID string, readAt time.Time) (Notification, error)
}

// Service records and serves recipient inboxes.
type Service struct {
	store Store
	clock func() time.Time
	newID func() (string, error)
}

// NewService builds the inbox service. A nil clock uses time.Now and a nil
// newID uses random ids.
func NewService(store Store, clock func() time.Time, newID func() (string, error)) *Service {
	svc := &Service{store: store, clock: clock, newID: newID}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = id.NewID
	}
	return svc
}

// recipient validates the service and returns the trimmed recipient id.
func (s *Service) recipient(raw string) (string, error) {
	if s == nil || s.store == nil {
		return "", ErrStoreNotConfigured
	}
	recipientID := strings.TrimSpace(raw)
	if recipientID == "" {
		return "", ErrRecipientUserIDRequired
	}
	return recipientID, nil
}

// CreateIntent stores a notification for the recipient. When the dedupe key
// was already used for that recipient the earlier notification is returned
// and nothing new is stored, including when a concurrent producer wins the
// insert.
func (s *Service) CreateIntent(ctx context.Context, input CreateIntentInput) (Notification, error) {
	recipientID, err := s.recipient(input.RecipientUserID)
	if err != nil {
		return Notification{}, err
	}
	messageType := NormalizeMessageType(input.MessageType)
	if messageType == "" {
		return Notification{}, ErrMessageTypeRequired
	}
	dedupeKey := strings.TrimSpace(input.DedupeKey)
	if existing, found, err := s.existing(ctx, recipientID, dedupeKey); err != nil || found {
		return existing, err
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	now := s.clock().UTC()
	created := Notification{
		ID:              notificationID,
		RecipientUserID: recipientID,
		MessageType:     messageType,
		PayloadJSON:     strings.TrimSpace(input.PayloadJSON),
		DedupeKey:       dedupeKey,
		Source:          strings.TrimSpace(input.Source),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	putErr := s.store.PutNotification(ctx, created)
	if putErr == nil {
		return created, nil
	}
	if dedupeKey == "" || !errors.Is(putErr, ErrConflict) {
		return Notification{}, putErr
	}
	existing, found, err := s.existing(ctx, recipientID, dedupeKey)
	if err != nil {
		return Notification{}, err
	}
	if !found {
		return Notification{}, putErr
	}
	return existing, nil
}

func (s *Service) existing(ctx context.Context, recipientID string, dedupeKey string) (Notification, bool, error) {
	if dedupeKey == "" {
		return Notification{}, false, nil
	}
	found, err := s.store.GetNotificationByRecipientAndDedupeKey(ctx, recipientID, dedupeKey)
	switch {
	case err == nil:
		return found, true, nil
	case errors.Is(err, ErrNotFound):
		return Notification{}, false, nil
	default:
		return Notification{}, false, err
	}
}

// ListInbox returns one page of the recipient's inbox, newest first.
func (s *Service) ListInbox(ctx context.Context, input ListInboxInput) (NotificationPage, error) {
	recipientID, err := s.recipient(input.RecipientUserID)
	if err != nil {
		return NotificationPage{}, err
	}
	return s.store.ListNotificationsByRecipient(ctx, recipientID, pagination.Inbox.Clamp(input.PageSize), strings.TrimSpace(input.PageToken))
}

// MarkRead acknowledges one notification. Only its recipient may do so.
func (s *Service) MarkRead(ctx context.Context, input MarkReadInput) (Notification, error) {
	recipientID, err := s.recipient(input.RecipientUserID)
	if err != nil {
		return Notification{}, err
	}
	notificationID := strings.TrimSpace(input.NotificationID)
	if notificationID == "" {
		return Notification{}, ErrNotificationIDRequired
	}
	return s.store.MarkNotificationRead(ctx, recipientID, notificationID, s.clock().UTC())
}

// GetUnreadStatus counts the recipient's unread notifications.
func (s *Service) GetUnreadStatus(ctx context.Context, input GetUnreadStatusInput) (UnreadStatus, error) {
	recipientID, err := s.recipient(input.RecipientUserID)
	if err != nil {
		return UnreadStatus{}, err
	}
	unread, err := s.store.CountUnreadNotificationsByRecipient(ctx, recipientID)
	if err != nil {
		return UnreadStatus{}, err
	}
	return UnreadStatus{HasUnread: unread > 0, UnreadCount: unread}, nil
}

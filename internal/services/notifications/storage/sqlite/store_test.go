package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/unveil/internal/services/notifications/domain"
)

var inboxEpoch = time.Date(2026, time.April, 6, 20, 0, 0, 0, time.UTC)

func openInbox(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("open inbox: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close inbox: %v", err)
		}
	})
	return store
}

func put(t *testing.T, store *Store, n domain.Notification) {
	t.Helper()
	if err := store.PutNotification(context.Background(), n); err != nil {
		t.Fatalf("put %s: %v", n.ID, err)
	}
}

func item(id string, recipient string, minute int) domain.Notification {
	return domain.Notification{
		ID:              id,
		RecipientUserID: recipient,
		MessageType:     domain.MessageTypeMessageReceived,
		PayloadJSON:     `{"connection_id":"conn-1"}`,
		Source:          "reveal",
		CreatedAt:       inboxEpoch.Add(time.Duration(minute) * time.Minute),
	}
}

func TestOpenRejectsBlankPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected an error for a blank path")
	}
}

func TestPutNotificationRoundTrip(t *testing.T) {
	store := openInbox(t)
	want := domain.Notification{
		ID:              "n-1",
		RecipientUserID: "bob",
		MessageType:     " Stage.Reached ",
		PayloadJSON:     `{"connection_id":"conn-1","stage":"glimpse"}`,
		DedupeKey:       "stage:conn-1:glimpse",
		Source:          "reveal",
		CreatedAt:       inboxEpoch,
	}
	put(t, store, want)

	got, err := store.GetNotificationByRecipientAndDedupeKey(context.Background(), "bob", "stage:conn-1:glimpse")
	if err != nil {
		t.Fatalf("get by dedupe key: %v", err)
	}
	if got.ID != "n-1" || got.MessageType != domain.MessageTypeStageReached || got.PayloadJSON != want.PayloadJSON {
		t.Fatalf("item = %+v", got)
	}
	if !got.CreatedAt.Equal(inboxEpoch) || !got.UpdatedAt.Equal(inboxEpoch) || got.ReadAt != nil {
		t.Fatalf("timestamps = created %v updated %v read %v", got.CreatedAt, got.UpdatedAt, got.ReadAt)
	}

	if _, err := store.GetNotificationByRecipientAndDedupeKey(context.Background(), "alice", "stage:conn-1:glimpse"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other recipient err = %v, want not found", err)
	}
	if _, err := store.GetNotificationByRecipientAndDedupeKey(context.Background(), "bob", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("blank key err = %v, want not found", err)
	}
}

func TestPutNotificationValidation(t *testing.T) {
	store := openInbox(t)
	tests := []struct {
		name string
		item domain.Notification
		want error
	}{
		{name: "id", item: domain.Notification{RecipientUserID: "bob", MessageType: "x", CreatedAt: inboxEpoch}, want: domain.ErrNotificationIDRequired},
		{name: "recipient", item: domain.Notification{ID: "n-1", MessageType: "x", CreatedAt: inboxEpoch}, want: domain.ErrRecipientUserIDRequired},
		{name: "type", item: domain.Notification{ID: "n-1", RecipientUserID: "bob", CreatedAt: inboxEpoch}, want: domain.ErrMessageTypeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.PutNotification(context.Background(), tt.item); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if err := store.PutNotification(context.Background(), domain.Notification{ID: "n-1", RecipientUserID: "bob", MessageType: "x"}); err == nil {
		t.Fatal("expected an error without a creation time")
	}
}

func TestPutNotificationDedupeKeyIsPerRecipient(t *testing.T) {
	store := openInbox(t)
	first := item("n-1", "bob", 0)
	first.DedupeKey = "request:conn-1"
	put(t, store, first)

	retry := first
	retry.ID = "n-2"
	if err := store.PutNotification(context.Background(), retry); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("retry err = %v, want conflict", err)
	}

	forAlice := first
	forAlice.ID = "n-3"
	forAlice.RecipientUserID = "alice"
	put(t, store, forAlice)

	// Items without a key never collide.
	put(t, store, item("n-4", "bob", 1))
	put(t, store, item("n-5", "bob", 1))

	if err := store.PutNotification(context.Background(), item("n-4", "bob", 2)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate id err = %v, want conflict", err)
	}
}

func TestListNotificationsWalksPagesNewestFirst(t *testing.T) {
	store := openInbox(t)
	// n-2 and n-3 share a timestamp so the id breaks the tie.
	put(t, store, item("n-1", "bob", 0))
	put(t, store, item("n-2", "bob", 5))
	put(t, store, item("n-3", "bob", 5))
	put(t, store, item("n-4", "bob", 9))
	put(t, store, item("n-5", "bob", 7))
	put(t, store, item("n-x", "alice", 8))

	var seen []string
	token := ""
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatal("pagination did not terminate")
		}
		page, err := store.ListNotificationsByRecipient(context.Background(), "bob", 2, token)
		if err != nil {
			t.Fatalf("list with token %q: %v", token, err)
		}
		for _, n := range page.Notifications {
			seen = append(seen, n.ID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	want := []string{"n-4", "n-5", "n-3", "n-2", "n-1"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", seen, want)
	}
}

func TestListNotificationsRejectsForeignTokens(t *testing.T) {
	store := openInbox(t)
	for _, token := range []string{"n-1", "abc.n-1", "-5.n-1", "12."} {
		if _, err := store.ListNotificationsByRecipient(context.Background(), "bob", 10, token); !errors.Is(err, domain.ErrInvalidPageToken) {
			t.Fatalf("token %q err = %v, want invalid page token", token, err)
		}
	}
	if _, err := store.ListNotificationsByRecipient(context.Background(), "bob", 0, ""); err == nil {
		t.Fatal("expected an error for a zero page size")
	}
}

func TestMarkNotificationReadKeepsFirstReadTime(t *testing.T) {
	store := openInbox(t)
	put(t, store, item("n-1", "bob", 0))
	put(t, store, item("n-2", "bob", 1))
	put(t, store, item("n-3", "alice", 2))

	firstRead := inboxEpoch.Add(time.Hour)
	read, err := store.MarkNotificationRead(context.Background(), "bob", "n-1", firstRead)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if read.ReadAt == nil || !read.ReadAt.Equal(firstRead) || !read.UpdatedAt.Equal(firstRead) {
		t.Fatalf("read = %+v", read)
	}

	again, err := store.MarkNotificationRead(context.Background(), "bob", "n-1", firstRead.Add(time.Hour))
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if !again.ReadAt.Equal(firstRead) || !again.UpdatedAt.Equal(firstRead) {
		t.Fatalf("second read moved timestamps: %+v", again)
	}

	if _, err := store.MarkNotificationRead(context.Background(), "alice", "n-1", firstRead); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign recipient err = %v, want not found", err)
	}

	for recipient, want := range map[string]int{"bob": 1, "alice": 1, "carol": 0} {
		got, err := store.CountUnreadNotificationsByRecipient(context.Background(), recipient)
		if err != nil {
			t.Fatalf("count unread %s: %v", recipient, err)
		}
		if got != want {
			t.Fatalf("%s unread = %d, want %d", recipient, got, want)
		}
	}
}

func TestInboxServiceOverSQLite(t *testing.T) {
	store := openInbox(t)
	n := 0
	svc := domain.NewService(store, func() time.Time { return inboxEpoch }, func() (string, error) {
		n++
		return fmt.Sprintf("n-%d", n), nil
	})

	intent := domain.CreateIntentInput{
		RecipientUserID: "bob",
		MessageType:     domain.MessageTypeStageReached,
		PayloadJSON:     `{"connection_id":"conn-1","stage":"soul"}`,
		DedupeKey:       "stage:conn-1:soul",
		Source:          "reveal",
	}
	first, err := svc.CreateIntent(context.Background(), intent)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.CreateIntent(context.Background(), intent)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("dedupe returned %q, want %q", second.ID, first.ID)
	}

	status, err := svc.GetUnreadStatus(context.Background(), domain.GetUnreadStatusInput{RecipientUserID: "bob"})
	if err != nil {
		t.Fatalf("unread status: %v", err)
	}
	if !status.HasUnread || status.UnreadCount != 1 {
		t.Fatalf("status = %+v, want one unread", status)
	}
}

func TestNilStoreIsNotConfigured(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
	if _, err := store.CountUnreadNotificationsByRecipient(context.Background(), "bob"); !errors.Is(err, domain.ErrStoreNotConfigured) {
		t.Fatalf("err = %v, want store not configured", err)
	}
}

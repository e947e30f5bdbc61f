package realtime

import (
	"sort"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

// Timeline is a client-side message view that reconciles speculative sends
// with authoritative events. Nothing on the server path uses it. Server
// message IDs are the dedup key; a pending entry is matched by its client
// message ID and replaced in place.
type Timeline struct {
	entries []domain.Message
}

// AddPending inserts a speculative message that has no server ID yet.
func (t *Timeline) AddPending(message domain.Message) {
	message.ID = ""
	if message.ClientMessageID == "" {
		return
	}
	if t.indexOfClient(message.SenderID, message.ClientMessageID) >= 0 {
		return
	}
	t.insert(message)
}

// Apply upserts an authoritative message and reports whether the view grew.
// Repeated deliveries of the same ID only refresh mutable fields.
func (t *Timeline) Apply(message domain.Message) bool {
	if message.ID == "" {
		return false
	}
	if idx := t.indexOfID(message.ID); idx >= 0 {
		t.entries[idx].IsRead = t.entries[idx].IsRead || message.IsRead
		return false
	}
	if message.ClientMessageID != "" {
		if idx := t.indexOfClient(message.SenderID, message.ClientMessageID); idx >= 0 && t.entries[idx].ID == "" {
			t.entries = append(t.entries[:idx], t.entries[idx+1:]...)
			t.insert(message)
			return false
		}
	}
	t.insert(message)
	return true
}

// MarkReadBy flags every message not sent by readerID as read.
func (t *Timeline) MarkReadBy(readerID string) {
	for i := range t.entries {
		if t.entries[i].SenderID != readerID && t.entries[i].ID != "" {
			t.entries[i].IsRead = true
		}
	}
}

// Messages returns the view in display order.
func (t *Timeline) Messages() []domain.Message {
	out := make([]domain.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries, pending ones included.
func (t *Timeline) Len() int {
	return len(t.entries)
}

func (t *Timeline) insert(message domain.Message) {
	idx := sort.Search(len(t.entries), func(i int) bool {
		return less(message, t.entries[i])
	})
	t.entries = append(t.entries, domain.Message{})
	copy(t.entries[idx+1:], t.entries[idx:])
	t.entries[idx] = message
}

func less(a, b domain.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (t *Timeline) indexOfID(id string) int {
	for i := range t.entries {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *Timeline) indexOfClient(senderID, clientMessageID string) int {
	for i := range t.entries {
		if t.entries[i].SenderID == senderID && t.entries[i].ClientMessageID == clientMessageID {
			return i
		}
	}
	return -1
}

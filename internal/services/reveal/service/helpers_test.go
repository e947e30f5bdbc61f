package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/identity"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
	revealsqlite "github.com/louisbranch/unveil/internal/services/reveal/storage/sqlite"
)

var baseTime = time.Date(2026, time.April, 6, 18, 0, 0, 0, time.UTC)

// stepClock advances one millisecond on every read so records written in
// sequence get distinct timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Publish(topic string, event realtime.Event) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Topic = topic
	p.events = append(p.events, event)
	return 1
}

func (p *recordingPublisher) count(eventType realtime.EventType, topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, event := range p.events {
		if event.Type == eventType && (topic == "" || event.Topic == topic) {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last(eventType realtime.EventType, topic string) (realtime.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == eventType && p.events[i].Topic == topic {
			return p.events[i], true
		}
	}
	return realtime.Event{}, false
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Emit(_ context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) of(eventType notify.Type) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notify.Event
	for _, event := range n.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type fakeProfiles struct {
	shadow  map[string]identity.ShadowProfile
	private map[string]identity.RealProfile
}

func (f fakeProfiles) GetShadowProfile(_ context.Context, userID string) (identity.ShadowProfile, error) {
	profile, ok := f.shadow[userID]
	if !ok {
		return identity.ShadowProfile{}, storage.ErrNotFound
	}
	return profile, nil
}

func (f fakeProfiles) GetRealProfile(_ context.Context, userID string) (identity.RealProfile, error) {
	profile, ok := f.private[userID]
	if !ok {
		return identity.RealProfile{}, storage.ErrNotFound
	}
	return profile, nil
}

type harness struct {
	svc       *Service
	store     *revealsqlite.Store
	clock     *stepClock
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store, err := revealsqlite.Open(t.TempDir() + "/reveal.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		store:     store,
		clock:     &stepClock{now: baseTime},
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	var seq atomic.Int64
	base := []Option{
		WithClock(h.clock.Now),
		WithIDGenerator(func() (string, error) {
			return fmt.Sprintf("id-%05d", seq.Add(1)), nil
		}),
		WithPublisher(h.publisher),
		WithNotifier(h.notifier),
		WithTracker(presence.NewTracker(h.clock.Now)),
		WithLogger(func(string, ...any) {}),
	}
	h.svc = New(store, append(base, opts...)...)
	return h
}

// accepted creates a stranger request from requester to recipient and accepts it.
func (h *harness) accepted(t *testing.T, requester string, recipient string) domain.Connection {
	t.Helper()
	ctx := context.Background()
	created, err := h.svc.CreateStrangerRequest(ctx, requester, recipient, "")
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	connection, err := h.svc.RespondToRequest(ctx, created.ID, recipient, domain.DecisionAccept)
	if err != nil {
		t.Fatalf("accept request: %v", err)
	}
	return connection
}

// exchange sends n user messages alternating between the two members.
func (h *harness) exchange(t *testing.T, connection domain.Connection, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		sender := connection.RequesterID
		if i%2 == 1 {
			sender = connection.RecipientID
		}
		if _, err := h.svc.SendMessage(context.Background(), connection.ID, sender, fmt.Sprintf("message %d", i), ""); err != nil {
			t.Fatalf("send message %d: %v", i, err)
		}
	}
}

func (h *harness) reload(t *testing.T, connectionID string) domain.Connection {
	t.Helper()
	connection, err := h.store.GetConnection(context.Background(), connectionID)
	if err != nil {
		t.Fatalf("reload connection: %v", err)
	}
	return connection
}

func requireCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("error code = %s, want %s (err=%v)", apperrors.CodeOf(err), code, err)
	}
}

func systemMessages(messages []domain.Message) []domain.Message {
	var out []domain.Message
	for _, msg := range messages {
		if msg.Type == domain.MessageTypeSystem {
			out = append(out, msg)
		}
	}
	return out
}

var errBoom = errors.New("boom")

package realtime

import (
	"testing"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHubRoutesByTopic(t *testing.T) {
	hub := NewHub(4)
	a := hub.Subscribe(ConnectionTopic("c1"))
	b := hub.Subscribe(ConnectionTopic("c2"), RequestsTopic("bob"))
	defer a.Close()
	defer b.Close()

	msg := &domain.Message{ID: "m1", ConnectionID: "c1"}
	if n := hub.Publish(ConnectionTopic("c1"), Event{Type: EventMessageCreated, Message: msg}); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	ev := receive(t, a)
	if ev.Type != EventMessageCreated || ev.Message.ID != "m1" || ev.Topic != "connection:c1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.At.IsZero() {
		t.Fatal("expected publish time")
	}

	hub.Publish(RequestsTopic("bob"), Event{Type: EventConnectionUpdated})
	if ev := receive(t, b); ev.Topic != "requests:bob" {
		t.Fatalf("topic = %s", ev.Topic)
	}
	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected cross-topic event: %+v", ev)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(1)
	var dropped int
	hub.logf = func(string, ...any) { dropped++ }
	sub := hub.Subscribe(TypingTopic("c1"))
	defer sub.Close()

	hub.Publish(TypingTopic("c1"), Event{Type: EventTypingUpdated})
	if n := hub.Publish(TypingTopic("c1"), Event{Type: EventTypingUpdated}); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
}

func TestSubscriptionAddRemoveClose(t *testing.T) {
	hub := NewHub(2)
	sub := hub.Subscribe()
	sub.Add(ConnectionTopic("c1"))
	sub.Add(ConnectionTopic("c1"))
	if got := hub.Subscribers(ConnectionTopic("c1")); got != 1 {
		t.Fatalf("subscribers = %d", got)
	}
	sub.Remove(ConnectionTopic("c1"))
	if got := hub.Subscribers(ConnectionTopic("c1")); got != 0 {
		t.Fatalf("subscribers after remove = %d", got)
	}

	sub.Add(ConnectionTopic("c2"))
	sub.Close()
	sub.Close()
	if got := hub.Subscribers(ConnectionTopic("c2")); got != 0 {
		t.Fatalf("subscribers after close = %d", got)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel")
	}
	if n := hub.Publish(ConnectionTopic("c2"), Event{}); n != 0 {
		t.Fatalf("delivered after close = %d", n)
	}
}

func TestConnectionIDFromTopic(t *testing.T) {
	tests := map[string]string{
		ConnectionTopic("conn-1"): "conn-1",
		TypingTopic("conn-2"):     "conn-2",
	}
	for topic, want := range tests {
		got, ok := ConnectionIDFromTopic(topic)
		if !ok || got != want {
			t.Fatalf("ConnectionIDFromTopic(%q) = %q, %v", topic, got, ok)
		}
	}
	if _, ok := ConnectionIDFromTopic(RequestsTopic("alice")); ok {
		t.Fatal("requests topic should not resolve to a connection")
	}
	if _, ok := ConnectionIDFromTopic("connection:"); ok {
		t.Fatal("empty id should not resolve")
	}
}

// Package realtime fans change events out to live sessions.
//
// Delivery is best effort: each subscription owns a bounded buffer and events
// that do not fit are dropped with a log line. Sessions recover by fetching
// current state, so the hub is never the source of truth.
//
// Timeline is the receiver-side half of that contract. The server never
// calls it; it is the reconciliation a client applies to fetched pages,
// echoed sends and hub events, kept here with its tests as the reference
// behavior for client implementations.
package realtime

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 64

// EventType names a change notification.
type EventType string

const (
	EventConnectionUpdated EventType = "connection.updated"
	EventMessageCreated    EventType = "message.created"
	EventMessageRead       EventType = "message.read"
	EventTypingUpdated     EventType = "typing.updated"
	EventStageReached      EventType = "stage.reached"
)

// TypingUpdate is the ephemeral presence carried by typing events.
type TypingUpdate struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	IsTyping     bool      `json:"is_typing"`
	LastTypedAt  time.Time `json:"last_typed_at"`
}

// Event carries the full updated record so receivers can upsert by ID.
type Event struct {
	Type       EventType
	Topic      string
	Connection *domain.Connection
	Message    *domain.Message
	Typing     *TypingUpdate
	Stage      domain.Stage
	ReaderID   string
	At         time.Time
}

// Publisher is the producer side of the hub.
type Publisher interface {
	Publish(topic string, event Event) int
}

// ConnectionTopic carries connection and message changes for one connection.
func ConnectionTopic(connectionID string) string {
	return "connection:" + connectionID
}

// ConnectionIDFromTopic returns the connection a connection or typing topic
// belongs to.
func ConnectionIDFromTopic(topic string) (string, bool) {
	for _, prefix := range []string{"connection:", "typing:"} {
		if id, ok := strings.CutPrefix(topic, prefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// RequestsTopic carries request-list changes for one user.
func RequestsTopic(userID string) string {
	return "requests:" + userID
}

// TypingTopic carries typing presence for one connection's pair.
func TypingTopic(connectionID string) string {
	return "typing:" + connectionID
}

// Hub routes events from producers to subscriptions by topic.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	logf   func(string, ...any)
}

// NewHub builds a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
		logf:   log.Printf,
	}
}

// Subscribe opens a subscription on the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		hub:    h,
		events: make(chan Event, h.buffer),
		topics: make(map[string]struct{}),
	}
	for _, topic := range topics {
		sub.Add(topic)
	}
	return sub
}

// Publish delivers event to every subscriber of topic without blocking and
// returns how many received it.
func (h *Hub) Publish(topic string, event Event) int {
	if h == nil {
		return 0
	}
	event.Topic = topic
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.RLock()
	subscribers := make([]*Subscription, 0, len(h.topics[topic]))
	for sub := range h.topics[topic] {
		subscribers = append(subscribers, sub)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, sub := range subscribers {
		if sub.deliver(event) {
			delivered++
			continue
		}
		if h.logf != nil {
			h.logf("realtime: dropped %s on %s", event.Type, topic)
		}
	}
	return delivered
}

// Subscribers returns the current subscriber count for topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) attach(topic string, sub *Subscription) {
	h.mu.Lock()
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) detach(topic string, sub *Subscription) {
	h.mu.Lock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.mu.Unlock()
}

// Subscription is one consumer's view of a set of topics.
type Subscription struct {
	hub *Hub

	mu     sync.Mutex
	events chan Event
	topics map[string]struct{}
	closed bool
}

// Events returns the delivery channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Add subscribes to one more topic.
func (s *Subscription) Add(topic string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.topics[topic]; ok {
		s.mu.Unlock()
		return
	}
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
	s.hub.attach(topic, s)
}

// Remove unsubscribes from one topic.
func (s *Subscription) Remove(topic string) {
	s.mu.Lock()
	_, ok := s.topics[topic]
	delete(s.topics, topic)
	s.mu.Unlock()
	if ok {
		s.hub.detach(topic, s)
	}
}

// Close detaches from every topic and closes the event channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	topics := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		topics = append(topics, topic)
	}
	s.topics = map[string]struct{}{}
	close(s.events)
	s.mu.Unlock()

	for _, topic := range topics {
		s.hub.detach(topic, s)
	}
}

func (s *Subscription) deliver(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

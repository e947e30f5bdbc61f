// Package notify forwards reveal events to the recipient's notification inbox.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/unveil/internal/platform/timeouts"
	notificationsdomain "github.com/louisbranch/unveil/internal/services/notifications/domain"
	"github.com/louisbranch/unveil/internal/services/notifications/render"
	"github.com/louisbranch/unveil/internal/services/reveal/identity"
)

// Type names a notification the engine can emit.
type Type string

const (
	TypeConnectionRequested Type = notificationsdomain.MessageTypeConnectionRequested
	TypeConnectionAccepted  Type = notificationsdomain.MessageTypeConnectionAccepted
	TypeMessageReceived     Type = notificationsdomain.MessageTypeMessageReceived
	TypeStageReached        Type = notificationsdomain.MessageTypeStageReached
	TypeConsentRequested    Type = notificationsdomain.MessageTypeConsentRequested
)

// Metadata keys understood by the inbox emitter.
const (
	MetaStage     = "stage"
	MetaMessageID = "message_id"
	MetaPreview   = "preview"
)

// previewRunes caps message previews stored in the inbox.
const previewRunes = 80

const source = "reveal"

// Event is one fire-and-forget notification.
type Event struct {
	Type         Type
	RecipientID  string
	ActorID      string
	ConnectionID string
	Metadata     map[string]string
}

// Emitter accepts notifications without reporting delivery.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Nop discards every event.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(context.Context, Event) {}

// Intents records notification intents; the notifications domain service
// satisfies it.
type Intents interface {
	CreateIntent(ctx context.Context, input notificationsdomain.CreateIntentInput) (notificationsdomain.Notification, error)
}

// InboxEmitter writes events to the notifications inbox in the background.
type InboxEmitter struct {
	intents  Intents
	profiles identity.Store
	timeout  time.Duration
	logf     func(string, ...any)
	wg       sync.WaitGroup
}

// NewInboxEmitter builds an emitter. profiles is optional and supplies the
// actor's shadow name for rendered copy.
func NewInboxEmitter(intents Intents, profiles identity.Store) *InboxEmitter {
	return &InboxEmitter{
		intents:  intents,
		profiles: profiles,
		timeout:  timeouts.NotificationDispatch,
		logf:     log.Printf,
	}
}

// Emit queues the event and returns immediately. Failures are logged.
func (e *InboxEmitter) Emit(ctx context.Context, event Event) {
	if e == nil || e.intents == nil {
		return
	}
	if strings.TrimSpace(event.RecipientID) == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		dispatchCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		if err := e.dispatch(dispatchCtx, event); err != nil && e.logf != nil {
			e.logf("reveal: notify %s connection=%q recipient=%q err=%v", event.Type, event.ConnectionID, event.RecipientID, err)
		}
	}()
}

// Wait blocks until queued events have been written.
func (e *InboxEmitter) Wait() {
	e.wg.Wait()
}

func (e *InboxEmitter) dispatch(ctx context.Context, event Event) error {
	payload := render.Payload{
		ConnectionID: event.ConnectionID,
		ActorName:    e.actorName(ctx, event.ActorID),
		Stage:        event.Metadata[MetaStage],
		Preview:      truncateRunes(event.Metadata[MetaPreview], previewRunes),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = e.intents.CreateIntent(ctx, notificationsdomain.CreateIntentInput{
		RecipientUserID: event.RecipientID,
		MessageType:     string(event.Type),
		PayloadJSON:     string(raw),
		DedupeKey:       DedupeKey(event),
		Source:          source,
	})
	return err
}

func (e *InboxEmitter) actorName(ctx context.Context, actorID string) string {
	if e.profiles == nil || actorID == "" {
		return ""
	}
	profile, err := e.profiles.GetShadowProfile(ctx, actorID)
	if err != nil {
		return ""
	}
	return profile.Name
}

// DedupeKey returns the inbox idempotency key for event. Events that may
// legitimately repeat, such as a consent request after a decline, get none.
func DedupeKey(event Event) string {
	switch event.Type {
	case TypeConnectionRequested:
		return "request:" + event.ConnectionID
	case TypeConnectionAccepted:
		return "accepted:" + event.ConnectionID
	case TypeStageReached:
		return "stage:" + event.ConnectionID + ":" + event.Metadata[MetaStage]
	case TypeMessageReceived:
		if messageID := event.Metadata[MetaMessageID]; messageID != "" {
			return "message:" + messageID
		}
	}
	return ""
}

func truncateRunes(value string, max int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max]) + "…"
}

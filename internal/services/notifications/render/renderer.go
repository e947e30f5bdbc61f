// Package render turns stored inbox notifications into localized copy.
package render

import (
	"encoding/json"
	"strings"

	"github.com/louisbranch/unveil/internal/services/notifications/domain"
	"golang.org/x/text/message"
)

const (
	defaultGenericTitle = "Notification"
	defaultGenericBody  = "You have a new notification."
	defaultActorName    = "Someone"
)

// Channel identifies where one notification artifact is rendered.
type Channel string

const (
	// ChannelInApp renders copy for the inbox view.
	ChannelInApp Channel = "in_app"
	// ChannelPush renders short copy for device push payloads; message
	// previews are omitted.
	ChannelPush Channel = "push"
)

// Input is one channel render request for a stored notification artifact.
type Input struct {
	MessageType string
	PayloadJSON string
	Channel     Channel
}

// Output is localized, channel-aware copy derived from one notification artifact.
type Output struct {
	Title    string
	BodyText string
}

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

// Payload is the JSON document reveal producers attach to notifications.
type Payload struct {
	ConnectionID string `json:"connection_id"`
	ActorName    string `json:"actor_name,omitempty"`
	Stage        string `json:"stage,omitempty"`
	Preview      string `json:"preview,omitempty"`
}

// Render returns localized copy for one notification artifact.
func Render(loc Localizer, input Input) Output {
	messageType := domain.NormalizeMessageType(input.MessageType)
	if !domain.IsKnownMessageType(messageType) {
		return genericOutput(loc)
	}
	payload := Payload{}
	if raw := strings.TrimSpace(input.PayloadJSON); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return genericOutput(loc)
		}
	}
	actor := strings.TrimSpace(payload.ActorName)
	if actor == "" {
		actor = localizeWithFallback(loc, "notification.actor.unknown", defaultActorName)
	}

	keyBase := "notification." + strings.ReplaceAll(messageType, ".", "_")
	titleKey := keyBase + ".title"
	bodyKey := keyBase + ".body"
	args := []any{actor}

	switch messageType {
	case domain.MessageTypeMessageReceived:
		preview := strings.TrimSpace(payload.Preview)
		if input.Channel == ChannelPush || preview == "" {
			bodyKey = keyBase + ".body_short"
		} else {
			args = append(args, preview)
		}
	case domain.MessageTypeStageReached, domain.MessageTypeConsentRequested:
		stage := strings.TrimSpace(payload.Stage)
		if stage == "" {
			return genericOutput(loc)
		}
		args = append(args, localizeWithFallback(loc, "notification.stage."+normalizeToken(stage), stage))
	}

	title := localize(loc, titleKey)
	body := localize(loc, bodyKey, args...)
	if title == titleKey || body == bodyKey || title == "" || body == "" {
		return genericOutput(loc)
	}
	return Output{Title: title, BodyText: body}
}

func genericOutput(loc Localizer) Output {
	return Output{
		Title:    localizeWithFallback(loc, "notification.generic.title", defaultGenericTitle),
		BodyText: localizeWithFallback(loc, "notification.generic.body", defaultGenericBody),
	}
}

func localize(loc Localizer, key message.Reference, args ...any) string {
	if loc == nil {
		if asString, ok := key.(string); ok {
			return asString
		}
		return ""
	}
	return loc.Sprintf(key, args...)
}

func localizeWithFallback(loc Localizer, key string, fallback string) string {
	value := strings.TrimSpace(localize(loc, key))
	if value == "" || value == key {
		return fallback
	}
	return value
}

func normalizeToken(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

package domain

import "strings"

// Message types produced by the reveal engine.
const (
	MessageTypeConnectionRequested = "connection.requested"
	MessageTypeConnectionAccepted  = "connection.accepted"
	MessageTypeMessageReceived     = "message.received"
	MessageTypeStageReached        = "stage.reached"
	MessageTypeConsentRequested    = "consent.requested"
)

// NormalizeMessageType normalizes a producer-provided message type token.
func NormalizeMessageType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsKnownMessageType reports whether a renderer template exists for the type.
func IsKnownMessageType(messageType string) bool {
	switch NormalizeMessageType(messageType) {
	case MessageTypeConnectionRequested,
		MessageTypeConnectionAccepted,
		MessageTypeMessageReceived,
		MessageTypeStageReached,
		MessageTypeConsentRequested:
		return true
	default:
		return false
	}
}

package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.English

	message.SetString(lang, "notification.generic.title", defaultGenericTitle)
	message.SetString(lang, "notification.generic.body", defaultGenericBody)
	message.SetString(lang, "notification.actor.unknown", defaultActorName)
	message.SetString(lang, "notification.stage.whisper", "Whisper")
	message.SetString(lang, "notification.stage.glimpse", "Glimpse")
	message.SetString(lang, "notification.stage.soul", "Soul")
	message.SetString(lang, "notification.stage.unfold", "Unfold")
	message.SetString(lang, "notification.connection_requested.title", "New connection request")
	message.SetString(lang, "notification.connection_requested.body", "%s would like to connect with you.")
	message.SetString(lang, "notification.connection_accepted.title", "Request accepted")
	message.SetString(lang, "notification.connection_accepted.body", "%s accepted your connection request.")
	message.SetString(lang, "notification.message_received.title", "New message")
	message.SetString(lang, "notification.message_received.body", "%s: %s")
	message.SetString(lang, "notification.message_received.body_short", "%s sent you a message.")
	message.SetString(lang, "notification.stage_reached.title", "A new layer unfolds")
	message.SetString(lang, "notification.stage_reached.body", "You and %s reached the %s stage.")
	message.SetString(lang, "notification.consent_requested.title", "Reveal requested")
	message.SetString(lang, "notification.consent_requested.body", "%s would like to move to the %s stage.")
}

package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.MustParse("pt-BR")

	message.SetString(lang, "notification.generic.title", "Notificação")
	message.SetString(lang, "notification.generic.body", "Você tem uma nova notificação.")
	message.SetString(lang, "notification.actor.unknown", "Alguém")
	message.SetString(lang, "notification.stage.whisper", "Sussurro")
	message.SetString(lang, "notification.stage.glimpse", "Vislumbre")
	message.SetString(lang, "notification.stage.soul", "Alma")
	message.SetString(lang, "notification.stage.unfold", "Revelação")
	message.SetString(lang, "notification.connection_requested.title", "Novo pedido de conexão")
	message.SetString(lang, "notification.connection_requested.body", "%s quer se conectar com você.")
	message.SetString(lang, "notification.connection_accepted.title", "Pedido aceito")
	message.SetString(lang, "notification.connection_accepted.body", "%s aceitou seu pedido de conexão.")
	message.SetString(lang, "notification.message_received.title", "Nova mensagem")
	message.SetString(lang, "notification.message_received.body", "%s: %s")
	message.SetString(lang, "notification.message_received.body_short", "%s enviou uma mensagem.")
	message.SetString(lang, "notification.stage_reached.title", "Uma nova camada se revela")
	message.SetString(lang, "notification.stage_reached.body", "Você e %s chegaram ao estágio %s.")
	message.SetString(lang, "notification.consent_requested.title", "Pedido de revelação")
	message.SetString(lang, "notification.consent_requested.body", "%s quer avançar para o estágio %s.")
}

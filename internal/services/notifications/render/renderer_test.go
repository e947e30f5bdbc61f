package render

import (
	"fmt"
	"testing"

	"github.com/louisbranch/unveil/internal/services/notifications/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func TestRenderStageReachedLocalized(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.stage.glimpse":             "Vislumbre",
		"notification.stage_reached.title":       "Uma nova camada se revela",
		"notification.stage_reached.body":        "Você e %s chegaram ao estágio %s.",
		"notification.generic.title":             "Notificação",
		"notification.generic.body":              "Você tem uma nova notificação.",
		"notification.connection_accepted.title": "Pedido aceito",
	}}

	out := Render(loc, Input{
		MessageType: domain.MessageTypeStageReached,
		PayloadJSON: `{"connection_id":"conn-1","actor_name":"Quiet Fox","stage":"glimpse"}`,
		Channel:     ChannelInApp,
	})

	if out.Title != "Uma nova camada se revela" {
		t.Fatalf("title = %q", out.Title)
	}
	if out.BodyText != "Você e Quiet Fox chegaram ao estágio Vislumbre." {
		t.Fatalf("body = %q", out.BodyText)
	}
}

func TestRenderMessageReceivedPushOmitsPreview(t *testing.T) {
	t.Parallel()

	printer := message.NewPrinter(language.AmericanEnglish)
	payload := `{"connection_id":"conn-1","actor_name":"Quiet Fox","preview":"hello there"}`

	inApp := Render(printer, Input{MessageType: domain.MessageTypeMessageReceived, PayloadJSON: payload, Channel: ChannelInApp})
	if inApp.BodyText != "Quiet Fox: hello there" {
		t.Fatalf("in-app body = %q", inApp.BodyText)
	}
	push := Render(printer, Input{MessageType: domain.MessageTypeMessageReceived, PayloadJSON: payload, Channel: ChannelPush})
	if push.BodyText != "Quiet Fox sent you a message." {
		t.Fatalf("push body = %q", push.BodyText)
	}
}

func TestRenderWithRealPrinterUsesRegisteredCatalog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		messageType string
		payload     string
		title       string
		body        string
	}{
		{domain.MessageTypeConnectionRequested, `{"actor_name":"Quiet Fox"}`, "New connection request", "Quiet Fox would like to connect with you."},
		{domain.MessageTypeConnectionAccepted, `{}`, "Request accepted", "Someone accepted your connection request."},
		{domain.MessageTypeConsentRequested, `{"actor_name":"Quiet Fox","stage":"unfold"}`, "Reveal requested", "Quiet Fox would like to move to the Unfold stage."},
	}
	printer := message.NewPrinter(language.AmericanEnglish)
	for _, tt := range tests {
		out := Render(printer, Input{MessageType: tt.messageType, PayloadJSON: tt.payload, Channel: ChannelInApp})
		if out.Title != tt.title || out.BodyText != tt.body {
			t.Fatalf("%s: got %+v", tt.messageType, out)
		}
	}
}

func TestRenderBrazilianPortugueseCatalog(t *testing.T) {
	t.Parallel()

	printer := message.NewPrinter(language.MustParse("pt-BR"))
	out := Render(printer, Input{
		MessageType: domain.MessageTypeConnectionRequested,
		PayloadJSON: `{"actor_name":"Raposa"}`,
		Channel:     ChannelInApp,
	})
	if out.Title != "Novo pedido de conexão" || out.BodyText != "Raposa quer se conectar com você." {
		t.Fatalf("out = %+v", out)
	}
}

func TestRenderMalformedPayloadFallsBack(t *testing.T) {
	t.Parallel()

	loc := fakeLocalizer{values: map[string]string{
		"notification.generic.title": "Notification",
		"notification.generic.body":  "You have a new notification.",
	}}

	out := Render(loc, Input{
		MessageType: domain.MessageTypeStageReached,
		PayloadJSON: `{"stage":`,
		Channel:     ChannelInApp,
	})
	if out.Title != "Notification" || out.BodyText != "You have a new notification." {
		t.Fatalf("out = %+v, want generic", out)
	}
}

func TestRenderStageReachedWithoutStageFallsBack(t *testing.T) {
	t.Parallel()

	out := Render(message.NewPrinter(language.English), Input{
		MessageType: domain.MessageTypeStageReached,
		PayloadJSON: `{"actor_name":"Quiet Fox"}`,
	})
	if out.Title != defaultGenericTitle {
		t.Fatalf("title = %q, want generic", out.Title)
	}
}

func TestRenderWithNilLocalizerReturnsHumanReadableDefaults(t *testing.T) {
	t.Parallel()

	out := Render(nil, Input{
		MessageType: domain.MessageTypeConnectionRequested,
		PayloadJSON: `{"actor_name":"Quiet Fox"}`,
		Channel:     ChannelInApp,
	})
	if out.Title != defaultGenericTitle || out.BodyText != defaultGenericBody {
		t.Fatalf("out = %+v, want defaults", out)
	}
}

func TestRenderUnknownMessageTypeFallsBack(t *testing.T) {
	t.Parallel()

	out := Render(message.NewPrinter(language.English), Input{
		MessageType: "unknown.topic",
		PayloadJSON: `{}`,
	})
	if out.Title != defaultGenericTitle || out.BodyText != defaultGenericBody {
		t.Fatalf("out = %+v, want defaults", out)
	}
}

type fakeLocalizer struct {
	values map[string]string
}

func (f fakeLocalizer) Sprintf(key message.Reference, args ...any) string {
	asString, ok := key.(string)
	if !ok {
		return ""
	}
	template := f.values[asString]
	if template == "" {
		return asString
	}
	if len(args) == 0 {
		return template
	}
	return fmt.Sprintf(template, args...)
}

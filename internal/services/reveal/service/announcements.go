package service

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

func init() {
	en := language.English
	message.SetString(en, "reveal.stage.whisper", "You reached Whisper. Voice notes are now shared.")
	message.SetString(en, "reveal.stage.glimpse", "You reached Glimpse. Photos and the basics are now shared.")
	message.SetString(en, "reveal.stage.soul", "You reached Soul. You can now both agree to unfold.")
	message.SetString(en, "reveal.stage.unfold", "You both chose to unfold. Real names are now shared.")

	pt := language.MustParse("pt-BR")
	message.SetString(pt, "reveal.stage.whisper", "Vocês chegaram ao Sussurro. As notas de voz agora estão visíveis.")
	message.SetString(pt, "reveal.stage.glimpse", "Vocês chegaram ao Vislumbre. Fotos e o básico agora estão visíveis.")
	message.SetString(pt, "reveal.stage.soul", "Vocês chegaram à Alma. Agora podem concordar em se revelar.")
	message.SetString(pt, "reveal.stage.unfold", "Vocês escolheram se revelar. Os nomes reais agora estão visíveis.")
}

// announcement returns the system message text for reaching stage.
func (s *Service) announcement(stage domain.Stage) string {
	return s.printer.Sprintf("reveal.stage." + string(stage))
}

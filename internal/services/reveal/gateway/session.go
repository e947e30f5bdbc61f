package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/louisbranch/unveil/internal/platform/errors/i18n"
	"github.com/louisbranch/unveil/internal/services/reveal/api/wire"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
	"golang.org/x/text/language"
)

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	catalog *i18n.Catalog
}

func newWSPeer(encoder *json.Encoder, locale string) *wsPeer {
	return &wsPeer{encoder: encoder, catalog: i18n.GetCatalog(locale)}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func (p *wsPeer) writeError(requestID string, code string, detail string) error {
	return p.writeFrame(wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{
				Code:      code,
				Message:   p.catalog.Format(code, nil),
				Detail:    detail,
				Retryable: code == codeRateLimited || code == codeConflict,
			},
		}),
	})
}

// wsSession is one authenticated socket. It always listens to the user's
// request list and adds a connection's topics on join.
type wsSession struct {
	userID string
	peer   *wsPeer
	sub    *realtime.Subscription

	mu     sync.Mutex
	joined map[string]struct{}
}

func newWSSession(userID string, peer *wsPeer, sub *realtime.Subscription) *wsSession {
	return &wsSession{
		userID: userID,
		peer:   peer,
		sub:    sub,
		joined: make(map[string]struct{}),
	}
}

func (s *wsSession) join(connectionID string) {
	s.mu.Lock()
	s.joined[connectionID] = struct{}{}
	s.mu.Unlock()
	s.sub.Add(realtime.ConnectionTopic(connectionID))
	s.sub.Add(realtime.TypingTopic(connectionID))
}

func (s *wsSession) leave(connectionID string) {
	s.mu.Lock()
	delete(s.joined, connectionID)
	s.mu.Unlock()
	s.sub.Remove(realtime.ConnectionTopic(connectionID))
	s.sub.Remove(realtime.TypingTopic(connectionID))
}

func (s *wsSession) hasJoined(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.joined[connectionID]
	return ok
}

// pump forwards hub events to the socket until the subscription closes.
func (s *wsSession) pump() {
	for event := range s.sub.Events() {
		frame, ok := s.frameFor(event)
		if !ok {
			continue
		}
		if err := s.peer.writeFrame(frame); err != nil {
			log.Printf("gateway: write %s user=%q err=%v", frame.Type, s.userID, err)
		}
	}
}

func (s *wsSession) frameFor(event realtime.Event) (wsFrame, bool) {
	switch event.Type {
	case realtime.EventConnectionUpdated:
		// Connection changes reach both members on their request topics, where
		// the requester's copy still carries the code. The shared topic repeats
		// a redacted copy, so it is skipped here.
		if event.Topic != realtime.RequestsTopic(s.userID) || event.Connection == nil {
			return wsFrame{}, false
		}
		if event.Connection.Status.IsTerminal() && s.hasJoined(event.Connection.ID) {
			s.leave(event.Connection.ID)
		}
		return wsFrame{Type: frameConnectionUpdated, Payload: mustJSON(connectionEnvelope{Connection: wire.FromConnection(*event.Connection)})}, true
	case realtime.EventMessageCreated:
		if event.Message == nil {
			return wsFrame{}, false
		}
		return wsFrame{Type: frameMessageCreated, Payload: mustJSON(messageEnvelope{Message: wire.FromMessage(*event.Message)})}, true
	case realtime.EventMessageRead:
		connectionID, ok := realtime.ConnectionIDFromTopic(event.Topic)
		if !ok {
			return wsFrame{}, false
		}
		return wsFrame{Type: frameMessageRead, Payload: mustJSON(readPayload{ConnectionID: connectionID, ReaderID: event.ReaderID, At: event.At})}, true
	case realtime.EventTypingUpdated:
		if event.Typing == nil || event.Typing.UserID == s.userID {
			return wsFrame{}, false
		}
		return wsFrame{Type: frameTypingUpdated, Payload: mustJSON(typingEnvelope{Typing: wire.TypingState{
			ConnectionID: event.Typing.ConnectionID,
			UserID:       event.Typing.UserID,
			IsTyping:     event.Typing.IsTyping,
			LastTypedAt:  event.Typing.LastTypedAt,
		}})}, true
	case realtime.EventStageReached:
		if event.Connection == nil {
			return wsFrame{}, false
		}
		return wsFrame{Type: frameStageReached, Payload: mustJSON(stagePayload{
			Connection: wire.FromConnection(*event.Connection),
			Stage:      string(event.Stage),
			At:         event.At,
		})}, true
	default:
		return wsFrame{}, false
	}
}

// localeFromRequest picks the best supported locale from Accept-Language.
func localeFromRequest(r *http.Request) string {
	if r == nil {
		return i18n.BaseLocale
	}
	if locale := r.URL.Query().Get("locale"); locale != "" {
		return locale
	}
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return i18n.BaseLocale
	}
	return tags[0].String()
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("gateway: marshal frame payload: %v", err)
		return nil
	}
	return b
}

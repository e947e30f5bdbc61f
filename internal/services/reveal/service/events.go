package service

import (
	"context"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
)

func (s *Service) publish(topic string, event realtime.Event) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(topic, event)
}

// publishConnection fans a connection change out to the shared connection
// topic and both members' request lists.
func (s *Service) publishConnection(connection domain.Connection) {
	redacted := connection.Redacted()
	full := connection
	at := s.now()
	s.publish(realtime.ConnectionTopic(connection.ID), realtime.Event{Type: realtime.EventConnectionUpdated, Connection: &redacted, At: at})
	s.publish(realtime.RequestsTopic(connection.RecipientID), realtime.Event{Type: realtime.EventConnectionUpdated, Connection: &redacted, At: at})
	s.publish(realtime.RequestsTopic(connection.RequesterID), realtime.Event{Type: realtime.EventConnectionUpdated, Connection: &full, At: at})
}

func (s *Service) publishMessage(msg domain.Message) {
	copied := msg
	s.publish(realtime.ConnectionTopic(msg.ConnectionID), realtime.Event{Type: realtime.EventMessageCreated, Message: &copied, At: msg.CreatedAt})
}

func (s *Service) publishStage(connection domain.Connection) {
	redacted := connection.Redacted()
	s.publish(realtime.ConnectionTopic(connection.ID), realtime.Event{
		Type:       realtime.EventStageReached,
		Connection: &redacted,
		Stage:      connection.RevealStage,
		At:         s.now(),
	})
}

func (s *Service) emit(ctx context.Context, event notify.Event) {
	s.notifier.Emit(ctx, event)
}

// notifyStage tells both members a stage was reached. Each member sees the
// other as the actor.
func (s *Service) notifyStage(ctx context.Context, connection domain.Connection) {
	meta := map[string]string{notify.MetaStage: string(connection.RevealStage)}
	s.emit(ctx, notify.Event{
		Type:         notify.TypeStageReached,
		RecipientID:  connection.RequesterID,
		ActorID:      connection.RecipientID,
		ConnectionID: connection.ID,
		Metadata:     meta,
	})
	s.emit(ctx, notify.Event{
		Type:         notify.TypeStageReached,
		RecipientID:  connection.RecipientID,
		ActorID:      connection.RequesterID,
		ConnectionID: connection.ID,
		Metadata:     meta,
	})
}

package service

import (
	"context"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/presence"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
)

// SetTyping records the member's typing state and broadcasts it to the pair.
func (s *Service) SetTyping(ctx context.Context, connectionID string, userID string, isTyping bool) (presence.State, error) {
	if err := s.ready(); err != nil {
		return presence.State{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, userID)
	if err != nil {
		return presence.State{}, err
	}
	if connection.Status != domain.StatusAccepted {
		return presence.State{}, apperrors.New(apperrors.CodeForbidden, "connection is not accepted")
	}
	state := s.typing.Set(connection.ID, userID, isTyping)
	s.publish(realtime.TypingTopic(connection.ID), realtime.Event{
		Type: realtime.EventTypingUpdated,
		Typing: &realtime.TypingUpdate{
			ConnectionID: state.ConnectionID,
			UserID:       state.UserID,
			IsTyping:     state.IsTyping,
			LastTypedAt:  state.LastTypedAt,
		},
		At: state.LastTypedAt,
	})
	return state, nil
}

// ListTyping returns the counterpart's live typing state, if any.
func (s *Service) ListTyping(ctx context.Context, connectionID string, viewerID string) ([]presence.State, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	connection, err := s.loadConnection(ctx, connectionID, viewerID)
	if err != nil {
		return nil, err
	}
	active := s.typing.Active(connection.ID)
	out := make([]presence.State, 0, len(active))
	for _, state := range active {
		if state.UserID != viewerID {
			out = append(out, state)
		}
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

// CreateStrangerRequest opens a pending stranger connection with an optional note.
func (s *Service) CreateStrangerRequest(ctx context.Context, requesterID string, recipientID string, note string) (domain.Connection, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > MaxRequestMessageRunes {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "request message is too long")
	}
	return s.createRequest(ctx, requesterID, recipientID, func(connection *domain.Connection) error {
		connection.Type = domain.TypeStranger
		connection.RequestMessage = note
		return nil
	})
}

// CreateKnownRequest opens a pending known connection and returns it with
// the verification code the requester shares out of band.
func (s *Service) CreateKnownRequest(ctx context.Context, requesterID string, recipientID string) (domain.Connection, error) {
	return s.createRequest(ctx, requesterID, recipientID, func(connection *domain.Connection) error {
		code, err := domain.GenerateCode(s.random)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeUnknown, "generate verification code", err)
		}
		expiresAt := connection.CreatedAt.Add(s.cfg.CodeTTL)
		connection.Type = domain.TypeKnown
		connection.VerificationCode = code
		connection.CodeExpiresAt = &expiresAt
		return nil
	})
}

func (s *Service) createRequest(ctx context.Context, requesterID string, recipientID string, fill func(*domain.Connection) error) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	requesterID = strings.TrimSpace(requesterID)
	recipientID = strings.TrimSpace(recipientID)
	if requesterID == "" || recipientID == "" {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "requester and recipient are required")
	}
	if requesterID == recipientID {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "cannot connect with yourself")
	}

	blocked, err := s.store.IsBlocked(ctx, requesterID, recipientID)
	if err != nil {
		return domain.Connection{}, storeError("check block", err)
	}
	if blocked {
		return domain.Connection{}, apperrors.New(apperrors.CodeForbidden, "pair is blocked")
	}
	if _, err := s.store.FindActiveBetween(ctx, requesterID, recipientID); err == nil {
		return domain.Connection{}, apperrors.New(apperrors.CodeDuplicateConnection, "pair already has an open connection")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Connection{}, storeError("find active connection", err)
	}

	now := s.now()
	recent, err := s.store.CountRequestsSince(ctx, requesterID, now.Add(-s.cfg.RequestWindow))
	if err != nil {
		return domain.Connection{}, storeError("count requests", err)
	}
	if recent >= s.cfg.RequestQuota {
		return domain.Connection{}, apperrors.WithMetadata(apperrors.CodeRateLimited, "request quota exceeded", map[string]string{
			"Window": s.cfg.RequestWindow.String(),
		})
	}

	connectionID, err := s.newID()
	if err != nil {
		return domain.Connection{}, apperrors.Wrap(apperrors.CodeUnknown, "generate connection id", err)
	}
	connection := domain.Connection{
		ID:          connectionID,
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      domain.StatusPending,
		RevealStage: domain.StageShadow,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := fill(&connection); err != nil {
		return domain.Connection{}, err
	}
	if err := s.store.CreateConnection(ctx, connection); err != nil {
		return domain.Connection{}, storeError("create connection", err)
	}
	created, err := s.store.GetConnection(ctx, connection.ID)
	if err != nil {
		return domain.Connection{}, storeError("reload connection", err)
	}

	s.publishConnection(created)
	s.emit(ctx, notify.Event{
		Type:         notify.TypeConnectionRequested,
		RecipientID:  created.RecipientID,
		ActorID:      created.RequesterID,
		ConnectionID: created.ID,
	})
	return created, nil
}

// RespondToRequest lets the recipient accept or decline a pending request.
func (s *Service) RespondToRequest(ctx context.Context, connectionID string, actingUserID string, decision domain.Decision) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, actingUserID)
	if err != nil {
		return domain.Connection{}, err
	}
	if connection.PartyOf(actingUserID) != domain.PartyRecipient {
		return domain.Connection{}, apperrors.New(apperrors.CodeForbidden, "only the recipient can respond")
	}
	if connection.Status != domain.StatusPending {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "request is no longer pending")
	}

	now := s.now()
	switch decision {
	case domain.DecisionAccept:
		err = s.store.AcceptConnection(ctx, connection.ID, now)
	case domain.DecisionDecline:
		err = s.store.TransitionStatus(ctx, connection.ID, domain.StatusPending, domain.StatusDeclined, now)
	default:
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "decision must be accept or decline")
	}
	if err != nil {
		return domain.Connection{}, storeError("respond to request", err)
	}

	updated, err := s.reload(ctx, connection.ID)
	if err != nil {
		return domain.Connection{}, err
	}
	s.publishConnection(updated)
	if decision == domain.DecisionAccept {
		s.emitAccepted(ctx, updated)
	}
	return viewFor(updated, actingUserID), nil
}

// CancelRequest lets the requester withdraw a pending request.
func (s *Service) CancelRequest(ctx context.Context, connectionID string, actingUserID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, actingUserID)
	if err != nil {
		return domain.Connection{}, err
	}
	if connection.PartyOf(actingUserID) != domain.PartyRequester {
		return domain.Connection{}, apperrors.New(apperrors.CodeForbidden, "only the requester can cancel")
	}
	return s.transition(ctx, connection, actingUserID, domain.StatusPending, domain.StatusCancelled)
}

// Disconnect ends an accepted connection for both members.
func (s *Service) Disconnect(ctx context.Context, connectionID string, actingUserID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, actingUserID)
	if err != nil {
		return domain.Connection{}, err
	}
	updated, err := s.transition(ctx, connection, actingUserID, domain.StatusAccepted, domain.StatusDisconnected)
	if err != nil {
		return domain.Connection{}, err
	}
	s.typing.Forget(connection.ID)
	return updated, nil
}

// Block records a block against targetUserID and closes every open
// connection between the two.
func (s *Service) Block(ctx context.Context, actingUserID string, targetUserID string) ([]domain.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	actingUserID = strings.TrimSpace(actingUserID)
	targetUserID = strings.TrimSpace(targetUserID)
	if actingUserID == "" || targetUserID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "both users are required")
	}
	if actingUserID == targetUserID {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "cannot block yourself")
	}
	ids, err := s.store.BlockPair(ctx, actingUserID, targetUserID, s.now())
	if err != nil {
		return nil, storeError("block pair", err)
	}
	closed := make([]domain.Connection, 0, len(ids))
	for _, connectionID := range ids {
		s.typing.Forget(connectionID)
		updated, err := s.store.GetConnection(ctx, connectionID)
		if err != nil {
			s.log("reveal: reload blocked connection=%q err=%v", connectionID, err)
			continue
		}
		s.publishConnection(updated)
		closed = append(closed, viewFor(updated, actingUserID))
	}
	return closed, nil
}

// GetConnection returns a connection visible to one of its members.
func (s *Service) GetConnection(ctx context.Context, connectionID string, viewerID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, viewerID)
	if err != nil {
		return domain.Connection{}, err
	}
	return viewFor(connection, viewerID), nil
}

// ListActiveConnections lists the user's pending and accepted connections.
func (s *Service) ListActiveConnections(ctx context.Context, userID string) ([]domain.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	connections, err := s.store.ListActiveConnections(ctx, userID)
	if err != nil {
		return nil, storeError("list active connections", err)
	}
	return viewsFor(connections, userID), nil
}

// ListIncomingRequests lists pending requests addressed to the user.
func (s *Service) ListIncomingRequests(ctx context.Context, userID string) ([]domain.Connection, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	connections, err := s.store.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, storeError("list incoming requests", err)
	}
	return viewsFor(connections, userID), nil
}

func (s *Service) transition(ctx context.Context, connection domain.Connection, actingUserID string, from domain.Status, to domain.Status) (domain.Connection, error) {
	if connection.Status != from {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "connection is "+string(connection.Status))
	}
	if !domain.CanTransition(from, to) {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "transition not allowed")
	}
	if err := s.store.TransitionStatus(ctx, connection.ID, from, to, s.now()); err != nil {
		return domain.Connection{}, storeError("transition connection", err)
	}
	updated, err := s.reload(ctx, connection.ID)
	if err != nil {
		return domain.Connection{}, err
	}
	s.publishConnection(updated)
	return viewFor(updated, actingUserID), nil
}

func (s *Service) reload(ctx context.Context, connectionID string) (domain.Connection, error) {
	connection, err := s.store.GetConnection(ctx, connectionID)
	if err != nil {
		return domain.Connection{}, storeError("reload connection", err)
	}
	return connection, nil
}

func (s *Service) emitAccepted(ctx context.Context, connection domain.Connection) {
	s.emit(ctx, notify.Event{
		Type:         notify.TypeConnectionAccepted,
		RecipientID:  connection.RequesterID,
		ActorID:      connection.RecipientID,
		ConnectionID: connection.ID,
	})
}

package service

import (
	"context"
	"errors"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// maxStageRetries bounds re-reads after losing a stage compare-and-swap.
const maxStageRetries = 8

// OnMessageAppended counts one user message and advances the reveal stage
// one step at a time while thresholds are met. Unfold is never reached here.
func (s *Service) OnMessageAppended(ctx context.Context, connectionID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.store.IncrementMessageCount(ctx, connectionID, s.now())
	if err != nil {
		return domain.Connection{}, storeError("increment message count", err)
	}

	for retries := 0; retries < maxStageRetries; {
		next, ok := domain.NextOrganicStage(connection.RevealStage, connection.MessageCount)
		if !ok {
			return connection, nil
		}
		advanced, err := s.advanceStage(ctx, connection, next)
		if err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				return connection, storeError("advance stage", err)
			}
			retries++
			connection, err = s.reload(ctx, connectionID)
			if err != nil {
				return domain.Connection{}, err
			}
			if connection.Status != domain.StatusAccepted {
				return connection, nil
			}
			continue
		}
		connection = advanced
	}
	return connection, nil
}

// forceStage moves the connection straight to target after mutual consent.
// It is a no-op once the connection already sits at or past target.
func (s *Service) forceStage(ctx context.Context, connectionID string, target domain.Stage) (domain.Connection, error) {
	connection, err := s.reload(ctx, connectionID)
	if err != nil {
		return domain.Connection{}, err
	}
	for retries := 0; retries < maxStageRetries; retries++ {
		if connection.RevealStage.AtLeast(target) || connection.Status != domain.StatusAccepted {
			return connection, nil
		}
		advanced, err := s.advanceStage(ctx, connection, target)
		if err == nil {
			return advanced, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return connection, storeError("advance stage", err)
		}
		connection, err = s.reload(ctx, connectionID)
		if err != nil {
			return domain.Connection{}, err
		}
	}
	return connection, nil
}

// advanceStage performs one stage CAS and, on success, announces it.
func (s *Service) advanceStage(ctx context.Context, connection domain.Connection, to domain.Stage) (domain.Connection, error) {
	ctx, span := s.tracer.Start(ctx, "reveal.advance_stage")
	defer span.End()
	span.SetAttributes(
		attribute.String("reveal.connection_id", connection.ID),
		attribute.String("reveal.from", string(connection.RevealStage)),
		attribute.String("reveal.to", string(to)),
	)

	now := s.now()
	if err := s.store.AdvanceStage(ctx, connection.ID, connection.RevealStage, to, now); err != nil {
		span.RecordError(err)
		return domain.Connection{}, err
	}
	connection.RevealStage = to
	connection.Consent = domain.ClearReachedConsent(connection.Consent, to, now)
	connection.UpdatedAt = now

	msgID, err := s.newID()
	if err != nil {
		s.log("reveal: announcement id connection=%q err=%v", connection.ID, err)
	} else {
		announcement := domain.Message{
			ID:           msgID,
			ConnectionID: connection.ID,
			Content:      s.announcement(to),
			Type:         domain.MessageTypeSystem,
			CreatedAt:    now,
		}
		if err := s.store.AppendMessage(ctx, announcement); err != nil {
			s.log("reveal: announce stage connection=%q stage=%s err=%v", connection.ID, to, err)
		} else {
			s.publishMessage(announcement)
		}
	}

	s.publishStage(connection)
	s.notifyStage(ctx, connection)
	return connection, nil
}

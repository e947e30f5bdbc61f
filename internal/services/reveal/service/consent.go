package service

import (
	"context"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
)

// RequestStageConsent records one member's accept or decline for an early
// stage unlock or for unfold. The counterpart's matching accept makes the
// request mutual and moves the connection to that stage immediately.
func (s *Service) RequestStageConsent(ctx context.Context, connectionID string, actingUserID string, stage domain.Stage, decision domain.Decision) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, actingUserID)
	if err != nil {
		return domain.Connection{}, err
	}
	if connection.Status != domain.StatusAccepted {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "connection is not accepted")
	}
	if decision != domain.DecisionAccept && decision != domain.DecisionDecline {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "decision must be accept or decline")
	}
	if decision == domain.DecisionAccept {
		if err := domain.ValidateConsentTarget(stage, connection.RevealStage); err != nil {
			return domain.Connection{}, err
		}
	} else if !isConsentStage(stage) {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "stage does not accept consent")
	}

	party := connection.PartyOf(actingUserID)
	current := connection.ConsentFor(stage)
	next, err := domain.DecideConsent(current, party, decision)
	if err != nil {
		return domain.Connection{}, err
	}
	opening := next.Pending()
	if err := s.store.SetConsent(ctx, connection.ID, stage, current, next, s.now(), opening); err != nil {
		return domain.Connection{}, storeError("set consent", err)
	}

	if next == domain.ConsentMutual {
		if _, err := s.forceStage(ctx, connection.ID, stage); err != nil {
			return domain.Connection{}, err
		}
	}

	updated, err := s.reload(ctx, connection.ID)
	if err != nil {
		return domain.Connection{}, err
	}
	s.publishConnection(updated)
	if opening {
		s.emit(ctx, notify.Event{
			Type:         notify.TypeConsentRequested,
			RecipientID:  connection.Counterpart(actingUserID),
			ActorID:      actingUserID,
			ConnectionID: connection.ID,
			Metadata:     map[string]string{notify.MetaStage: string(stage)},
		})
	}
	return viewFor(updated, actingUserID), nil
}

func isConsentStage(stage domain.Stage) bool {
	for _, candidate := range domain.ConsentStages() {
		if candidate == stage {
			return true
		}
	}
	return false
}

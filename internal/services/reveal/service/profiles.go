package service

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/identity"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

// GetVisibleProfile returns what viewerID may see of the other member.
// Until a connection is accepted only the shadow persona is shown, so a
// known request does not leak identity before its code is redeemed.
func (s *Service) GetVisibleProfile(ctx context.Context, connectionID string, viewerID string) (identity.VisibleProfile, error) {
	if err := s.ready(); err != nil {
		return identity.VisibleProfile{}, err
	}
	if s.profiles == nil {
		return identity.VisibleProfile{}, apperrors.New(apperrors.CodeUnknown, "identity store is not configured")
	}
	connection, err := s.loadConnection(ctx, connectionID, viewerID)
	if err != nil {
		return identity.VisibleProfile{}, err
	}
	subjectID := connection.Counterpart(viewerID)

	shadow, err := s.profiles.GetShadowProfile(ctx, subjectID)
	if err != nil {
		return identity.VisibleProfile{}, storeError("load shadow profile", err)
	}
	private, err := s.profiles.GetRealProfile(ctx, subjectID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return identity.VisibleProfile{}, storeError("load real profile", err)
	}

	stage, connType := connection.RevealStage, connection.Type
	if connection.Status != domain.StatusAccepted {
		stage, connType = domain.StageShadow, domain.TypeStranger
	}
	return identity.Filter(shadow, private, stage, connType), nil
}

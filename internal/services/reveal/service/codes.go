package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

// RedeemCode accepts the pending known request addressed to redeemerID whose
// code matches. A wrong code counts one attempt against every live code the
// redeemer holds; a matching code that is expired or exhausted reports
// CODE_EXPIRED so a burnt code is never distinguishable from an expired one.
func (s *Service) RedeemCode(ctx context.Context, code string, redeemerID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	redeemerID = strings.TrimSpace(redeemerID)
	if redeemerID == "" {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidArgument, "user id is required")
	}
	submitted := domain.NormalizeCode(code)

	candidates, err := s.store.ListPendingKnownForRecipient(ctx, redeemerID)
	if err != nil {
		return domain.Connection{}, storeError("list pending known requests", err)
	}

	now := s.now()
	var match *domain.Connection
	// Compare against every candidate so timing does not reveal which matched.
	for i := range candidates {
		if domain.CodesEqual(candidates[i].VerificationCode, submitted) && match == nil {
			match = &candidates[i]
		}
	}

	if match != nil {
		if !domain.CodeUsable(*match, now) {
			return domain.Connection{}, codeExpired()
		}
		if err := s.store.RedeemCode(ctx, match.ID, now); err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				return domain.Connection{}, storeError("redeem code", err)
			}
			current, loadErr := s.store.GetConnection(ctx, match.ID)
			if loadErr == nil && current.Status != domain.StatusPending {
				return domain.Connection{}, apperrors.Wrap(apperrors.CodeConflict, "request already handled", err)
			}
			return domain.Connection{}, codeExpired()
		}
		updated, err := s.reload(ctx, match.ID)
		if err != nil {
			return domain.Connection{}, err
		}
		s.publishConnection(updated)
		s.emitAccepted(ctx, updated)
		return viewFor(updated, redeemerID), nil
	}

	live := 0
	for _, candidate := range candidates {
		if !domain.CodeUsable(candidate, now) {
			continue
		}
		live++
		attempts, err := s.store.RecordFailedCodeAttempt(ctx, candidate.ID, now)
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return domain.Connection{}, storeError("record failed attempt", err)
		}
		if attempts >= domain.MaxCodeAttempts {
			s.log("reveal: code exhausted connection=%q", candidate.ID)
		}
	}
	if live == 0 && len(candidates) > 0 {
		return domain.Connection{}, codeExpired()
	}
	return domain.Connection{}, apperrors.New(apperrors.CodeInvalidCode, "code did not match")
}

// RegenerateCode issues a fresh code for the requester's pending known
// request once the previous code expired or ran out of attempts.
func (s *Service) RegenerateCode(ctx context.Context, connectionID string, requesterID string) (domain.Connection, error) {
	if err := s.ready(); err != nil {
		return domain.Connection{}, err
	}
	connection, err := s.loadConnection(ctx, connectionID, requesterID)
	if err != nil {
		return domain.Connection{}, err
	}
	if connection.PartyOf(requesterID) != domain.PartyRequester {
		return domain.Connection{}, apperrors.New(apperrors.CodeForbidden, "only the requester can regenerate the code")
	}
	if connection.Type != domain.TypeKnown || connection.Status != domain.StatusPending {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "connection has no code to regenerate")
	}
	now := s.now()
	if domain.CodeUsable(connection, now) {
		return domain.Connection{}, apperrors.New(apperrors.CodeInvalidState, "current code is still valid")
	}

	code, err := domain.GenerateCode(s.random)
	if err != nil {
		return domain.Connection{}, apperrors.Wrap(apperrors.CodeUnknown, "generate verification code", err)
	}
	if err := s.store.ReplaceCode(ctx, connection.ID, code, now.Add(s.cfg.CodeTTL), now); err != nil {
		return domain.Connection{}, storeError("replace code", err)
	}
	updated, err := s.reload(ctx, connection.ID)
	if err != nil {
		return domain.Connection{}, err
	}
	s.publishConnection(updated)
	return updated, nil
}

func codeExpired() error {
	return apperrors.New(apperrors.CodeCodeExpired, "code is expired or exhausted")
}

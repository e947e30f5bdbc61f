package domain

import (
	"time"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
)

// ConsentState is the handshake state for one stage.
type ConsentState string

const (
	ConsentNone                 ConsentState = "none"
	ConsentRequestedByRequester ConsentState = "requested_by_requester"
	ConsentRequestedByRecipient ConsentState = "requested_by_recipient"
	ConsentMutual               ConsentState = "mutual"
)

// ConsentRequestedBy returns the pending state owned by party.
func ConsentRequestedBy(party Party) ConsentState {
	switch party {
	case PartyRequester:
		return ConsentRequestedByRequester
	case PartyRecipient:
		return ConsentRequestedByRecipient
	default:
		return ConsentNone
	}
}

// Requester returns the party that opened a pending request.
func (s ConsentState) Requester() Party {
	switch s {
	case ConsentRequestedByRequester:
		return PartyRequester
	case ConsentRequestedByRecipient:
		return PartyRecipient
	default:
		return PartyNone
	}
}

// Pending reports whether one party is waiting on the other.
func (s ConsentState) Pending() bool {
	return s.Requester() != PartyNone
}

// ConsentStages are the stages that carry a handshake entry.
func ConsentStages() []Stage {
	return []Stage{StageWhisper, StageGlimpse, StageSoul, StageUnfold}
}

// DecideConsent returns the state that follows party's decision on current.
//
// The first accept opens a request owned by the submitting party. The
// counterpart's accept makes it mutual. A decline from either side clears a
// pending request. Mutual is final.
func DecideConsent(current ConsentState, party Party, decision Decision) (ConsentState, error) {
	if party == PartyNone {
		return "", apperrors.New(apperrors.CodeForbidden, "user is not a member of this connection")
	}
	if current == "" {
		current = ConsentNone
	}

	switch decision {
	case DecisionAccept:
		switch current {
		case ConsentNone:
			return ConsentRequestedBy(party), nil
		case ConsentMutual:
			return "", apperrors.New(apperrors.CodeInvalidState, "consent is already mutual")
		}
		if current.Requester() == party {
			return "", apperrors.New(apperrors.CodeAlreadyRequested, "consent already requested")
		}
		return ConsentMutual, nil
	case DecisionDecline:
		if current.Pending() {
			return ConsentNone, nil
		}
		return "", apperrors.New(apperrors.CodeInvalidState, "no pending consent request to decline")
	default:
		return "", apperrors.New(apperrors.CodeInvalidArgument, "decision must be accept or decline")
	}
}

// ValidateConsentTarget checks that an accept for target makes sense at the
// connection's current stage. Early unlocks must be strictly ahead of the
// current stage; unfold is only offered once soul has been reached.
func ValidateConsentTarget(target Stage, current Stage) error {
	switch target {
	case StageWhisper, StageGlimpse, StageSoul:
		if target.Index() <= current.Index() {
			return apperrors.New(apperrors.CodeInvalidState, "stage already unlocked")
		}
		return nil
	case StageUnfold:
		if current != StageSoul {
			return apperrors.New(apperrors.CodeInvalidState, "unfold is available only at soul")
		}
		return nil
	default:
		return apperrors.New(apperrors.CodeInvalidArgument, "stage does not accept consent")
	}
}

// ClearReachedConsent returns consent with every pending entry at or below
// reached reset to none. Mutual entries and stages above reached are kept.
func ClearReachedConsent(consent map[Stage]Consent, reached Stage, now time.Time) map[Stage]Consent {
	out := make(map[Stage]Consent, len(consent))
	for stage, entry := range consent {
		if entry.State.Pending() && stage.Index() <= reached.Index() {
			entry = Consent{State: ConsentNone, UpdatedAt: now}
		}
		out[stage] = entry
	}
	return out
}

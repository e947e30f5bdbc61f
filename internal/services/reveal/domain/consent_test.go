package domain

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
)

func TestDecideConsent(t *testing.T) {
	tests := []struct {
		name     string
		current  ConsentState
		party    Party
		decision Decision
		want     ConsentState
		code     apperrors.Code
	}{
		{name: "first accept opens request", current: ConsentNone, party: PartyRequester, decision: DecisionAccept, want: ConsentRequestedByRequester},
		{name: "empty reads as none", current: "", party: PartyRecipient, decision: DecisionAccept, want: ConsentRequestedByRecipient},
		{name: "counterpart accept is mutual", current: ConsentRequestedByRequester, party: PartyRecipient, decision: DecisionAccept, want: ConsentMutual},
		{name: "same party repeat", current: ConsentRequestedByRecipient, party: PartyRecipient, decision: DecisionAccept, code: apperrors.CodeAlreadyRequested},
		{name: "counterpart decline resets", current: ConsentRequestedByRequester, party: PartyRecipient, decision: DecisionDecline, want: ConsentNone},
		{name: "requester withdraw resets", current: ConsentRequestedByRequester, party: PartyRequester, decision: DecisionDecline, want: ConsentNone},
		{name: "decline without request", current: ConsentNone, party: PartyRequester, decision: DecisionDecline, code: apperrors.CodeInvalidState},
		{name: "mutual is final", current: ConsentMutual, party: PartyRequester, decision: DecisionDecline, code: apperrors.CodeInvalidState},
		{name: "outsider", current: ConsentNone, party: PartyNone, decision: DecisionAccept, code: apperrors.CodeForbidden},
		{name: "bad decision", current: ConsentNone, party: PartyRequester, decision: "maybe", code: apperrors.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecideConsent(tt.current, tt.party, tt.decision)
			if tt.code != "" {
				if !apperrors.HasCode(err, tt.code) {
					t.Fatalf("expected %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if got != tt.want {
				t.Fatalf("state = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValidateConsentTarget(t *testing.T) {
	if err := ValidateConsentTarget(StageSoul, StageShadow); err != nil {
		t.Fatalf("early soul from shadow: %v", err)
	}
	if err := ValidateConsentTarget(StageWhisper, StageWhisper); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected invalid state for reached stage, got %v", err)
	}
	if err := ValidateConsentTarget(StageUnfold, StageGlimpse); !apperrors.HasCode(err, apperrors.CodeInvalidState) {
		t.Fatalf("expected unfold to require soul, got %v", err)
	}
	if err := ValidateConsentTarget(StageUnfold, StageSoul); err != nil {
		t.Fatalf("unfold at soul: %v", err)
	}
	if err := ValidateConsentTarget(StageShadow, StageShadow); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument for shadow, got %v", err)
	}
}

func TestClearReachedConsent(t *testing.T) {
	at := time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC)
	consent := map[Stage]Consent{
		StageWhisper: {State: ConsentRequestedByRequester},
		StageGlimpse: {State: ConsentMutual},
		StageSoul:    {State: ConsentRequestedByRecipient},
	}

	got := ClearReachedConsent(consent, StageGlimpse, at)
	if got[StageWhisper].State != ConsentNone || !got[StageWhisper].UpdatedAt.Equal(at) {
		t.Fatalf("whisper = %+v, want none", got[StageWhisper])
	}
	if got[StageGlimpse].State != ConsentMutual {
		t.Fatalf("glimpse = %s, want mutual", got[StageGlimpse].State)
	}
	if got[StageSoul].State != ConsentRequestedByRecipient {
		t.Fatalf("soul = %s, want pending", got[StageSoul].State)
	}
	if consent[StageWhisper].State != ConsentRequestedByRequester {
		t.Fatal("input map was modified")
	}
}

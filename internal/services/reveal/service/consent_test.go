package service

import (
	"context"
	"testing"

	apperrors "github.com/louisbranch/unveil/internal/platform/errors"
	"github.com/louisbranch/unveil/internal/services/reveal/domain"
	"github.com/louisbranch/unveil/internal/services/reveal/notify"
	"github.com/louisbranch/unveil/internal/services/reveal/realtime"
)

func TestScenarioDeclinedSoulConsentKeepsOrganicPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	requested, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageSoul, domain.DecisionAccept)
	if err != nil {
		t.Fatalf("request soul: %v", err)
	}
	if got := requested.ConsentFor(domain.StageSoul); got != domain.ConsentRequestedByRequester {
		t.Fatalf("soul consent = %s", got)
	}
	if requested.LastConsentRequest == nil {
		t.Fatal("expected last consent request timestamp")
	}
	if got := h.notifier.of(notify.TypeConsentRequested); len(got) != 1 || got[0].RecipientID != "bob" {
		t.Fatalf("consent notifications = %+v", got)
	}

	declined, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageSoul, domain.DecisionDecline)
	if err != nil {
		t.Fatalf("decline soul: %v", err)
	}
	if got := declined.ConsentFor(domain.StageSoul); got != domain.ConsentNone {
		t.Fatalf("soul consent after decline = %s", got)
	}
	if declined.RevealStage != domain.StageShadow {
		t.Fatalf("stage after decline = %s", declined.RevealStage)
	}

	h.exchange(t, connection, 100)
	if got := h.reload(t, connection.ID).RevealStage; got != domain.StageSoul {
		t.Fatalf("stage after 100 messages = %s, want soul", got)
	}
}

func TestScenarioMutualUnfoldIsImmediate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	_, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageUnfold, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeInvalidState)

	for _, user := range []string{"alice", "bob"} {
		if _, err := h.svc.RequestStageConsent(ctx, connection.ID, user, domain.StageSoul, domain.DecisionAccept); err != nil {
			t.Fatalf("%s soul consent: %v", user, err)
		}
	}
	if got := h.reload(t, connection.ID).RevealStage; got != domain.StageSoul {
		t.Fatalf("stage after mutual soul = %s", got)
	}

	if _, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageUnfold, domain.DecisionAccept); err != nil {
		t.Fatalf("bob unfold: %v", err)
	}
	if got := h.reload(t, connection.ID).RevealStage; got != domain.StageSoul {
		t.Fatalf("one-sided unfold advanced to %s", got)
	}
	unfolded, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageUnfold, domain.DecisionAccept)
	if err != nil {
		t.Fatalf("alice unfold: %v", err)
	}
	if unfolded.RevealStage != domain.StageUnfold || unfolded.MessageCount != 0 {
		t.Fatalf("unfolded = stage %s count %d", unfolded.RevealStage, unfolded.MessageCount)
	}
	if got := unfolded.ConsentFor(domain.StageUnfold); got != domain.ConsentMutual {
		t.Fatalf("unfold consent = %s", got)
	}
	if got := h.publisher.count(realtime.EventStageReached, ""); got != 2 {
		t.Fatalf("stage.reached events = %d, want 2", got)
	}

	_, err = h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageUnfold, domain.DecisionDecline)
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestConsentHandshakeErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	_, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageGlimpse, domain.DecisionDecline)
	requireCode(t, err, apperrors.CodeInvalidState)

	if _, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageGlimpse, domain.DecisionAccept); err != nil {
		t.Fatalf("request glimpse: %v", err)
	}
	_, err = h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageGlimpse, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeAlreadyRequested)

	withdrawn, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageGlimpse, domain.DecisionDecline)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := withdrawn.ConsentFor(domain.StageGlimpse); got != domain.ConsentNone {
		t.Fatalf("glimpse after withdraw = %s", got)
	}

	_, err = h.svc.RequestStageConsent(ctx, connection.ID, "mallory", domain.StageGlimpse, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeForbidden)
	_, err = h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageShadow, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeInvalidArgument)
	_, err = h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageShadow, domain.DecisionDecline)
	requireCode(t, err, apperrors.CodeInvalidArgument)

	pending, err := h.svc.CreateStrangerRequest(ctx, "carol", "dave", "")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	_, err = h.svc.RequestStageConsent(ctx, pending.ID, "carol", domain.StageWhisper, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestStageNeverRegressesAfterEarlyUnlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	for _, user := range []string{"bob", "alice"} {
		if _, err := h.svc.RequestStageConsent(ctx, connection.ID, user, domain.StageGlimpse, domain.DecisionAccept); err != nil {
			t.Fatalf("%s glimpse consent: %v", user, err)
		}
	}
	if got := h.reload(t, connection.ID).RevealStage; got != domain.StageGlimpse {
		t.Fatalf("stage = %s, want glimpse", got)
	}

	previous := domain.StageGlimpse
	for i := 0; i < 30; i++ {
		h.exchange(t, connection, 1)
		current := h.reload(t, connection.ID).RevealStage
		if current.Index() < previous.Index() {
			t.Fatalf("stage regressed from %s to %s", previous, current)
		}
		previous = current
	}
	if previous != domain.StageGlimpse {
		t.Fatalf("stage = %s, want glimpse", previous)
	}

	_, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageWhisper, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestReachingStageClearsItsPendingConsent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	if _, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageWhisper, domain.DecisionAccept); err != nil {
		t.Fatalf("request whisper: %v", err)
	}
	if _, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageSoul, domain.DecisionAccept); err != nil {
		t.Fatalf("request soul: %v", err)
	}
	h.exchange(t, connection, 20)

	stored := h.reload(t, connection.ID)
	if stored.RevealStage != domain.StageWhisper {
		t.Fatalf("stage = %s, want whisper", stored.RevealStage)
	}
	if got := stored.ConsentFor(domain.StageWhisper); got != domain.ConsentNone {
		t.Fatalf("whisper consent = %s, want none", got)
	}
	if got := stored.ConsentFor(domain.StageSoul); got != domain.ConsentRequestedByRecipient {
		t.Fatalf("soul consent = %s, want it kept pending", got)
	}
	event, ok := h.publisher.last(realtime.EventStageReached, realtime.ConnectionTopic(connection.ID))
	if !ok || event.Connection == nil || event.Connection.ConsentFor(domain.StageWhisper) != domain.ConsentNone {
		t.Fatalf("stage event = %+v", event)
	}

	_, err := h.svc.RequestStageConsent(ctx, connection.ID, "bob", domain.StageWhisper, domain.DecisionAccept)
	requireCode(t, err, apperrors.CodeInvalidState)
}

func TestMutualUnlockClearsPendingConsentBelowIt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	connection := h.accepted(t, "alice", "bob")

	if _, err := h.svc.RequestStageConsent(ctx, connection.ID, "alice", domain.StageWhisper, domain.DecisionAccept); err != nil {
		t.Fatalf("request whisper: %v", err)
	}
	for _, user := range []string{"bob", "alice"} {
		if _, err := h.svc.RequestStageConsent(ctx, connection.ID, user, domain.StageGlimpse, domain.DecisionAccept); err != nil {
			t.Fatalf("%s glimpse consent: %v", user, err)
		}
	}

	stored := h.reload(t, connection.ID)
	if stored.RevealStage != domain.StageGlimpse {
		t.Fatalf("stage = %s, want glimpse", stored.RevealStage)
	}
	if got := stored.ConsentFor(domain.StageWhisper); got != domain.ConsentNone {
		t.Fatalf("whisper consent = %s, want none", got)
	}
	if got := stored.ConsentFor(domain.StageGlimpse); got != domain.ConsentMutual {
		t.Fatalf("glimpse consent = %s, want mutual", got)
	}
}

package domain

import "strings"

// Stage is a rung of the reveal ladder.
type Stage string

const (
	StageShadow  Stage = "shadow"
	StageWhisper Stage = "whisper"
	StageGlimpse Stage = "glimpse"
	StageSoul    Stage = "soul"
	StageUnfold  Stage = "unfold"
)

// ladder is ordered; index is the stage rank.
var ladder = []Stage{StageShadow, StageWhisper, StageGlimpse, StageSoul, StageUnfold}

// thresholds are cumulative user message counts. Unfold has none.
var thresholds = map[Stage]int{
	StageShadow:  0,
	StageWhisper: 20,
	StageGlimpse: 50,
	StageSoul:    100,
}

// ParseStage normalizes a stage token.
func ParseStage(raw string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(raw)))
	if stage.Index() < 0 {
		return "", false
	}
	return stage, true
}

// Index returns the ladder rank, or -1 for unknown stages.
func (s Stage) Index() int {
	for i, stage := range ladder {
		if stage == s {
			return i
		}
	}
	return -1
}

// AtLeast reports whether s is at or past min.
func (s Stage) AtLeast(min Stage) bool {
	return s.Index() >= min.Index() && min.Index() >= 0
}

// Next returns the following stage. ok is false at the top of the ladder.
func (s Stage) Next() (Stage, bool) {
	idx := s.Index()
	if idx < 0 || idx+1 >= len(ladder) {
		return "", false
	}
	return ladder[idx+1], true
}

// Threshold returns the message count that unlocks s. ok is false for
// stages that can only be reached by consent.
func (s Stage) Threshold() (int, bool) {
	count, ok := thresholds[s]
	return count, ok
}

// ConsentGated reports whether the stage is unreachable by message volume.
func (s Stage) ConsentGated() bool {
	_, ok := thresholds[s]
	return !ok && s.Index() >= 0
}

// NextOrganicStage returns the single stage after current that messageCount
// unlocks, if any. It never skips a rung and never returns a consent gated
// stage, so callers loop to catch up after a burst.
func NextOrganicStage(current Stage, messageCount int) (Stage, bool) {
	next, ok := current.Next()
	if !ok {
		return "", false
	}
	threshold, ok := next.Threshold()
	if !ok || messageCount < threshold {
		return "", false
	}
	return next, true
}

// Stages returns the ladder in order.
func Stages() []Stage {
	out := make([]Stage, len(ladder))
	copy(out, ladder)
	return out
}

package domain

// Field names one piece of profile data.
type Field string

const (
	FieldShadowName Field = "shadow_name"
	FieldAvatar     Field = "avatar"
	FieldInterests  Field = "interests"
	FieldBio        Field = "bio"

	FieldVoiceNote Field = "voice_note"
	FieldPhoto     Field = "photo"
	FieldAge       Field = "age"
	FieldHeight    Field = "height"
	FieldLocation  Field = "location"
	FieldIntent    Field = "intent"
	FieldHabits    Field = "habits"
	FieldRealName  Field = "real_name"
)

// fieldMinimum is the lowest stage at which a field is shown to a stranger.
var fieldMinimum = map[Field]Stage{
	FieldShadowName: StageShadow,
	FieldAvatar:     StageShadow,
	FieldInterests:  StageShadow,
	FieldBio:        StageShadow,
	FieldVoiceNote:  StageWhisper,
	FieldPhoto:      StageGlimpse,
	FieldAge:        StageGlimpse,
	FieldHeight:     StageGlimpse,
	FieldLocation:   StageGlimpse,
	FieldIntent:     StageGlimpse,
	FieldHabits:     StageGlimpse,
	FieldRealName:   StageUnfold,
}

// MinimumStage returns the stage that unlocks field for stranger connections.
func MinimumStage(field Field) (Stage, bool) {
	stage, ok := fieldMinimum[field]
	return stage, ok
}

// FieldVisible reports whether field may be shown at stage. Known
// connections skip the ladder: trust was established by the code exchange.
// Unknown fields are never visible.
func FieldVisible(field Field, stage Stage, connType ConnectionType) bool {
	min, ok := fieldMinimum[field]
	if !ok {
		return false
	}
	if connType == TypeKnown {
		return true
	}
	return stage.AtLeast(min)
}

// Package identity is the read-only boundary to the profile service and the
// stage filter applied before any profile data leaves the engine.
package identity

import (
	"context"

	"github.com/louisbranch/unveil/internal/services/reveal/domain"
)

// ShadowProfile is the anonymous persona every connection can see.
type ShadowProfile struct {
	UserID    string
	Name      string
	AvatarID  string
	Interests []string
	Bio       string
}

// RealProfile holds the identity fields unlocked by the reveal ladder.
type RealProfile struct {
	UserID       string
	Name         string
	PhotoURL     string
	Age          int
	HeightCM     int
	Location     string
	VoiceNoteURL string
	Intent       string
	Habits       []string
}

// Store reads profiles owned by another service.
type Store interface {
	GetShadowProfile(ctx context.Context, userID string) (ShadowProfile, error)
	GetRealProfile(ctx context.Context, userID string) (RealProfile, error)
}

// VisibleProfile is what one member may see of the other at a given stage.
// Hidden fields are left at their zero value and listed in Locked with the
// stage that unlocks them.
type VisibleProfile struct {
	UserID    string                        `json:"user_id"`
	Stage     domain.Stage                  `json:"stage"`
	Name      string                        `json:"name,omitempty"`
	AvatarID  string                        `json:"avatar_id,omitempty"`
	Interests []string                      `json:"interests,omitempty"`
	Bio       string                        `json:"bio,omitempty"`
	VoiceNote string                        `json:"voice_note_url,omitempty"`
	PhotoURL  string                        `json:"photo_url,omitempty"`
	Age       int                           `json:"age,omitempty"`
	HeightCM  int                           `json:"height_cm,omitempty"`
	Location  string                        `json:"location,omitempty"`
	Intent    string                        `json:"intent,omitempty"`
	Habits    []string                      `json:"habits,omitempty"`
	RealName  string                        `json:"real_name,omitempty"`
	Locked    map[domain.Field]domain.Stage `json:"locked,omitempty"`
}

// Filter applies stage-gated visibility. It is pure and safe to call from any
// reader.
func Filter(shadow ShadowProfile, private RealProfile, stage domain.Stage, connType domain.ConnectionType) VisibleProfile {
	out := VisibleProfile{UserID: shadow.UserID, Stage: stage}
	if out.UserID == "" {
		out.UserID = private.UserID
	}

	show := func(field domain.Field) bool {
		if domain.FieldVisible(field, stage, connType) {
			return true
		}
		if min, ok := domain.MinimumStage(field); ok {
			if out.Locked == nil {
				out.Locked = make(map[domain.Field]domain.Stage)
			}
			out.Locked[field] = min
		}
		return false
	}

	if show(domain.FieldShadowName) {
		out.Name = shadow.Name
	}
	if show(domain.FieldAvatar) {
		out.AvatarID = shadow.AvatarID
	}
	if show(domain.FieldInterests) {
		out.Interests = append([]string(nil), shadow.Interests...)
	}
	if show(domain.FieldBio) {
		out.Bio = shadow.Bio
	}
	if show(domain.FieldVoiceNote) {
		out.VoiceNote = private.VoiceNoteURL
	}
	if show(domain.FieldPhoto) {
		out.PhotoURL = private.PhotoURL
	}
	if show(domain.FieldAge) {
		out.Age = private.Age
	}
	if show(domain.FieldHeight) {
		out.HeightCM = private.HeightCM
	}
	if show(domain.FieldLocation) {
		out.Location = private.Location
	}
	if show(domain.FieldIntent) {
		out.Intent = private.Intent
	}
	if show(domain.FieldHabits) {
		out.Habits = append([]string(nil), private.Habits...)
	}
	if show(domain.FieldRealName) {
		out.RealName = private.Name
	}
	return out
}

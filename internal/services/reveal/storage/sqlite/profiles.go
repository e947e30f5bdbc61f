package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/unveil/internal/services/reveal/identity"
	"github.com/louisbranch/unveil/internal/services/reveal/storage"
)

// GetShadowProfile reads the anonymous persona for userID.
func (s *Store) GetShadowProfile(ctx context.Context, userID string) (identity.ShadowProfile, error) {
	if err := s.ready(ctx); err != nil {
		return identity.ShadowProfile{}, err
	}
	var (
		profile   identity.ShadowProfile
		interests string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, name, avatar_id, interests_json, bio FROM shadow_profiles WHERE user_id = ?`,
		strings.TrimSpace(userID),
	).Scan(&profile.UserID, &profile.Name, &profile.AvatarID, &interests, &profile.Bio)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.ShadowProfile{}, storage.ErrNotFound
		}
		return identity.ShadowProfile{}, fmt.Errorf("get shadow profile: %w", err)
	}
	if profile.Interests, err = decodeList(interests); err != nil {
		return identity.ShadowProfile{}, fmt.Errorf("decode interests: %w", err)
	}
	return profile, nil
}

// GetRealProfile reads the identity fields for userID.
func (s *Store) GetRealProfile(ctx context.Context, userID string) (identity.RealProfile, error) {
	if err := s.ready(ctx); err != nil {
		return identity.RealProfile{}, err
	}
	var (
		profile identity.RealProfile
		habits  string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, name, photo_url, age, height_cm, location, voice_note_url, intent, habits_json
		 FROM real_profiles WHERE user_id = ?`,
		strings.TrimSpace(userID),
	).Scan(
		&profile.UserID,
		&profile.Name,
		&profile.PhotoURL,
		&profile.Age,
		&profile.HeightCM,
		&profile.Location,
		&profile.VoiceNoteURL,
		&profile.Intent,
		&habits,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.RealProfile{}, storage.ErrNotFound
		}
		return identity.RealProfile{}, fmt.Errorf("get real profile: %w", err)
	}
	if profile.Habits, err = decodeList(habits); err != nil {
		return identity.RealProfile{}, fmt.Errorf("decode habits: %w", err)
	}
	return profile, nil
}

func decodeList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ identity.Store = (*Store)(nil)

package storage

import (
	"context"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

// GetProfile returns the user's profile, or nil when none was saved yet.
func (s *Store) GetProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	if err := objectstore.ValidateID(userID); err != nil {
		return nil, err
	}

	var profile model.UserProfile
	ok, err := s.load(ctx, "get_profile", objectstore.UserInfoKey(userID), &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile overwrites the user's profile. CreatedAt is kept from the
// stored profile when the caller leaves it zero; UpdatedAt is always
// refreshed.
func (s *Store) SaveProfile(ctx context.Context, userID string, profile model.UserProfile) (*model.UserProfile, error) {
	if err := objectstore.ValidateID(userID); err != nil {
		return nil, err
	}

	return updateJSON(ctx, s, "save_profile", objectstore.UserInfoKey(userID), func(doc *model.UserProfile, exists bool) error {
		now := s.timestamp()

		createdAt := profile.CreatedAt
		if createdAt.IsZero() && exists {
			createdAt = doc.CreatedAt
		}
		if createdAt.IsZero() {
			createdAt = now
		}

		*doc = profile
		doc.UserID = userID
		doc.CreatedAt = createdAt
		doc.UpdatedAt = now
		return nil
	})
}

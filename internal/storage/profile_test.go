package storage

import (
	"context"
	"testing"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
)

func TestGetProfile_Missing(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})

	profile, err := s.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if profile != nil {
		t.Errorf("GetProfile() = %+v, want nil", profile)
	}
}

func TestSaveProfile_Idempotent(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})
	ctx := context.Background()

	in := model.UserProfile{
		FirstName:    "Ann",
		LastName:     "Lee",
		CollegeYear:  model.CollegeYearFirst,
		Major:        "Biology",
		CourseNumber: "ENGL1101",
	}

	first, err := s.SaveProfile(ctx, "u1", in)
	if err != nil {
		t.Fatalf("SaveProfile() error = %v", err)
	}
	if !first.CreatedAt.Equal(first.UpdatedAt) {
		t.Errorf("first save: created_at %v != updated_at %v", first.CreatedAt, first.UpdatedAt)
	}
	if first.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", first.UserID)
	}

	second, err := s.SaveProfile(ctx, "u1", in)
	if err != nil {
		t.Fatalf("second SaveProfile() error = %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	stored, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.FirstName != in.FirstName || stored.LastName != in.LastName ||
		stored.CollegeYear != in.CollegeYear || stored.Major != in.Major ||
		stored.CourseNumber != in.CourseNumber {
		t.Errorf("stored profile = %+v, want fields of %+v", stored, in)
	}
	if !stored.UpdatedAt.Equal(second.UpdatedAt) {
		t.Errorf("stored updated_at = %v, want %v", stored.UpdatedAt, second.UpdatedAt)
	}
}

func TestSaveProfile_FullOverwrite(t *testing.T) {
	s, _ := newTestStore(plainStore{objectstore.NewMemoryStore()}, Options{})
	ctx := context.Background()

	if _, err := s.SaveProfile(ctx, "u1", model.UserProfile{FirstName: "Ann", Major: "Biology"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveProfile(ctx, "u1", model.UserProfile{FirstName: "Ann"}); err != nil {
		t.Fatal(err)
	}

	stored, _ := s.GetProfile(ctx, "u1")
	if stored.Major != "" {
		t.Errorf("Major = %q, want fields replaced not merged", stored.Major)
	}
}

func TestSaveProfile_InvalidUserID(t *testing.T) {
	s, _ := newTestStore(objectstore.NewMemoryStore(), Options{})

	if _, err := s.SaveProfile(context.Background(), "../u2", model.UserProfile{}); err == nil {
		t.Error("SaveProfile() with path traversal id should fail")
	}
}

package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/archpal/coaching-platform/internal/model"
)

func TestLoadSystemPrompt(t *testing.T) {
	got, err := LoadSystemPrompt("")
	if err != nil || got != DefaultSystemPrompt {
		t.Errorf("LoadSystemPrompt(\"\") = %q, %v", got, err)
	}

	path := filepath.Join(t.TempDir(), "prompt.md")
	os.WriteFile(path, []byte("\n  Coach carefully.\n"), 0o600)
	got, err = LoadSystemPrompt(path)
	if err != nil || got != "Coach carefully." {
		t.Errorf("LoadSystemPrompt(file) = %q, %v", got, err)
	}

	empty := filepath.Join(t.TempDir(), "empty.md")
	os.WriteFile(empty, []byte("  \n"), 0o600)
	if _, err := LoadSystemPrompt(empty); err == nil {
		t.Error("empty prompt file should fail")
	}

	if _, err := LoadSystemPrompt(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("missing prompt file should fail")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	if got := buildSystemPrompt("base", nil); got != "base" {
		t.Errorf("nil profile: %q", got)
	}

	got := buildSystemPrompt("base", &model.UserProfile{
		FirstName:    "Ann",
		CollegeYear:  model.CollegeYearGraduate,
		Major:        "History",
		CourseNumber: "HIST8000",
	})
	for _, want := range []string{"base\n\n## Student Context", "College year: Graduate Student", "Major: History", "Course: HIST8000"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt %q missing %q", got, want)
		}
	}
}

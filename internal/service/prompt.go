package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/archpal/coaching-platform/internal/model"
)

// DefaultSystemPrompt is used when no prompt file is configured.
const DefaultSystemPrompt = `You are ArchPal, a writing coach for university students.
Coach the student's process: brainstorm, plan, draft strategies, revise, reflect.
Ask at most two short reflection questions per response.
Never write or substantially edit assignment prose for the student; offer outlines,
checklists and questions they can work from instead.
Close each response with one concrete next step.`

// LoadSystemPrompt reads the prompt file at path, or returns
// DefaultSystemPrompt when path is empty.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt file %s is empty", path)
	}
	return prompt, nil
}

// buildSystemPrompt appends the student context so the coach can adjust
// scaffolding to the student's level.
func buildSystemPrompt(base string, profile *model.UserProfile) string {
	if profile == nil {
		return base
	}

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n## Student Context\n")
	if profile.FirstName != "" {
		fmt.Fprintf(&b, "- Name: %s\n", profile.FirstName)
	}
	if profile.CollegeYear != "" {
		fmt.Fprintf(&b, "- College year: %s\n", profile.CollegeYear)
	}
	if profile.Major != "" {
		fmt.Fprintf(&b, "- Major: %s\n", profile.Major)
	}
	if profile.CourseNumber != "" {
		fmt.Fprintf(&b, "- Course: %s\n", profile.CourseNumber)
	}
	return strings.TrimRight(b.String(), "\n")
}

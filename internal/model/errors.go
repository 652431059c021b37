package model

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrProvider is matched by every LLM provider failure.
	ErrProvider = errors.New("llm provider error")

	// ErrNoProfile is returned when a chat operation runs before the
	// profile form was submitted.
	ErrNoProfile = errors.New("profile not completed")
)

// PolicyViolationError blocks progress until the user corrects the input.
type PolicyViolationError struct {
	Reason string
	Fields map[string]string
}

// Error implements the error interface.
func (e *PolicyViolationError) Error() string {
	if len(e.Fields) == 0 {
		return "policy violation: " + e.Reason
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "policy violation: " + e.Reason + " (" + strings.Join(parts, "; ") + ")"
}

// NewPolicyViolation creates a PolicyViolationError without field details.
func NewPolicyViolation(reason string) *PolicyViolationError {
	return &PolicyViolationError{Reason: reason}
}

// IsPolicyViolation reports whether err is or wraps a PolicyViolationError.
func IsPolicyViolation(err error) bool {
	var pv *PolicyViolationError
	return errors.As(err, &pv)
}

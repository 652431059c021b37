package middleware

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/internal/service"
)

// MaxBodyBytes bounds request bodies; a chat message plus JSON framing.
const MaxBodyBytes = service.MaxContentLength + 4096

// ValidateMessageContent validates message content. Failures are
// policy violations.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return model.NewPolicyViolation("content cannot be empty")
	}
	if len(content) > service.MaxContentLength {
		return model.NewPolicyViolation("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return model.NewPolicyViolation("content must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID taken from a URL.
func ValidateConversationID(id string) error {
	if err := objectstore.ValidateID(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errors.New("title cannot be empty")
	}
	if len(title) > service.MaxTitleLength {
		return errors.New("title exceeds maximum length")
	}
	if !utf8.ValidString(title) {
		return errors.New("title must be valid UTF-8")
	}
	return nil
}

// LimitBody caps the request body size.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

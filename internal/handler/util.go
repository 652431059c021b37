package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/objectstore"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// classify maps a service error to a status code and a stable error code.
func classify(err error) (int, string) {
	switch {
	case model.IsPolicyViolation(err):
		return http.StatusUnprocessableEntity, "policy_violation"
	case errors.Is(err, model.ErrNoProfile):
		return http.StatusConflict, "profile_required"
	case errors.Is(err, objectstore.ErrNotFound), errors.Is(err, objectstore.ErrInvalidID):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, objectstore.ErrUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, model.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// errorBody builds the client facing error. Internal details stay in the log.
func errorBody(err error, code string) errorResponse {
	var pv *model.PolicyViolationError
	switch {
	case errors.As(err, &pv):
		return errorResponse{Error: pv.Reason, Code: code, Fields: pv.Fields}
	case code == "profile_required":
		return errorResponse{Error: "please complete your profile first", Code: code}
	case code == "not_found":
		return errorResponse{Error: "conversation not found", Code: code}
	case code == "store_unavailable":
		return errorResponse{Error: "storage is temporarily unavailable, please try again", Code: code}
	case code == "provider_error":
		return errorResponse{Error: "the coach could not respond, please try again", Code: code}
	default:
		return errorResponse{Error: "internal error", Code: code}
	}
}

// writeServiceError classifies err and writes the matching response.
// Requests abandoned by the client get no body.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error) {
	if errors.Is(err, context.Canceled) {
		log.Debug("request cancelled by client")
		return
	}

	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, errorBody(err, code))
}

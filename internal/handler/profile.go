package handler

import (
	"net/http"

	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// SessionResponse describes the signed-in session.
type SessionResponse struct {
	UserID         string             `json:"user_id"`
	Email          string             `json:"email"`
	Phase          service.Phase      `json:"phase"`
	ConversationID string             `json:"active_conversation_id,omitempty"`
	Profile        *model.UserProfile `json:"profile"`
}

// ProfileHandler handles session and profile endpoints.
type ProfileHandler struct {
	controller *service.Controller
	codec      *middleware.SessionCodec
	logger     *logger.Logger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(ctrl *service.Controller, codec *middleware.SessionCodec, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		controller: ctrl,
		codec:      codec,
		logger:     log,
	}
}

// Session handles GET /api/v1/session
func (h *ProfileHandler) Session(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())

	profile, err := h.controller.Profile(r.Context(), state)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	// The profile may have been saved from another session.
	if state.HasProfile != (profile != nil) {
		state.HasProfile = profile != nil
		if err := h.codec.Write(w, state); err != nil {
			writeServiceError(w, h.logger, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, &SessionResponse{
		UserID:         state.UserID,
		Email:          state.Email,
		Phase:          state.Phase(),
		ConversationID: state.ConversationID,
		Profile:        profile,
	})
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())

	profile, err := h.controller.Profile(r.Context(), state)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if profile == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no profile yet", Code: "profile_required"})
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Put handles PUT /api/v1/profile
func (h *ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())

	var req model.ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	next, profile, err := h.controller.SaveProfile(r.Context(), state, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.codec.Write(w, next); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Options handles GET /api/v1/profile/options
func (h *ProfileHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"college_years": model.CollegeYears,
	})
}

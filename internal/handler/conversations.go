// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// MaxListLimit bounds the limit query parameter.
const MaxListLimit = 50

// ConversationHandler handles conversation history endpoints.
type ConversationHandler struct {
	controller *service.Controller
	codec      *middleware.SessionCodec
	logger     *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(ctrl *service.Controller, codec *middleware.SessionCodec, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		controller: ctrl,
		codec:      codec,
		logger:     log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())

	// Zero selects the configured default.
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= MaxListLimit {
			limit = parsed
		}
	}

	resp, err := h.controller.ListConversations(r.Context(), state, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// New handles POST /api/v1/conversations/new
func (h *ConversationHandler) New(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())

	next := h.controller.NewConversation(state)
	if err := h.codec.Write(w, next); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.controller.GetConversation(r.Context(), state, conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Select handles POST /api/v1/conversations/{id}/select
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, conv, err := h.controller.SelectConversation(r.Context(), state, conversationID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if err := h.codec.Write(w, next); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Rename handles PATCH /api/v1/conversations/{id}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	state, _ := middleware.GetSession(r.Context())
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.RenameConversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.controller.RenameConversation(r.Context(), state, conversationID, req.Title); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

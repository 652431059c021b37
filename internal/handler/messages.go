package handler

import (
	"net/http"

	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/pkg/logger"
)

// ChatHandler handles chat turn endpoints.
type ChatHandler struct {
	controller *service.Controller
	codec      *middleware.SessionCodec
	logger     *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(ctrl *service.Controller, codec *middleware.SessionCodec, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		controller: ctrl,
		codec:      codec,
		logger:     log,
	}
}

// Send handles POST /api/v1/chat
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, _ := middleware.GetSession(ctx)

	var req model.SendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	next, result, err := h.controller.SendMessage(ctx, state, req.Content)

	// A new conversation id must reach the cookie even when the LLM failed.
	if next != state {
		if werr := h.codec.Write(w, next); werr != nil {
			writeServiceError(w, h.logger, werr)
			return
		}
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, &model.SendMessageResponse{
		ConversationID:   result.ConversationID,
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
	})
}

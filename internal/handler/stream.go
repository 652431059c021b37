package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/archpal/coaching-platform/internal/middleware"
	"github.com/archpal/coaching-platform/internal/model"
	"github.com/archpal/coaching-platform/internal/service"
	"github.com/archpal/coaching-platform/pkg/metrics"
)

// sseWriter writes Server-Sent Events. Headers are sent with the first
// event so a failure before that can still be answered as plain JSON.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/event-stream")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("Connection", "keep-alive")
	s.w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) send(event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.start()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Stream handles POST /api/v1/chat/stream
// Events: user_message, token, message_complete, error, done.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	sse := &sseWriter{w: w, flusher: flusher}

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	next, result, err := h.controller.StreamMessage(ctx, state, req.Content, service.StreamCallbacks{
		UserMessage: func(conversationID string, msg *model.Message) error {
			// The cookie must be set before the first event commits the headers.
			if conversationID != state.ConversationID || !state.HasProfile {
				active := state
				active.ConversationID = conversationID
				active.HasProfile = true
				if err := h.codec.Write(w, active); err != nil {
					return err
				}
			}
			return sse.send("user_message", msg)
		},
		Token: func(token string, index int) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return sse.send("token", &model.TokenEvent{Token: token, Index: index})
		},
	})

	if errors.Is(err, context.Canceled) {
		h.logger.Info("SSE client disconnected", zap.String("conversation_id", next.ConversationID))
		return
	}

	if err != nil {
		if !sse.started {
			if next != state {
				if werr := h.codec.Write(w, next); werr != nil {
					h.logger.Error("failed to write session", zap.Error(werr))
				}
			}
			writeServiceError(w, h.logger, err)
			return
		}

		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("chat turn failed", zap.String("code", code), zap.Error(err))
		}
		body := errorBody(err, code)
		sse.send("error", &model.ErrorEvent{Code: code, Message: body.Error})
		sse.send("done", map[string]bool{"success": false})
		return
	}

	sse.send("message_complete", &model.MessageCompleteEvent{
		ConversationID: result.ConversationID,
		Message:        *result.AssistantMessage,
	})
	sse.send("done", map[string]bool{"success": true})
}

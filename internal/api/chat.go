package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/medifestructuras/asistente/internal/chat"
)

// maxMessageBytes bounds the request body; user questions are short.
const maxMessageBytes = 16 << 10

// User-facing Spanish error messages. Internal detail stays in the logs.
const (
	msgEmptyMessage    = "El mensaje no puede estar vacío."
	msgRetrievalFailed = "Lo siento, hubo un problema buscando en nuestra base de conocimiento. Intenta nuevamente."
	msgGenerateFailed  = "Hubo un problema al generar la respuesta. Por favor, intentalo de nuevo."
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

type chatHandler struct {
	bot        *chat.Bot
	trustProxy bool
	logger     *slog.Logger
}

// send handles POST /api/v1/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", h.logger)
		return
	}

	reply, err := h.bot.Respond(r.Context(), chat.Request{
		ConversationID: req.ConversationID,
		Message:        req.Message,
		ClientIP:       clientIP(r, h.trustProxy),
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			WriteError(w, http.StatusBadRequest, "empty_message", msgEmptyMessage, h.logger)
		case errors.Is(err, chat.ErrRetrieval):
			h.logger.Error("chat retrieval failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "retrieval_failed", msgRetrievalFailed, h.logger)
		case errors.Is(err, chat.ErrGeneration):
			h.logger.Error("chat generation failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "generation_failed", msgGenerateFailed, h.logger)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Client went away; nothing useful to write.
			h.logger.Debug("chat request canceled", "error", err)
		default:
			h.logger.Error("chat request failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "internal_error", msgGenerateFailed, h.logger)
		}
		return
	}

	WriteJSON(w, http.StatusOK, chatResponse{
		Response:       reply.Answer,
		ConversationID: reply.ConversationID,
	})
}

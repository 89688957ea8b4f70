package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"chatrewind/internal/app"
	"chatrewind/internal/repository"
	"chatrewind/internal/store"
	"chatrewind/internal/transport/http/response"
	"chatrewind/internal/transport/http/stream"
)

type ChatHandler struct {
	turns  *app.TurnService
	logger zerolog.Logger
}

func NewChatHandler(turns *app.TurnService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		turns:  turns,
		logger: logger.With().Str("component", "chat_handler").Logger(),
	}
}

// GetChat writes the full conversation history as newline-delimited JSON
// records, one complete {role, timestamp, content} object per line.
func (h *ChatHandler) GetChat(c *gin.Context) {
	messages, err := h.turns.History(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrStoreClosed):
			response.Error(c, http.StatusServiceUnavailable, response.CodeStoreUnavailable, "store closed")
		case errors.Is(err, repository.ErrStorage):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "storage failure")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load history failed")
		}
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	emitter, err := stream.NewLineEmitter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}
	for _, msg := range messages {
		if err := emitter.Emit(msg); err != nil {
			h.logger.Warn().Err(err).Msg("history write aborted")
			return
		}
	}
}

// PostChat runs one turn and streams its messages as they complete: the
// echoed user prompt (unless this is an edit), then the model reply or a
// synthetic error message.
func (h *ChatHandler) PostChat(c *gin.Context) {
	prompt := c.PostForm("prompt")
	if strings.TrimSpace(prompt) == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "prompt is required")
		return
	}
	modelID := c.PostForm("model")

	var editMarker *time.Time
	if raw := strings.TrimSpace(c.PostForm("edit_timestamp")); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid edit_timestamp")
			return
		}
		editMarker = &parsed
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	emitter, err := stream.NewLineEmitter(c.Writer)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	err = h.turns.StreamTurn(c.Request.Context(), app.TurnInput{
		Prompt:     prompt,
		Model:      modelID,
		EditMarker: editMarker,
	}, emitter.Emit)
	if err == nil {
		return
	}

	// Once records are on the wire the response cannot be rewritten; the
	// failure is logged and the stream simply ends.
	if c.Writer.Written() {
		h.logger.Error().Err(err).Msg("turn failed mid-stream")
		return
	}
	switch {
	case errors.Is(err, app.ErrPromptEmpty):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, store.ErrStoreClosed):
		response.Error(c, http.StatusServiceUnavailable, response.CodeStoreUnavailable, "store closed")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "turn failed")
	}
}

// ResetChat clears the whole conversation log.
func (h *ChatHandler) ResetChat(c *gin.Context) {
	if err := h.turns.Reset(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, store.ErrStoreClosed):
			response.Error(c, http.StatusServiceUnavailable, response.CodeStoreUnavailable, "store closed")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reset failed")
		}
		return
	}
	response.OK(c, "Chat history cleared", nil)
}

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
)

// ConversationHandler exposes asking and learning over HTTP
type ConversationHandler struct {
	engine interfaces.ConversationEngine
	logger arbor.ILogger
}

func NewConversationHandler(engine interfaces.ConversationEngine, logger arbor.ILogger) *ConversationHandler {
	return &ConversationHandler{
		engine: engine,
		logger: logger,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type learnRequest struct {
	Path string `json:"path"`
}

// AskHandler answers a question with the recent chat log as history and logs the exchange
func (h *ConversationHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req askRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "question is required")
		return
	}

	exchange, err := h.engine.Converse(r.Context(), req.Question)
	if err != nil {
		// The answer exists but could not be logged
		h.logger.Error().Err(err).Msg("Failed to log exchange")
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"exchange": exchange,
			"warning":  "answer was not saved to the chat log",
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"exchange": exchange,
	})
}

// LearnHandler ingests a document by path. With ?async=true it returns at once
// and the result arrives as a "learned" event.
func (h *ConversationHandler) LearnHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req learnRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		WriteError(w, http.StatusBadRequest, "path is required")
		return
	}

	if queryBool(r, "async") {
		ctx := context.WithoutCancel(r.Context())
		common.SafeGo(h.logger, "learnDocument", func() {
			h.engine.LearnDocument(ctx, req.Path)
		})
		WriteStarted(w, "Learning started")
		return
	}

	status := h.engine.LearnDocument(r.Context(), req.Path)
	WriteJSON(w, http.StatusOK, status)
}

// LearnHistoryHandler ingests every unlearned chat turn
func (h *ConversationHandler) LearnHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if queryBool(r, "async") {
		ctx := context.WithoutCancel(r.Context())
		common.SafeGo(h.logger, "learnFromHistory", func() {
			h.engine.LearnFromHistory(ctx)
		})
		WriteStarted(w, "Learning from history started")
		return
	}

	status := h.engine.LearnFromHistory(r.Context())
	WriteJSON(w, http.StatusOK, status)
}

// StatsHandler returns learning statistics. all_text is omitted unless ?text=true.
func (h *ConversationHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.engine.LearningStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to compute learning stats")
		WriteError(w, http.StatusInternalServerError, "Failed to compute learning stats")
		return
	}

	if !queryBool(r, "text") {
		copied := *stats
		copied.AllText = ""
		stats = &copied
	}

	WriteJSON(w, http.StatusOK, stats)
}

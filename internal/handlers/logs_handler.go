package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// ChatLogExporter renders the chat log as a PDF
type ChatLogExporter interface {
	ChatLogPDF(turns []models.ChatTurn, persona models.Persona) ([]byte, error)
}

// LogsHandler serves the chat log
type LogsHandler struct {
	chatLog  interfaces.ChatLogStore
	exporter ChatLogExporter
	persona  interfaces.PersonaProvider
	logger   arbor.ILogger
}

func NewLogsHandler(chatLog interfaces.ChatLogStore, exporter ChatLogExporter, persona interfaces.PersonaProvider, logger arbor.ILogger) *LogsHandler {
	return &LogsHandler{
		chatLog:  chatLog,
		exporter: exporter,
		persona:  persona,
		logger:   logger,
	}
}

// ListHandler returns a page of the chat log, newest first
func (h *LogsHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r, 20)
	WriteJSON(w, http.StatusOK, h.chatLog.Page(page, pageSize))
}

// ExportHandler downloads the whole chat log as a PDF transcript
func (h *LogsHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	turns := h.chatLog.Load()
	data, err := h.exporter.ChatLogPDF(turns, h.persona.Persona(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to export chat log")
		WriteError(w, http.StatusInternalServerError, "Failed to export chat log")
		return
	}

	filename := fmt.Sprintf("chat_log_%s.pdf", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write chat log export")
	}
}

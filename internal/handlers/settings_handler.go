package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/services/settings"
)

// SettingsHandler reads and updates the persona
type SettingsHandler struct {
	settings *settings.Service
	logger   arbor.ILogger
}

func NewSettingsHandler(service *settings.Service, logger arbor.ILogger) *SettingsHandler {
	return &SettingsHandler{
		settings: service,
		logger:   logger,
	}
}

// SettingsHandler handles GET (read), PUT (update) and DELETE (reset to config)
func (h *SettingsHandler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, h.settings.Persona(r.Context()))

	case http.MethodPut:
		var update settings.Update
		if err := DecodeJSON(r, &update); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		persona, err := h.settings.Update(r.Context(), update)
		if err != nil {
			h.logger.Warn().Err(err).Msg("Settings update rejected")
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, persona)

	case http.MethodDelete:
		if err := h.settings.Reset(r.Context()); err != nil {
			h.logger.Error().Err(err).Msg("Failed to reset settings")
			WriteError(w, http.StatusInternalServerError, "Failed to reset settings")
			return
		}
		WriteJSON(w, http.StatusOK, h.settings.Persona(r.Context()))

	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

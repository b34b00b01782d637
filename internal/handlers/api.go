package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
)

type APIHandler struct {
	llm    interfaces.LLMService
	logger arbor.ILogger
}

func NewAPIHandler(llm interfaces.LLMService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		llm:    llm,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns health check status. With ?deep=true the model is probed as well.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	response := map[string]string{
		"status":   "ok",
		"llm_mode": string(h.llm.GetMode()),
	}

	if queryBool(r, "deep") {
		ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
		defer cancel()
		if err := h.llm.HealthCheck(ctx); err != nil {
			h.logger.Warn().Err(err).Msg("LLM health check failed")
			response["status"] = "degraded"
			response["llm"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		response["llm"] = "ok"
	}

	WriteJSON(w, http.StatusOK, response)
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (answers, learning results, proactive messages)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Conversation
	mux.HandleFunc("/api/ask", s.app.ConversationHandler.AskHandler)                    // POST - ask and log the exchange
	mux.HandleFunc("/api/learn", s.app.ConversationHandler.LearnHandler)                // POST - ingest a document
	mux.HandleFunc("/api/learn/history", s.app.ConversationHandler.LearnHistoryHandler) // POST - ingest unlearned chat turns
	mux.HandleFunc("/api/stats", s.app.ConversationHandler.StatsHandler)                // GET - learning statistics

	// API routes - Chat log
	mux.HandleFunc("/api/logs", s.app.LogsHandler.ListHandler)              // GET - paged, newest first
	mux.HandleFunc("/api/logs/export.pdf", s.app.LogsHandler.ExportHandler) // GET - PDF transcript

	// API routes - Persona
	mux.HandleFunc("/api/settings", s.app.SettingsHandler.SettingsHandler) // GET/PUT/DELETE

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

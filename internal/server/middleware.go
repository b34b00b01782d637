package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/handlers"
)

type middleware func(http.Handler) http.Handler

// withConditionalMiddleware serves /ws with CORS headers only; a wrapped writer
// would break the upgrade. Every other route gets the full chain.
func (s *Server) withConditionalMiddleware(router http.Handler) http.Handler {
	chain := s.chain(router, s.logRequests, s.allowGUIOrigin, s.recoverPanics)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			setCORSHeaders(w)
			router.ServeHTTP(w, r)
			return
		}
		chain.ServeHTTP(w, r)
	})
}

// chain applies mws so the first one listed runs first
func (s *Server) chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		event := s.app.Logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start))
		if r.URL.RawQuery != "" {
			event = event.Str("query", r.URL.RawQuery)
		}
		event.Msg("HTTP request")
	})
}

// allowGUIOrigin answers preflight requests from the desktop web view
func (s *Server) allowGUIOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanics turns a handler panic into a crash report and a JSON 500
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				crashPath := common.WriteCrashFile("http "+r.URL.Path, v, string(debug.Stack()))
				s.app.Logger.Error().
					Str("error", fmt.Sprintf("%v", v)).
					Str("path", r.URL.Path).
					Str("crash_file", crashPath).
					Msg("Handler panicked")

				handlers.WriteError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

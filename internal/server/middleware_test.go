package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/app"
	"github.com/ternarybob/pal/internal/common"
)

func newBareServer() *Server {
	return &Server{app: &app.App{Logger: arbor.NewLogger()}}
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	crashDir := t.TempDir()
	previous := common.CrashLogDir
	common.CrashLogDir = crashDir
	t.Cleanup(func() { common.CrashLogDir = previous })

	s := newBareServer()
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])

	entries, err := os.ReadDir(crashDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMiddleware_PreflightAndWebSocketBypass(t *testing.T) {
	s := newBareServer()
	var reached []string
	handler := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = append(reached, r.URL.Path)
		_, isRecorder := w.(*statusRecorder)
		assert.Equal(t, r.URL.Path != "/ws", isRecorder, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ask", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, reached)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, []string{"/ws", "/api/stats"}, reached)
}

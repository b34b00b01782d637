package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
	"github.com/ternarybob/pal/internal/services/chatlog"
	"github.com/ternarybob/pal/internal/services/settings"
)

// fakeEngine implements interfaces.ConversationEngine with func fields
type fakeEngine struct {
	converse    func(ctx context.Context, q string) (*models.Exchange, error)
	learnDoc    func(ctx context.Context, path string) models.Status
	learnHist   func(ctx context.Context) models.Status
	stats       func(ctx context.Context) (*models.LearningStats, error)
	learnedPath chan string
}

func (f *fakeEngine) Ask(ctx context.Context, query string, history []models.ChatTurn) string {
	return "answer"
}

func (f *fakeEngine) Converse(ctx context.Context, q string) (*models.Exchange, error) {
	return f.converse(ctx, q)
}

func (f *fakeEngine) LearnDocument(ctx context.Context, path string) models.Status {
	if f.learnedPath != nil {
		f.learnedPath <- path
	}
	if f.learnDoc == nil {
		return models.DocumentLearned(path, filepath.Base(path), 1)
	}
	return f.learnDoc(ctx, path)
}

func (f *fakeEngine) LearnFromHistory(ctx context.Context) models.Status {
	return f.learnHist(ctx)
}

func (f *fakeEngine) LearningStats(ctx context.Context) (*models.LearningStats, error) {
	return f.stats(ctx)
}

func (f *fakeEngine) Busy() bool              { return false }
func (f *fakeEngine) LastActivity() time.Time { return time.Time{} }

type fakeLLM struct {
	healthErr error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	return "", nil
}
func (f *fakeLLM) HealthCheck(ctx context.Context) error { return f.healthErr }
func (f *fakeLLM) GetMode() interfaces.LLMMode         { return interfaces.LLMModeOffline }
func (f *fakeLLM) Close() error                        { return nil }

type fakeExporter struct {
	turns []models.ChatTurn
	err   error
}

func (f *fakeExporter) ChatLogPDF(turns []models.ChatTurn, persona models.Persona) ([]byte, error) {
	f.turns = turns
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.3 fake"), nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAskHandler(t *testing.T) {
	engine := &fakeEngine{
		converse: func(ctx context.Context, q string) (*models.Exchange, error) {
			return &models.Exchange{
				Question: models.NewChatTurn(models.RoleUser, q),
				Answer:   models.NewChatTurn(models.RoleAssistant, "Fish."),
			}, nil
		},
	}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	t.Run("answers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"What do pelicans eat?"}`))
		handler.AskHandler(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Exchange models.Exchange `json:"exchange"`
		}
		decode(t, rec, &body)
		assert.Equal(t, "What do pelicans eat?", body.Exchange.Question.Content)
		assert.Equal(t, "Fish.", body.Exchange.Answer.Content)
	})

	tests := []struct {
		name   string
		method string
		body   string
		code   int
	}{
		{"empty question", http.MethodPost, `{"question":"  "}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, `{question`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"q":"hi"}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.AskHandler(rec, httptest.NewRequest(tt.method, "/api/ask", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestAskHandler_LogFailureStillAnswers(t *testing.T) {
	engine := &fakeEngine{
		converse: func(ctx context.Context, q string) (*models.Exchange, error) {
			return &models.Exchange{Answer: models.NewChatTurn(models.RoleAssistant, "Fish.")}, errors.New("disk full")
		},
	}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.AskHandler(rec, httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(`{"question":"q"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "warning")
}

func TestLearnHandler(t *testing.T) {
	engine := &fakeEngine{}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LearnHandler(rec, httptest.NewRequest(http.MethodPost, "/api/learn", strings.NewReader(`{"path":"/docs/birds.pdf"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.Status
	decode(t, rec, &status)
	assert.Equal(t, models.StatusLearned, status.Kind)
	assert.Equal(t, "Finished learning 'birds.pdf'!", status.Message)

	rec = httptest.NewRecorder()
	handler.LearnHandler(rec, httptest.NewRequest(http.MethodPost, "/api/learn", strings.NewReader(`{"path":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLearnHandler_Async(t *testing.T) {
	engine := &fakeEngine{learnedPath: make(chan string, 1)}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LearnHandler(rec, httptest.NewRequest(http.MethodPost, "/api/learn?async=true", strings.NewReader(`{"path":"/docs/birds.pdf"}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case path := <-engine.learnedPath:
		assert.Equal(t, "/docs/birds.pdf", path)
	case <-time.After(2 * time.Second):
		t.Fatal("document was not learned in the background")
	}
}

func TestLearnHistoryHandler(t *testing.T) {
	engine := &fakeEngine{
		learnHist: func(ctx context.Context) models.Status { return models.NothingNew() },
	}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.LearnHistoryHandler(rec, httptest.NewRequest(http.MethodPost, "/api/learn/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.Status
	decode(t, rec, &status)
	assert.Equal(t, "No new conversations to learn.", status.Message)
}

func TestStatsHandler(t *testing.T) {
	engine := &fakeEngine{
		stats: func(ctx context.Context) (*models.LearningStats, error) {
			return &models.LearningStats{DocCount: 2, WordCount: 5, LastLearned: "2024-03-09", AllText: "one two three four five", DBSize: 0.25}, nil
		},
	}
	handler := NewConversationHandler(engine, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.LearningStats
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.DocCount)
	assert.Empty(t, stats.AllText)

	rec = httptest.NewRecorder()
	handler.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats?text=true", nil))
	decode(t, rec, &stats)
	assert.Equal(t, "one two three four five", stats.AllText)

	failing := NewConversationHandler(&fakeEngine{
		stats: func(ctx context.Context) (*models.LearningStats, error) { return nil, errors.New("store closed") },
	}, arbor.NewLogger())
	rec = httptest.NewRecorder()
	failing.StatsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func newLogsFixture(t *testing.T) (*LogsHandler, *chatlog.Store, *fakeExporter) {
	t.Helper()
	logger := arbor.NewLogger()
	store := chatlog.NewStore(filepath.Join(t.TempDir(), "chat_log.json"), logger)
	exporter := &fakeExporter{}
	persona := settings.NewService(nil, common.PersonaConfig{AIName: "Pal", UserName: "Sam"}, logger)
	return NewLogsHandler(store, exporter, persona, logger), store, exporter
}

func TestLogsListHandler(t *testing.T) {
	handler, store, _ := newLogsFixture(t)
	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, store.Append(models.NewChatTurn(models.RoleUser, content)))
	}

	rec := httptest.NewRecorder()
	handler.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/logs?page=0&pageSize=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var page models.ChatLogPage
	decode(t, rec, &page)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Turns, 2)
	assert.Equal(t, "three", page.Turns[0].Content)
}

func TestLogsExportHandler(t *testing.T) {
	handler, store, exporter := newLogsFixture(t)
	require.NoError(t, store.Append(models.NewChatTurn(models.RoleUser, "hello")))

	rec := httptest.NewRecorder()
	handler.ExportHandler(rec, httptest.NewRequest(http.MethodGet, "/api/logs/export.pdf", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "chat_log_")
	assert.Len(t, exporter.turns, 1)

	exporter.err = errors.New("font missing")
	rec = httptest.NewRecorder()
	handler.ExportHandler(rec, httptest.NewRequest(http.MethodGet, "/api/logs/export.pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSettingsHandler_NoStorage(t *testing.T) {
	logger := arbor.NewLogger()
	handler := NewSettingsHandler(settings.NewService(nil, common.PersonaConfig{AIName: "Pal", UserName: "Sam", Tone: "Polite"}, logger), logger)

	rec := httptest.NewRecorder()
	handler.SettingsHandler(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var persona models.Persona
	decode(t, rec, &persona)
	assert.Equal(t, models.Persona{AIName: "Pal", UserName: "Sam", Tone: "Polite"}, persona)

	rec = httptest.NewRecorder()
	handler.SettingsHandler(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"tone":"Concise"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.SettingsHandler(rec, httptest.NewRequest(http.MethodPost, "/api/settings", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	llm := &fakeLLM{}
	handler := NewAPIHandler(llm, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"llm_mode":"offline"`)

	llm.healthErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	handler.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/api/health?deep=true", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestVersionHandler(t *testing.T) {
	handler := NewAPIHandler(&fakeLLM{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, common.GetVersion(), body["version"])
}

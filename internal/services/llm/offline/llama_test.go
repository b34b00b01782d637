package offline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
)

func newLlamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/embedding", func(w http.ResponseWriter, r *http.Request) {
		var req llamaServerEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Content == "batch" {
			w.Write([]byte(`[{"index":0,"embedding":[[0.5,0.25,0.125]]}]`))
			return
		}
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3,0.4]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req llamaServerChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if len(req.Messages) == 0 {
			http.Error(w, "no messages", http.StatusBadRequest)
			return
		}
		last := req.Messages[len(req.Messages)-1]
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "echo: " + last.Content}},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestOfflineLLMService_AgainstServer(t *testing.T) {
	server := newLlamaServer(t)
	service, err := NewOfflineLLMService(Config{
		ServerURL:   server.URL,
		EmbedModel:  "nomic-embed",
		Temperature: 0.8,
		MaxTokens:   64,
		Timeout:     5 * time.Second,
	}, arbor.NewLogger())
	require.NoError(t, err)
	defer service.Close()

	ctx := context.Background()
	require.NoError(t, service.HealthCheck(ctx))
	assert.Equal(t, interfaces.LLMModeOffline, service.GetMode())
	assert.Equal(t, "nomic-embed", service.ModelName())
	assert.Zero(t, service.Dimension())

	embedding, err := service.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4}, embedding)
	assert.Equal(t, 4, service.Dimension())

	embedding, err = service.Embed(ctx, "batch")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, embedding)

	answer, err := service.Chat(ctx, []interfaces.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi there"},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi there", answer)

	_, err = service.Chat(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestNewOfflineLLMService_RejectsRemoteHost(t *testing.T) {
	_, err := NewOfflineLLMService(Config{ServerURL: "http://example.com:8086"}, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security violation")
}

func TestOfflineLLMService_ServerDown(t *testing.T) {
	server := newLlamaServer(t)
	url := server.URL
	server.Close()

	service, err := NewOfflineLLMService(Config{ServerURL: url, Timeout: time.Second}, arbor.NewLogger())
	require.NoError(t, err)

	_, err = service.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.Error(t, service.HealthCheck(context.Background()))
}

func TestOfflineLLMService_MockMode(t *testing.T) {
	service, err := NewOfflineLLMService(Config{MockMode: true}, arbor.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := service.Embed(ctx, "test text")
	require.NoError(t, err)
	assert.Len(t, first, MockDimension)

	second, err := service.Embed(ctx, "test text")
	require.NoError(t, err)
	assert.Equal(t, first, second, "mock embeddings are deterministic")

	response, err := service.Chat(ctx, []interfaces.Message{{Role: "user", Content: "Hello"}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: Hello", response)

	assert.Equal(t, interfaces.LLMModeMock, service.GetMode())
	assert.NoError(t, service.HealthCheck(ctx))
	assert.NoError(t, service.Close())
}

func TestParseEmbedding(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []float32
		wantErr bool
	}{
		{name: "object", body: `{"embedding":[1,2]}`, want: []float32{1, 2}},
		{name: "flat array", body: `[3,4]`, want: []float32{3, 4}},
		{name: "batch", body: `[{"index":0,"embedding":[[5,6]]}]`, want: []float32{5, 6}},
		{name: "empty batch", body: `[{"index":0,"embedding":[]}]`, wantErr: true},
		{name: "garbage", body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEmbedding([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

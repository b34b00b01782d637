package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
)

func TestNewServices_Mock(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM
	cfg.Mode = ModeMock

	chat, embedder, err := NewServices(&cfg, nil, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, interfaces.LLMModeMock, chat.GetMode())

	vec, err := embedder.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, embedder.Dimension())
}

func TestNewServices_OfflineRejectsRemote(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM
	cfg.Mode = ModeOffline
	cfg.Offline.ServerURL = "http://10.0.0.5:8086"

	_, _, err := NewServices(&cfg, nil, arbor.NewLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security violation")
}

func TestNewServices_UnknownMode(t *testing.T) {
	cfg := common.NewDefaultConfig().LLM
	cfg.Mode = "openai"

	_, _, err := NewServices(&cfg, nil, arbor.NewLogger())
	require.Error(t, err)
}

func TestNewServices_ClaudeFallsBackToLocalEmbeddings(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("PAL_GEMINI_API_KEY", "")

	cfg := common.NewDefaultConfig().LLM
	cfg.Mode = ModeClaude
	cfg.Claude.APIKey = "test-key"
	cfg.Offline.MockMode = true

	chat, embedder, err := NewServices(&cfg, nil, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, interfaces.LLMModeCloud, chat.GetMode())
	assert.Equal(t, "mock-embed", embedder.ModelName())
}

func TestConvertMessages(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be nice"},
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "bye"},
	}

	contents, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)
	assert.Equal(t, "be nice", system)
	require.Len(t, contents, 3)
	assert.Equal(t, "model", contents[1].Role)

	claudeMessages, system, err := convertMessagesToClaude(messages)
	require.NoError(t, err)
	assert.Equal(t, "be nice", system)
	assert.Len(t, claudeMessages, 3)

	_, _, err = convertMessagesToGemini([]interfaces.Message{{Role: "system", Content: "only"}})
	assert.Error(t, err)
	_, _, err = convertMessagesToClaude(nil)
	assert.Error(t, err)
}

func TestRetryHelpers(t *testing.T) {
	assert.True(t, IsRateLimitError(errors.New("Error 429, Status: RESOURCE_EXHAUSTED")))
	assert.False(t, IsRateLimitError(errors.New("connection refused")))
	assert.False(t, IsRateLimitError(nil))

	delay := ExtractRetryDelay(errors.New("Please retry in 12.5s., Status: RESOURCE_EXHAUSTED"))
	assert.Equal(t, 12500*time.Millisecond, delay)
	assert.Zero(t, ExtractRetryDelay(errors.New("no hint")))

	cfg := NewDefaultRetryConfig()
	assert.Equal(t, DefaultInitialBackoff, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, DefaultMaxBackoff, cfg.CalculateBackoff(10, 0))
	assert.Equal(t, 13500*time.Millisecond, cfg.CalculateBackoff(0, delay))
}

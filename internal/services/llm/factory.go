package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/services/llm/offline"
)

// LLM modes accepted in [llm] mode
const (
	ModeOffline = "offline"
	ModeGemini  = "gemini"
	ModeClaude  = "claude"
	ModeMock    = "mock"
)

// NewServices creates the chat model and the embedding model for the configured mode.
// Claude has no embeddings: Gemini embeds when a Google key is available, otherwise
// the local llama-server does.
func NewServices(
	cfg *common.LLMConfig,
	kv interfaces.KeyValueStorage,
	logger arbor.ILogger,
) (interfaces.LLMService, interfaces.EmbeddingService, error) {
	logger.Info().Str("mode", cfg.Mode).Msg("Initializing LLM service")

	switch cfg.Mode {
	case ModeMock:
		service := offline.NewMockOfflineLLMService(logger)
		return service, service, nil

	case ModeOffline:
		service, err := createOfflineService(&cfg.Offline, logger)
		if err != nil {
			return nil, nil, err
		}
		return service, service, nil

	case ModeGemini:
		service, err := NewGeminiService(&cfg.Gemini, kv, logger)
		if err != nil {
			return nil, nil, err
		}
		return service, service, nil

	case ModeClaude:
		chat, err := NewClaudeService(&cfg.Claude, kv, logger)
		if err != nil {
			return nil, nil, err
		}
		embedder, err := claudeEmbedder(cfg, kv, logger)
		if err != nil {
			chat.Close()
			return nil, nil, err
		}
		return chat, embedder, nil

	default:
		return nil, nil, fmt.Errorf("invalid LLM mode '%s': must be one of offline, gemini, claude, mock", cfg.Mode)
	}
}

func claudeEmbedder(cfg *common.LLMConfig, kv interfaces.KeyValueStorage, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	if _, err := common.ResolveAPIKey(context.Background(), kv, "gemini_api_key", cfg.Gemini.APIKey); err == nil {
		logger.Debug().Msg("Claude mode embedding with Gemini")
		return NewGeminiService(&cfg.Gemini, kv, logger)
	}

	logger.Debug().Msg("Claude mode embedding with local llama-server")
	return createOfflineService(&cfg.Offline, logger)
}

func createOfflineService(cfg *common.OfflineConfig, logger arbor.ILogger) (*offline.OfflineLLMService, error) {
	service, err := offline.NewOfflineLLMService(offline.Config{
		ServerURL:   cfg.ServerURL,
		ChatModel:   cfg.ChatModel,
		EmbedModel:  cfg.EmbedModel,
		Timeout:     common.ParseDurationOr(cfg.Timeout, 5*time.Minute),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		RateLimit:   cfg.RateLimit,
		MockMode:    cfg.MockMode,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create offline LLM service: %w", err)
	}
	return service, nil
}

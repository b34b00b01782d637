package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"google.golang.org/genai"
)

// GeminiService provides chat completions and embeddings with Google Gemini models
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
	retry   *GeminiRetryConfig
}

var (
	_ interfaces.LLMService       = (*GeminiService)(nil)
	_ interfaces.EmbeddingService = (*GeminiService)(nil)
)

// convertMessagesToGemini converts messages to Gemini contents.
// The first system message is returned separately for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		geminiRole := genai.RoleUser
		if msg.Role == "assistant" {
			geminiRole = genai.RoleModel
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a Gemini client.
// The API key is resolved from the environment, then the KV store, then config.
func NewGeminiService(config *common.GeminiConfig, kv interfaces.KeyValueStorage, logger arbor.ILogger) (*GeminiService, error) {
	ctx := context.Background()
	apiKey, err := common.ResolveAPIKey(ctx, kv, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Google API key is required for Gemini (set GOOGLE_API_KEY, PAL_GEMINI_API_KEY, or llm.gemini.api_key): %w", err)
	}

	if config.EmbedModel == "" {
		config.EmbedModel = "gemini-embedding-001"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}

	timeout := common.ParseDurationOr(config.Timeout, 2*time.Minute)

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
		retry:   NewDefaultRetryConfig(),
	}

	logger.Info().
		Str("embed_model", config.EmbedModel).
		Str("chat_model", config.ChatModel).
		Int("embed_dimension", config.EmbedDimension).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized successfully")

	return service, nil
}

// ModelName identifies the embedding model recorded on stored entries
func (s *GeminiService) ModelName() string {
	return s.config.EmbedModel
}

// Dimension returns the configured output dimensionality
func (s *GeminiService) Dimension() int {
	return s.config.EmbedDimension
}

// Embed generates an embedding vector with the configured output dimensionality
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	startTime := time.Now()
	var embedding []float32
	err := s.withRetry(ctx, "embed", func(ctx context.Context) error {
		var err error
		embedding, err = s.generateEmbedding(ctx, text)
		return err
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("text_length", len(text)).
			Msg("Embedding generation failed")
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	s.logger.Trace().
		Int("text_length", len(text)).
		Int("embedding_dim", len(embedding)).
		Dur("duration", time.Since(startTime)).
		Msg("Embedding generated")

	return embedding, nil
}

// Chat generates a completion for the conversation in chronological order
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	startTime := time.Now()
	var response string
	err := s.withRetry(ctx, "chat", func(ctx context.Context) error {
		var err error
		response, err = s.generateCompletion(ctx, messages)
		return err
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Chat completion completed successfully")

	return response, nil
}

// withRetry runs fn with a per-attempt timeout, backing off on rate limit errors
func (s *GeminiService) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil || !IsRateLimitError(err) || attempt == s.retry.MaxRetries {
			return err
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Str("operation", op).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Gemini rate limited, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}

// HealthCheck probes the chat model with a minimal request
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCheckCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(healthCheckCtx, []interfaces.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return fmt.Errorf("chat probe failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("chat probe returned empty response")
	}
	return nil
}

// GetMode returns cloud
func (s *GeminiService) GetMode() interfaces.LLMMode {
	return interfaces.LLMModeCloud
}

// Close drops the client reference; genai.Client has no Close
func (s *GeminiService) Close() error {
	s.logger.Debug().Msg("Closing Gemini LLM service")
	s.client = nil
	return nil
}

func (s *GeminiService) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embeddingConfig := &genai.EmbedContentConfig{}
	if s.config.EmbedDimension > 0 {
		outputDim := int32(s.config.EmbedDimension)
		embeddingConfig.OutputDimensionality = &outputDim
	}

	result, err := s.client.Models.EmbedContent(ctx, s.config.EmbedModel, []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	if s.config.EmbedDimension > 0 && len(embedding) != s.config.EmbedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.EmbedDimension, len(embedding))
	}

	return embedding, nil
}

func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.ChatModel, geminiContents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	// First candidate with non-empty text wins
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}

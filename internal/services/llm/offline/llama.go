package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
	"golang.org/x/time/rate"
)

// MockDimension is the vector length produced in mock mode
const MockDimension = 768

// Config configures the llama-server client
type Config struct {
	ServerURL   string
	ChatModel   string
	EmbedModel  string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	RateLimit   float64 // requests per second, 0 = unlimited
	MockMode    bool
}

// OfflineLLMService talks to a local llama-server for chat and embeddings.
// SECURITY: the transport refuses any non-localhost address.
type OfflineLLMService struct {
	config    Config
	serverURL string
	client    *http.Client
	limiter   *rate.Limiter
	mockMode  bool
	logger    arbor.ILogger

	dimMu     sync.RWMutex
	dimension int
}

// llamaServerEmbeddingRequest represents embedding request to llama-server
type llamaServerEmbeddingRequest struct {
	Content string `json:"content"`
}

// llamaServerEmbeddingResponse represents embedding response from llama-server
type llamaServerEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type llamaServerBatchEmbeddingResponse struct {
	Index     int         `json:"index"`
	Embedding [][]float32 `json:"embedding"` // Nested array format
}

// llamaServerChatRequest represents chat request to llama-server
type llamaServerChatRequest struct {
	Model       string               `json:"model,omitempty"`
	Messages    []llamaServerMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Stream      bool                 `json:"stream"`
}

type llamaServerMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type llamaServerChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOfflineLLMService creates a client for the llama-server at config.ServerURL.
// The server must listen on localhost.
func NewOfflineLLMService(config Config, logger arbor.ILogger) (*OfflineLLMService, error) {
	if config.MockMode {
		return NewMockOfflineLLMService(logger), nil
	}

	serverURL, err := localServerURL(config.ServerURL)
	if err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	service := &OfflineLLMService{
		config:    config,
		serverURL: serverURL,
		client:    newLocalhostClient(timeout),
		limiter:   limiter,
		logger:    logger,
	}

	logger.Info().
		Str("mode", "offline").
		Str("server_url", serverURL).
		Str("chat_model", config.ChatModel).
		Str("embed_model", config.EmbedModel).
		Dur("timeout", timeout).
		Msg("Offline LLM service initialized")

	return service, nil
}

// NewMockOfflineLLMService creates a service that answers without a server
func NewMockOfflineLLMService(logger arbor.ILogger) *OfflineLLMService {
	logger.Warn().Msg("Created offline LLM service in MOCK mode - using fake responses")
	return &OfflineLLMService{
		config:    Config{ChatModel: "mock", EmbedModel: "mock-embed"},
		mockMode:  true,
		logger:    logger,
		dimension: MockDimension,
	}
}

var (
	_ interfaces.LLMService       = (*OfflineLLMService)(nil)
	_ interfaces.EmbeddingService = (*OfflineLLMService)(nil)
)

// localServerURL validates that raw points at localhost and strips any trailing slash
func localServerURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid llama-server url '%s': %w", raw, err)
	}
	host := parsed.Hostname()
	if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		return "", fmt.Errorf("security violation: llama-server must run on localhost, got %s", host)
	}
	return strings.TrimRight(raw, "/"), nil
}

func newLocalhostClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				// SECURITY: Reject any non-localhost connections
				if !strings.HasPrefix(addr, "127.0.0.1:") && !strings.HasPrefix(addr, "localhost:") && !strings.HasPrefix(addr, "[::1]:") {
					return nil, fmt.Errorf("security violation: attempt to connect to non-localhost address: %s", addr)
				}
				return (&net.Dialer{}).DialContext(ctx, network, addr)
			},
		},
	}
}

// ModelName identifies the embedding model recorded on stored entries
func (s *OfflineLLMService) ModelName() string {
	if s.config.EmbedModel == "" {
		return "llama-server"
	}
	return s.config.EmbedModel
}

// Dimension returns the vector length seen so far, 0 before the first embedding
func (s *OfflineLLMService) Dimension() int {
	s.dimMu.RLock()
	defer s.dimMu.RUnlock()
	return s.dimension
}

// Embed generates an embedding with llama-server's /embedding endpoint
func (s *OfflineLLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.mockMode {
		return s.generateMockEmbedding(text), nil
	}

	jsonData, err := json.Marshal(llamaServerEmbeddingRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	bodyBytes, err := s.post(ctx, "/embedding", jsonData)
	if err != nil {
		return nil, err
	}

	embedding, err := parseEmbedding(bodyBytes)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("response_preview", string(bodyBytes[:min(200, len(bodyBytes))])).
			Msg("Failed to parse embedding response in any known format")
		return nil, err
	}

	s.dimMu.Lock()
	s.dimension = len(embedding)
	s.dimMu.Unlock()

	s.logger.Trace().
		Int("dimension", len(embedding)).
		Msg("Embedding generated successfully")

	return embedding, nil
}

// parseEmbedding accepts {"embedding": [...]}, a bare array, or the batch form
// [{"index":0,"embedding":[[...]]}] returned by newer llama-server builds
func parseEmbedding(body []byte) ([]float32, error) {
	var objResponse llamaServerEmbeddingResponse
	if err := json.Unmarshal(body, &objResponse); err == nil && len(objResponse.Embedding) > 0 {
		return objResponse.Embedding, nil
	}

	var flat []float32
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	var batch []llamaServerBatchEmbeddingResponse
	if err := json.Unmarshal(body, &batch); err == nil && len(batch) > 0 {
		if len(batch[0].Embedding) > 0 && len(batch[0].Embedding[0]) > 0 {
			return batch[0].Embedding[0], nil
		}
		return nil, fmt.Errorf("batch embedding response has empty embedding array")
	}

	return nil, fmt.Errorf("failed to parse embedding JSON")
}

// Chat generates a completion with llama-server's OpenAI-compatible endpoint
func (s *OfflineLLMService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if s.mockMode {
		return s.generateMockResponse(messages), nil
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Msg("Generating chat completion")

	llamaMessages := make([]llamaServerMessage, len(messages))
	for i, msg := range messages {
		llamaMessages[i] = llamaServerMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	jsonData, err := json.Marshal(llamaServerChatRequest{
		Model:       s.config.ChatModel,
		Messages:    llamaMessages,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	bodyBytes, err := s.post(ctx, "/v1/chat/completions", jsonData)
	if err != nil {
		return "", err
	}

	var chatResponse llamaServerChatResponse
	if err := json.Unmarshal(bodyBytes, &chatResponse); err != nil {
		s.logger.Error().
			Err(err).
			Str("response", string(bodyBytes[:min(200, len(bodyBytes))])).
			Msg("Failed to parse chat response")
		return "", fmt.Errorf("failed to parse chat JSON: %w", err)
	}

	if len(chatResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat response")
	}

	response := chatResponse.Choices[0].Message.Content

	s.logger.Debug().
		Int("response_length", len(response)).
		Msg("Chat completion generated")

	return response, nil
}

// post sends a JSON body to the server, honouring the rate limit
func (s *OfflineLLMService) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("path", path).
			Msg("llama-server request failed")
		return nil, fmt.Errorf("llama-server request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("path", path).
			Str("response", string(bodyBytes[:min(200, len(bodyBytes))])).
			Msg("llama-server returned error")
		return nil, fmt.Errorf("llama-server returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return bodyBytes, nil
}

// HealthCheck queries llama-server's /health endpoint
func (s *OfflineLLMService) HealthCheck(ctx context.Context) error {
	if s.mockMode {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("llama-server not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llama-server health returned status %d", resp.StatusCode)
	}
	return nil
}

// GetMode returns offline, or mock when no server is used
func (s *OfflineLLMService) GetMode() interfaces.LLMMode {
	if s.mockMode {
		return interfaces.LLMModeMock
	}
	return interfaces.LLMModeOffline
}

// Close releases idle connections
func (s *OfflineLLMService) Close() error {
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.logger.Debug().Msg("Offline LLM service closed")
	return nil
}

// generateMockEmbedding creates a deterministic 768-dimension vector from text
func (s *OfflineLLMService) generateMockEmbedding(text string) []float32 {
	embedding := make([]float32, MockDimension)
	seed := 0
	for _, c := range text {
		seed += int(c)
	}

	for i := range embedding {
		embedding[i] = float32((seed+i)%100) / 100.0
	}

	return embedding
}

// generateMockResponse echoes the last message
func (s *OfflineLLMService) generateMockResponse(messages []interfaces.Message) string {
	if len(messages) == 0 {
		return "Mock response: No messages provided"
	}

	lastMsg := messages[len(messages)-1]
	return fmt.Sprintf("Mock response to: %s", lastMsg.Content)
}

package common

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/pal/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	LLM         LLMConfig       `toml:"llm"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Persona     PersonaConfig   `toml:"persona"`
	Proactive   ProactiveConfig `toml:"proactive"`
	Watch       WatchConfig     `toml:"watch"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"min=1,max=65535"`
	Host string `toml:"host" validate:"required"`
}

type StorageConfig struct {
	Badger       BadgerConfig `toml:"badger"`
	ChatLogPath  string       `toml:"chat_log_path" validate:"required"`  // JSON array of chat turns
	PromptConfig string       `toml:"prompt_config" validate:"required"` // Prompt template JSON file (optional on disk)
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Knowledge store directory
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// LLMConfig selects the chat and embedding providers
type LLMConfig struct {
	Mode    string        `toml:"mode" validate:"oneof=offline gemini claude mock"`
	Offline OfflineConfig `toml:"offline"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Claude  ClaudeConfig  `toml:"claude"`
}

// OfflineConfig points at a local llama-server instance
type OfflineConfig struct {
	ServerURL   string  `toml:"server_url" validate:"required,url"`
	ChatModel   string  `toml:"chat_model"`
	EmbedModel  string  `toml:"embed_model"`
	Timeout     string  `toml:"timeout"`
	Temperature float64 `toml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	RateLimit   float64 `toml:"rate_limit"` // Requests per second, 0 = unlimited
	MockMode    bool    `toml:"mock_mode"`
}

// GeminiConfig configures the Google Gemini provider (chat + embeddings)
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`
	ChatModel      string  `toml:"chat_model"`
	EmbedModel     string  `toml:"embed_model"`
	EmbedDimension int     `toml:"embed_dimension" validate:"gte=0"`
	Timeout        string  `toml:"timeout"`
	Temperature    float32 `toml:"temperature"`
}

// ClaudeConfig configures the Anthropic provider (chat only)
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens" validate:"gte=0"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// RetrievalConfig holds the document and retrieval tuning constants
type RetrievalConfig struct {
	K             int `toml:"k" validate:"min=1"`
	ChunkSize     int `toml:"chunk_size" validate:"min=1"`
	ChunkOverlap  int `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	HistoryWindow int `toml:"history_window" validate:"gte=0"`
}

// PersonaConfig is substituted into prompt templates
type PersonaConfig struct {
	AIName   string `toml:"ai_name" validate:"required"`
	UserName string `toml:"user_name" validate:"required"`
	Tone     string `toml:"tone" validate:"omitempty,oneof=Friendly Polite Concise"`
}

// ProactiveConfig controls idle-time nudges from the companion
type ProactiveConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"` // e.g. "5m"
}

// WatchConfig enables auto-learning of files dropped into a folder
type WatchConfig struct {
	Enabled  bool     `toml:"enabled"`
	Dir      string   `toml:"dir" validate:"required_if=Enabled true"`
	Include  []string `toml:"include"`  // doublestar patterns relative to Dir
	Debounce string   `toml:"debounce"` // e.g. "2s"
}

type WebSocketConfig struct {
	AllowedEvents []string `toml:"allowed_events"` // Empty = broadcast all
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8765,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/knowledge",
			},
			ChatLogPath:  "./chat_log.json",
			PromptConfig: "./prompt_config.json",
		},
		LLM: LLMConfig{
			Mode: "offline",
			Offline: OfflineConfig{
				ServerURL:   "http://127.0.0.1:8086",
				ChatModel:   "local-chat",
				EmbedModel:  "local-embed",
				Timeout:     "5m",
				Temperature: 0.8,
				MaxTokens:   512,
			},
			Gemini: GeminiConfig{
				ChatModel:      "gemini-2.0-flash",
				EmbedModel:     "gemini-embedding-001",
				EmbedDimension: 768,
				Timeout:        "2m",
				Temperature:    0.7,
			},
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 1024,
				Timeout:   "2m",
			},
		},
		Retrieval: RetrievalConfig{
			K:             3,
			ChunkSize:     500,
			ChunkOverlap:  50,
			HistoryWindow: 6,
		},
		Persona: PersonaConfig{
			AIName:   "Pal",
			UserName: "Any",
			Tone:     "Friendly",
		},
		Proactive: ProactiveConfig{
			Enabled:  true,
			Interval: "5m",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Dir:      "./inbox",
			Include:  []string{"**/*.pdf", "**/*.txt", "**/*.md", "**/*.html"},
			Debounce: "2s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. Missing paths are an error; empty paths are skipped.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the struct tags once at load time
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("failed to validate configuration: %w", err)
	}

	for _, d := range []struct{ name, value string }{
		{"llm.offline.timeout", c.LLM.Offline.Timeout},
		{"llm.gemini.timeout", c.LLM.Gemini.Timeout},
		{"llm.claude.timeout", c.LLM.Claude.Timeout},
		{"proactive.interval", c.Proactive.Interval},
		{"watch.debounce", c.Watch.Debounce},
	} {
		if d.value == "" {
			continue
		}
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid duration for %s '%s': %w", d.name, d.value, err)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PAL_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("PAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("PAL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("PAL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if chatLog := os.Getenv("PAL_CHAT_LOG"); chatLog != "" {
		config.Storage.ChatLogPath = chatLog
	}
	if promptConfig := os.Getenv("PAL_PROMPT_CONFIG"); promptConfig != "" {
		config.Storage.PromptConfig = promptConfig
	}

	// LLM configuration
	if mode := os.Getenv("PAL_LLM_MODE"); mode != "" {
		config.LLM.Mode = mode
	}
	if serverURL := os.Getenv("PAL_LLAMA_SERVER_URL"); serverURL != "" {
		config.LLM.Offline.ServerURL = serverURL
	}

	// Persona configuration
	if aiName := os.Getenv("PAL_AI_NAME"); aiName != "" {
		config.Persona.AIName = aiName
	}
	if userName := os.Getenv("PAL_USER_NAME"); userName != "" {
		config.Persona.UserName = userName
	}
	if tone := os.Getenv("PAL_TONE"); tone != "" {
		config.Persona.Tone = tone
	}

	// Logging configuration
	if level := os.Getenv("PAL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("PAL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name.
// Resolution order: environment variables -> KV store -> config fallback -> error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"PAL_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"PAL_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses value, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

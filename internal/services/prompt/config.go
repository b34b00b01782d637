package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// Built-in templates, used whenever prompt_config.json is missing or invalid.
// They carry no persona placeholders.
const (
	DefaultSystemPrompt      = "You are a helpful AI assistant."
	DefaultPromptNoHistory   = "Context: {context}\nQuestion: {question}\nAnswer:"
	DefaultPromptWithHistory = "History: {history}\nContext: {context}\nQuestion: {question}\nAnswer:"
)

const configSchema = `{
  "type": "object",
  "required": ["system_prompt", "prompt_no_history", "prompt_with_history"],
  "properties": {
    "system_prompt":       {"type": "string"},
    "prompt_no_history":   {"type": "string", "minLength": 1},
    "prompt_with_history": {"type": "string", "minLength": 1}
  }
}`

var schema *gojsonschema.Schema

func init() {
	var err error
	schema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(configSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid prompt config schema: %v", err))
	}
}

// DefaultConfig returns the built-in prompt configuration
func DefaultConfig() models.PromptConfig {
	return models.PromptConfig{
		SystemPrompt:      DefaultSystemPrompt,
		PromptNoHistory:   DefaultPromptNoHistory,
		PromptWithHistory: DefaultPromptWithHistory,
	}
}

// LoadPromptConfig reads and validates the prompt configuration at path.
// Any failure is logged and the built-in defaults are returned.
func LoadPromptConfig(path string, logger arbor.ILogger) models.PromptConfig {
	config, err := loadPromptConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("path", path).Msg("Prompt config not found, using built-in templates")
		} else {
			logger.Warn().Err(err).Str("path", path).Msg("Prompt config invalid, using built-in templates")
		}
		return DefaultConfig()
	}

	logger.Debug().Str("path", path).Msg("Prompt config loaded")
	return config
}

func loadPromptConfig(path string) (models.PromptConfig, error) {
	var config models.PromptConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read prompt config: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return config, fmt.Errorf("failed to parse prompt config: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return config, fmt.Errorf("prompt config does not match schema: %s", strings.Join(problems, "; "))
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to decode prompt config: %w", err)
	}
	return config, nil
}

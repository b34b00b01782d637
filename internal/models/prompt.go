package models

// PromptConfig holds the system prompt and the two answer templates.
// Loaded once at startup and never mutated afterwards.
type PromptConfig struct {
	SystemPrompt      string `json:"system_prompt"`
	PromptNoHistory   string `json:"prompt_no_history"`
	PromptWithHistory string `json:"prompt_with_history"`
}

// Persona is the identity substituted into prompt templates
type Persona struct {
	AIName   string `json:"ai_name"`
	UserName string `json:"user_name"`
	Tone     string `json:"tone,omitempty"`
}

// Tone presets
const (
	ToneFriendly = "Friendly"
	TonePolite   = "Polite"
	ToneConcise  = "Concise"
)

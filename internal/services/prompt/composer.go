// Package prompt builds the text sent to the language model from templates,
// persona, retrieved passages and recent history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/models"
)

// DefaultHistoryWindow is the number of most recent turns rendered into a prompt
const DefaultHistoryWindow = 6

// Persona fallbacks when configuration leaves a name empty
const (
	DefaultAIName   = "Assistant"
	DefaultUserName = "User"
)

// Composer selects a template and fills it in two stages:
// persona placeholders when the template is selected, content placeholders per request.
type Composer struct {
	config        models.PromptConfig
	historyWindow int
	logger        arbor.ILogger
}

// NewComposer creates a composer over an immutable prompt configuration
func NewComposer(config models.PromptConfig, historyWindow int, logger arbor.ILogger) *Composer {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Composer{
		config:        config,
		historyWindow: historyWindow,
		logger:        logger,
	}
}

// Config returns the prompt configuration in effect
func (c *Composer) Config() models.PromptConfig {
	return c.config
}

// HistoryWindow returns the number of turns rendered into prompts
func (c *Composer) HistoryWindow() int {
	return c.historyWindow
}

// SystemPrompt returns the configured system prompt followed by the tone instruction, if any
func (c *Composer) SystemPrompt(persona models.Persona) string {
	tone := ToneInstruction(persona.Tone, aiName(persona))
	if tone == "" {
		return c.config.SystemPrompt
	}
	if strings.TrimSpace(c.config.SystemPrompt) == "" {
		return tone
	}
	return c.config.SystemPrompt + "\n\n" + tone
}

// EmbedsSystemPrompt reports whether the template for the history branch places
// the system prompt itself. When it does, no separate system message is sent.
func (c *Composer) EmbedsSystemPrompt(withHistory bool) bool {
	return strings.Contains(c.base(withHistory), "{system_prompt}")
}

func (c *Composer) base(withHistory bool) string {
	if withHistory {
		return c.config.PromptWithHistory
	}
	return c.config.PromptNoHistory
}

// Template returns the template for the history branch with persona placeholders filled.
// {system_prompt} carries the tone instruction. {context}, {question} and {history} are left in place.
func (c *Composer) Template(withHistory bool, persona models.Persona) string {
	return strings.NewReplacer(
		"{system_prompt}", c.SystemPrompt(persona),
		"{user_name}", userName(persona),
		"{ai_name}", aiName(persona),
	).Replace(c.base(withHistory))
}

// Compose renders the final prompt. Empty history selects the no-history template.
func (c *Composer) Compose(question string, passages []models.Passage, history []models.ChatTurn, persona models.Persona) string {
	withHistory := len(history) > 0
	template := c.Template(withHistory, persona)

	pairs := []string{
		"{context}", FormatContext(passages),
		"{question}", question,
	}
	if withHistory {
		pairs = append(pairs, "{history}", FormatHistory(history, c.historyWindow))
	}

	// One pass, so placeholders inside user text are never expanded
	prompt := strings.NewReplacer(pairs...).Replace(template)

	c.logger.Debug().
		Bool("with_history", withHistory).
		Int("passages", len(passages)).
		Int("prompt_len", len(prompt)).
		Msg("Prompt composed")

	return prompt
}

// FormatHistory renders the last window turns as "<role>: <content>" lines in chronological order
func FormatHistory(history []models.ChatTurn, window int) string {
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, turn.String())
	}
	return strings.Join(lines, "\n")
}

// FormatContext joins retrieved passage texts with blank lines
func FormatContext(passages []models.Passage) string {
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n")
}

// ToneInstruction returns the personality instruction for a tone preset.
// Unknown tones return the default assistant prompt; an empty tone returns "".
func ToneInstruction(tone, aiName string) string {
	switch tone {
	case "":
		return ""
	case models.ToneFriendly:
		return fmt.Sprintf(`You are %s, a friendly and caring AI companion. Your primary goal is to be helpful and supportive to the user.
**Personality:**
- Always be cheerful, positive, and encouraging.
- Speak in a simple, gentle, and easy-to-understand manner.
- Use friendly and casual language (e.g., "Hey there!", "Let's see...").
- You can use simple, positive emojis like :) or !.`, aiName)
	case models.TonePolite:
		return fmt.Sprintf(`You are %s, a sophisticated and polite AI assistant. Your primary role is to serve the user with respect and efficiency.
**Personality:**
- Always use formal and respectful language (e.g., "Certainly," "At your service,").
- Maintain a calm, composed, and professional demeanor.
- Be proactive by offering suggestions.
- Avoid slang and casual language.`, aiName)
	case models.ToneConcise:
		return fmt.Sprintf(`You are %s, a professional and highly efficient AI assistant. Your purpose is to provide information and complete tasks as quickly and accurately as possible.
**Personality:**
- Be direct and to the point.
- Avoid greetings, apologies, and unnecessary conversational filler.
- Use clear, objective, and neutral language.
- Do not use emojis or emotional language.`, aiName)
	default:
		return DefaultSystemPrompt
	}
}

func aiName(p models.Persona) string {
	if p.AIName == "" {
		return DefaultAIName
	}
	return p.AIName
}

func userName(p models.Persona) string {
	if p.UserName == "" {
		return DefaultUserName
	}
	return p.UserName
}

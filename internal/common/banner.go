package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Pal", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("llm_mode", config.LLM.Mode).
		Str("knowledge_dir", config.Storage.Badger.Path).
		Str("chat_log", config.Storage.ChatLogPath).
		Str("ai_name", config.Persona.AIName).
		Str("user_name", config.Persona.UserName).
		Msg("Pal starting")
}

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question",
	Long: `Answers the question from learned passages, with the recent chat log as
history. The exchange is appended to the chat log unless --no-log is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askNoLog bool
	askPlain bool
)

func init() {
	askCmd.Flags().BoolVar(&askNoLog, "no-log", false, "Do not record the exchange in the chat log")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "Print the answer without Markdown rendering")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	ctx := cmd.Context()
	logger.Info().Str("question", question).Msg("Answering question")

	var answer string
	if askNoLog {
		history := application.ChatLog.Recent(application.Composer.HistoryWindow())
		answer = application.Engine.Ask(ctx, question, history)
	} else {
		exchange, err := application.Engine.Converse(ctx, question)
		if err != nil {
			logger.Warn().Err(err).Msg("Answer was not saved to the chat log")
		}
		answer = exchange.Answer.Content
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderMarkdown(answer, askPlain))
	return nil
}

// renderMarkdown styles an answer for the terminal, falling back to the raw text
func renderMarkdown(text string, plain bool) string {
	if plain {
		return text
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

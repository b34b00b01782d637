package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [output.pdf]",
	Short: "Export the chat log as a PDF transcript",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	output := fmt.Sprintf("chat_log_%s.pdf", time.Now().Format("20060102"))
	if len(args) == 1 {
		output = args[0]
	}

	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	turns := application.ChatLog.Load()
	data, err := application.ExportService.ChatLogPDF(turns, application.SettingsService.Persona(cmd.Context()))
	if err != nil {
		return fmt.Errorf("failed to export chat log: %w", err)
	}

	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(turns), output)
	return nil
}

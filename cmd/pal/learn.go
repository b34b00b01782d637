package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/pal/internal/models"
)

var learnCmd = &cobra.Command{
	Use:   "learn [file...]",
	Short: "Learn from PDF, text, Markdown or HTML files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLearn,
}

var learnHistoryCmd = &cobra.Command{
	Use:   "learn-history",
	Short: "Learn from chat turns that have not been learned yet",
	Args:  cobra.NoArgs,
	RunE:  runLearnHistory,
}

func runLearn(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	failed := 0
	for _, path := range args {
		status := application.Engine.LearnDocument(cmd.Context(), path)
		printStatus(cmd, status)
		if status.Kind == models.StatusFailed {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(args))
	}
	return nil
}

func runLearnHistory(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	status := application.Engine.LearnFromHistory(cmd.Context())
	printStatus(cmd, status)
	if status.Kind == models.StatusFailed {
		return fmt.Errorf("%s", status.Message)
	}
	return nil
}

func printStatus(cmd *cobra.Command, status models.Status) {
	if status.OK() && status.Count > 0 && status.Source != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d passages)\n", status.Message, status.Count)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), status.Message)
}

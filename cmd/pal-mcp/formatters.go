package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/pal/internal/models"
)

const previewLength = 300

// formatSearchResults formats retrieved passages as markdown
func formatSearchResults(query string, results []models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Passages for \"%s\" (%d results)\n\n", query, len(results)))

	if len(results) == 0 {
		sb.WriteString("Nothing learned yet.\n")
		return sb.String()
	}

	for i, result := range results {
		origin := "chat history"
		if source := result.Source(); source != "" {
			origin = filepath.Base(source)
		}
		sb.WriteString(fmt.Sprintf("### %d. %s\n", i+1, origin))
		sb.WriteString(fmt.Sprintf("**Score:** %.3f\n\n", result.Score))

		text := []rune(result.Text)
		if len(text) > previewLength {
			text = append(text[:previewLength], []rune("...")...)
		}
		sb.WriteString(string(text))
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatStats formats learning statistics as markdown
func formatStats(stats *models.LearningStats) string {
	var sb strings.Builder
	sb.WriteString("## Learning Stats\n\n")
	sb.WriteString(fmt.Sprintf("- **Documents learned:** %d\n", stats.DocCount))
	sb.WriteString(fmt.Sprintf("- **Words learned:** %d\n", stats.WordCount))
	sb.WriteString(fmt.Sprintf("- **Last learned:** %s\n", stats.LastLearned))
	sb.WriteString(fmt.Sprintf("- **Knowledge size:** %.2f MB\n", stats.DBSize))
	return sb.String()
}

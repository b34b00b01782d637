package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what Pal has learned",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var statsTopWords int

func init() {
	statsCmd.Flags().IntVar(&statsTopWords, "top", 10, "Number of most frequent words to list (0 to hide)")
}

func runStats(cmd *cobra.Command, args []string) error {
	application, err := openApp()
	if err != nil {
		return err
	}
	defer application.Close()

	stats, err := application.Engine.LearningStats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to compute learning stats: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Documents learned:\t%d\n", stats.DocCount)
	fmt.Fprintf(w, "Words learned:\t%d\n", stats.WordCount)
	fmt.Fprintf(w, "Last learned:\t%s\n", stats.LastLearned)
	fmt.Fprintf(w, "Knowledge size:\t%.2f MB\n", stats.DBSize)
	if err := w.Flush(); err != nil {
		return err
	}

	if statsTopWords > 0 && stats.AllText != "" {
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), "Frequent words:")
		for _, wc := range topWords(stats.AllText, statsTopWords) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %d\n", wc.word, wc.count)
		}
	}
	return nil
}

type wordCount struct {
	word  string
	count int
}

// topWords counts lower-cased words of three or more letters
func topWords(text string, n int) []wordCount {
	counts := make(map[string]int)
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	}) {
		word := strings.ToLower(strings.Trim(field, "'"))
		if len([]rune(word)) < 3 {
			continue
		}
		counts[word]++
	}

	words := make([]wordCount, 0, len(counts))
	for word, count := range counts {
		words = append(words, wordCount{word, count})
	}
	sort.Slice(words, func(i, j int) bool {
		if words[i].count != words[j].count {
			return words[i].count > words[j].count
		}
		return words[i].word < words[j].word
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
)

const maxSearchLimit = 20

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	result := textResult(text)
	result.IsError = true
	return result
}

// handleAsk implements the ask tool
func handleAsk(engine interfaces.ConversationEngine, chatLog interfaces.ChatLogStore, historyWindow int, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return errorResult("Error: question parameter is required"), nil
		}

		if !request.GetBool("log", true) {
			answer := engine.Ask(ctx, question, chatLog.Recent(historyWindow))
			return textResult(answer), nil
		}

		exchange, err := engine.Converse(ctx, question)
		if err != nil {
			logger.Warn().Err(err).Msg("Answer was not saved to the chat log")
		}
		return textResult(exchange.Answer.Content), nil
	}
}

// handleSearchKnowledge implements the search_knowledge tool
func handleSearchKnowledge(store interfaces.KnowledgeStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || strings.TrimSpace(query) == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 3)
		if limit < 1 {
			limit = 1
		}
		if limit > maxSearchLimit {
			limit = maxSearchLimit
		}

		results, err := store.Search(ctx, query, limit)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Knowledge search failed")
			return errorResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		return textResult(formatSearchResults(query, results)), nil
	}
}

// handleLearnDocument implements the learn_document tool
func handleLearnDocument(engine interfaces.ConversationEngine, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil || strings.TrimSpace(path) == "" {
			return errorResult("Error: path parameter is required"), nil
		}

		status := engine.LearnDocument(ctx, path)
		logger.Debug().Str("path", path).Str("kind", string(status.Kind)).Msg("learn_document finished")
		return textResult(status.Message), nil
	}
}

// handleLearnFromHistory implements the learn_from_history tool
func handleLearnFromHistory(engine interfaces.ConversationEngine, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status := engine.LearnFromHistory(ctx)
		logger.Debug().Str("kind", string(status.Kind)).Msg("learn_from_history finished")
		return textResult(status.Message), nil
	}
}

// handleLearningStats implements the learning_stats tool
func handleLearningStats(engine interfaces.ConversationEngine, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		stats, err := engine.LearningStats(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to compute learning stats")
			return errorResult(fmt.Sprintf("Stats error: %v", err)), nil
		}
		return textResult(formatStats(stats)), nil
	}
}

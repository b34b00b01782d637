package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/pal/internal/app"
	"github.com/ternarybob/pal/internal/common"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("PAL_CONFIG")
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	} else if _, err := os.Stat("pal.toml"); err == nil {
		paths = append(paths, "pal.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs only go to file
	config.Logging.Output = []string{"file"}
	config.Proactive.Enabled = false
	config.Watch.Enabled = false
	logger := common.InitLogger(config)

	application, err := app.New(config, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Pal: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	mcpServer := newMCPServer(application)

	logger.Info().Str("version", common.GetVersion()).Msg("MCP server starting on stdio")

	// Blocks until stdin closes
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		application.Close()
		os.Exit(1)
	}
}

// newMCPServer registers the conversation tools
func newMCPServer(application *app.App) *server.MCPServer {
	mcpServer := server.NewMCPServer(
		"pal",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	logger := application.Logger
	mcpServer.AddTool(createAskTool(), handleAsk(application.Engine, application.ChatLog, application.Composer.HistoryWindow(), logger))
	mcpServer.AddTool(createSearchKnowledgeTool(), handleSearchKnowledge(application.StorageManager.KnowledgeStorage(), logger))
	mcpServer.AddTool(createLearnDocumentTool(), handleLearnDocument(application.Engine, logger))
	mcpServer.AddTool(createLearnFromHistoryTool(), handleLearnFromHistory(application.Engine, logger))
	mcpServer.AddTool(createLearningStatsTool(), handleLearningStats(application.Engine, logger))

	return mcpServer
}

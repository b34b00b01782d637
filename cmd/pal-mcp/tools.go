package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAskTool returns the ask tool definition
func createAskTool() mcp.Tool {
	return mcp.NewTool("ask",
		mcp.WithDescription("Ask Pal a question. Answers come from learned documents and past conversations."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithBoolean("log",
			mcp.Description("Record the exchange in the chat log (default: true)"),
		),
	)
}

// createSearchKnowledgeTool returns the search_knowledge tool definition
func createSearchKnowledgeTool() mcp.Tool {
	return mcp.NewTool("search_knowledge",
		mcp.WithDescription("Return the learned passages most similar to a query, without generating an answer"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum passages to return (default: 3, max: 20)"),
		),
	)
}

// createLearnDocumentTool returns the learn_document tool definition
func createLearnDocumentTool() mcp.Tool {
	return mcp.NewTool("learn_document",
		mcp.WithDescription("Learn a PDF, text, Markdown or HTML file from the local disk"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the file"),
		),
	)
}

// createLearnFromHistoryTool returns the learn_from_history tool definition
func createLearnFromHistoryTool() mcp.Tool {
	return mcp.NewTool("learn_from_history",
		mcp.WithDescription("Learn from chat log messages that have not been learned yet"),
	)
}

// createLearningStatsTool returns the learning_stats tool definition
func createLearningStatsTool() mcp.Tool {
	return mcp.NewTool("learning_stats",
		mcp.WithDescription("Summarise what Pal has learned: document count, word count, last learned date and store size"),
	)
}

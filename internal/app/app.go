package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/handlers"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/services/chatlog"
	"github.com/ternarybob/pal/internal/services/chunker"
	"github.com/ternarybob/pal/internal/services/conversation"
	"github.com/ternarybob/pal/internal/services/events"
	"github.com/ternarybob/pal/internal/services/export"
	"github.com/ternarybob/pal/internal/services/llm"
	"github.com/ternarybob/pal/internal/services/proactive"
	"github.com/ternarybob/pal/internal/services/prompt"
	"github.com/ternarybob/pal/internal/services/settings"
	"github.com/ternarybob/pal/internal/services/watcher"
	"github.com/ternarybob/pal/internal/storage"
	"github.com/ternarybob/pal/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	ctx            context.Context
	cancelCtx      context.CancelFunc
	StorageManager *badger.Manager

	// Model providers
	LLMService       interfaces.LLMService
	EmbeddingService interfaces.EmbeddingService

	// Conversation core
	Chunker          *chunker.Service
	Composer         *prompt.Composer
	ChatLog          *chatlog.Store
	SettingsService  *settings.Service
	EventService     interfaces.EventService
	Engine           *conversation.Engine
	ExportService    *export.Service
	ProactiveService *proactive.Service
	WatcherService   *watcher.Service

	// HTTP handlers
	APIHandler          *handlers.APIHandler
	ConversationHandler *handlers.ConversationHandler
	LogsHandler         *handlers.LogsHandler
	SettingsHandler     *handlers.SettingsHandler
	WSHandler           *handlers.WebSocketHandler
}

// New initializes the application with all dependencies.
// Background services are not started; see StartBackground.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("llm_mode", string(app.LLMService.GetMode())).
		Str("embed_model", app.EmbeddingService.ModelName()).
		Int("k", cfg.Retrieval.K).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens the knowledge store directory and its settings store
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the conversation core in dependency order:
// models -> knowledge index -> chunker/composer/chat log -> persona -> events -> engine.
func (a *App) initServices() error {
	var err error

	// API keys may come from the settings store, so models are created after it opens
	a.LLMService, a.EmbeddingService, err = llm.NewServices(&a.Config.LLM, a.StorageManager.KeyValueStorage(), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}

	if err := a.StorageManager.AttachEmbedder(a.EmbeddingService); err != nil {
		return fmt.Errorf("failed to attach embedder: %w", err)
	}

	a.Chunker = chunker.NewService(a.Config.Retrieval.ChunkSize, a.Config.Retrieval.ChunkOverlap, a.Logger)

	promptConfig := prompt.LoadPromptConfig(a.Config.Storage.PromptConfig, a.Logger)
	a.Composer = prompt.NewComposer(promptConfig, a.Config.Retrieval.HistoryWindow, a.Logger)

	a.ChatLog = chatlog.NewStore(a.Config.Storage.ChatLogPath, a.Logger)

	a.SettingsService = settings.NewService(a.StorageManager.KeyValueStorage(), a.Config.Persona, a.Logger)

	a.EventService = events.NewService(a.Logger)

	a.Engine = conversation.NewEngine(conversation.Options{
		Store:    a.StorageManager.KnowledgeStorage(),
		Chunker:  a.Chunker,
		Composer: a.Composer,
		LLM:      a.LLMService,
		ChatLog:  a.ChatLog,
		Persona:  a.SettingsService,
		Events:   a.EventService,
		K:        a.Config.Retrieval.K,
	}, a.Logger)

	a.ExportService = export.NewService(a.Logger)

	if a.Config.Proactive.Enabled {
		a.ProactiveService = proactive.NewService(
			proactive.IntervalFromConfig(a.Config.Proactive),
			a.Engine,
			a.ChatLog,
			a.SettingsService,
			a.EventService,
			a.Logger,
		)
	}

	if a.Config.Watch.Enabled {
		a.WatcherService, err = watcher.NewService(a.Config.Watch, a.Engine, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize folder watcher: %w", err)
		}
	}

	return nil
}

// initHandlers creates the HTTP and WebSocket handlers
func (a *App) initHandlers() {
	a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
	a.APIHandler = handlers.NewAPIHandler(a.LLMService, a.Logger)
	a.ConversationHandler = handlers.NewConversationHandler(a.Engine, a.Logger)
	a.LogsHandler = handlers.NewLogsHandler(a.ChatLog, a.ExportService, a.SettingsService, a.Logger)
	a.SettingsHandler = handlers.NewSettingsHandler(a.SettingsService, a.Logger)
}

// StartBackground starts the proactive scheduler and the folder watcher, when enabled
func (a *App) StartBackground() error {
	if a.ProactiveService != nil {
		if err := a.ProactiveService.Start(); err != nil {
			return fmt.Errorf("failed to start proactive service: %w", err)
		}
		a.Logger.Info().Dur("interval", a.ProactiveService.Interval()).Msg("Proactive chat enabled")
	}

	if a.WatcherService != nil {
		if err := a.WatcherService.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start folder watcher: %w", err)
		}
		a.Logger.Info().Str("dir", a.WatcherService.Dir()).Msg("Folder watcher enabled")
	}

	return nil
}

// Close stops background services and releases resources in reverse start order
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.WatcherService != nil {
		if err := a.WatcherService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop folder watcher")
		}
	}

	if a.ProactiveService != nil {
		a.ProactiveService.Stop()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.LLMService != nil {
		if err := a.LLMService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		} else {
			a.Logger.Info().Msg("LLM service closed")
		}
	}

	// Claude mode embeds with a separate provider
	if closer, ok := a.EmbeddingService.(io.Closer); ok {
		if llmService, isLLM := a.EmbeddingService.(interfaces.LLMService); !isLLM || llmService != a.LLMService {
			if err := closer.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Failed to close embedding service")
			}
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

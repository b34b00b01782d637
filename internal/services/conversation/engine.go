// Package conversation answers questions from the knowledge store and
// feeds documents and chat history back into it.
package conversation

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
	"github.com/ternarybob/pal/internal/services/prompt"
)

// FallbackAnswer is returned whenever retrieval or generation fails
const FallbackAnswer = "Sorry, an error occurred while generating the answer."

const historyProcessingFailed = "Failed to process chat history."

// DefaultK is the number of passages retrieved per question
const DefaultK = 3

// Engine orchestrates retrieval, prompt composition and generation.
// Conversational operations are serialised by mu.
type Engine struct {
	store    interfaces.KnowledgeStorage
	chunker  interfaces.Chunker
	composer *prompt.Composer
	llm      interfaces.LLMService
	chatLog  interfaces.ChatLogStore
	persona  interfaces.PersonaProvider
	events   interfaces.EventService
	k        int
	logger   arbor.ILogger

	mu           sync.Mutex
	inFlight     atomic.Int32
	lastActivity atomic.Int64
}

// Options collects the engine's collaborators. Events may be nil.
type Options struct {
	Store    interfaces.KnowledgeStorage
	Chunker  interfaces.Chunker
	Composer *prompt.Composer
	LLM      interfaces.LLMService
	ChatLog  interfaces.ChatLogStore
	Persona  interfaces.PersonaProvider
	Events   interfaces.EventService
	K        int
}

// NewEngine creates a conversation engine
func NewEngine(opts Options, logger arbor.ILogger) *Engine {
	k := opts.K
	if k <= 0 {
		k = DefaultK
	}

	e := &Engine{
		store:    opts.Store,
		chunker:  opts.Chunker,
		composer: opts.Composer,
		llm:      opts.LLM,
		chatLog:  opts.ChatLog,
		persona:  opts.Persona,
		events:   opts.Events,
		k:        k,
		logger:   logger,
	}
	e.touch()
	return e
}

var _ interfaces.ConversationEngine = (*Engine)(nil)

// Busy reports whether a conversational operation is running or waiting to run
func (e *Engine) Busy() bool {
	return e.inFlight.Load() > 0
}

// LastActivity is when the last conversational operation finished
func (e *Engine) LastActivity() time.Time {
	return time.Unix(0, e.lastActivity.Load())
}

func (e *Engine) touch() {
	e.lastActivity.Store(time.Now().UnixNano())
}

// begin marks an operation in flight and takes the engine lock; the returned func releases both.
// Busy and idle transitions are published as status events.
func (e *Engine) begin(ctx context.Context, operation string) func() {
	e.inFlight.Add(1)
	e.publish(ctx, interfaces.EventStatus, models.EngineState{Busy: true, Operation: operation})
	e.mu.Lock()
	return func() {
		e.touch()
		e.mu.Unlock()
		busy := e.inFlight.Add(-1) > 0
		e.publish(ctx, interfaces.EventStatus, models.EngineState{Busy: busy, Operation: operation})
	}
}

// refreshStats recomputes learning statistics in the background and publishes them
func (e *Engine) refreshStats(ctx context.Context) {
	if e.events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	common.SafeGo(e.logger, "learningStats", func() {
		stats, err := e.LearningStats(ctx)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Failed to refresh learning stats")
			return
		}
		e.publish(ctx, interfaces.EventStats, stats)
	})
}

// Ask answers query. Retrieval always uses the raw query text.
// Empty history selects the no-history template. Failures return FallbackAnswer.
func (e *Engine) Ask(ctx context.Context, query string, history []models.ChatTurn) string {
	defer e.begin(ctx, models.OperationAsk)()
	return e.ask(ctx, query, history)
}

func (e *Engine) ask(ctx context.Context, query string, history []models.ChatTurn) string {
	startTime := time.Now()

	results, err := e.store.Search(ctx, query, e.k)
	if err != nil {
		e.logger.Error().Err(err).Msg("Knowledge retrieval failed")
		return FallbackAnswer
	}

	passages := make([]models.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Passage)
	}

	persona := e.currentPersona(ctx)
	messages := []interfaces.Message{
		{Role: models.RoleUser, Content: e.composer.Compose(query, passages, history, persona)},
	}
	if !e.composer.EmbedsSystemPrompt(len(history) > 0) {
		messages = append([]interfaces.Message{{Role: models.RoleSystem, Content: e.composer.SystemPrompt(persona)}}, messages...)
	}

	answer, err := e.llm.Chat(ctx, messages)
	if err != nil {
		e.logger.Error().Err(err).Msg("Answer generation failed")
		return FallbackAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		e.logger.Error().Msg("Answer generation returned empty output")
		return FallbackAnswer
	}

	e.logger.Info().
		Int("passages", len(passages)).
		Int("history", len(history)).
		Int("answer_length", len(answer)).
		Dur("duration", time.Since(startTime)).
		Msg("Question answered")

	return answer
}

// Converse answers question with the recent chat log as history, then appends
// the user turn and the assistant turn to the log.
func (e *Engine) Converse(ctx context.Context, question string) (*models.Exchange, error) {
	defer e.begin(ctx, models.OperationAsk)()

	history := e.chatLog.Recent(e.composer.HistoryWindow())
	userTurn := models.NewChatTurn(models.RoleUser, question)

	answer := e.ask(ctx, question, history)
	assistantTurn := models.NewChatTurn(models.RoleAssistant, answer)

	exchange := &models.Exchange{Question: userTurn, Answer: assistantTurn}
	if err := e.chatLog.Append(userTurn, assistantTurn); err != nil {
		e.logger.Error().Err(err).Msg("Failed to append chat turns")
		return exchange, err
	}

	e.publish(ctx, interfaces.EventAnswer, exchange)
	return exchange, nil
}

// LearnDocument splits path into passages and stores them durably
func (e *Engine) LearnDocument(ctx context.Context, path string) models.Status {
	defer e.begin(ctx, models.OperationLearnDocument)()

	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}
	name := filepath.Base(path)

	passages := e.chunker.SplitDocument(ctx, path)
	if len(passages) == 0 {
		e.logger.Info().Str("path", path).Msg("No content to learn")
		return models.NothingToLearn(source)
	}

	if err := e.store.Add(ctx, passages); err != nil {
		e.logger.Error().Err(err).Str("path", path).Msg("Failed to store document passages")
		return models.Failed("Failed to learn '"+name+"'.", source)
	}

	status := models.DocumentLearned(source, name, len(passages))
	e.logger.Info().
		Str("path", source).
		Int("passages", len(passages)).
		Msg("Document learned")

	e.publish(ctx, interfaces.EventLearned, status)
	e.refreshStats(ctx)
	return status
}

// LearnFromHistory ingests every unlearned turn. Flags are flipped only after
// the passages are durable, so a failed store leaves the turns unlearned.
func (e *Engine) LearnFromHistory(ctx context.Context) models.Status {
	defer e.begin(ctx, models.OperationLearnHistory)()

	if !e.chatLog.Exists() {
		return models.NoHistory()
	}
	turns := e.chatLog.Load()

	var indices []int
	var lines []string
	for i, turn := range turns {
		if turn.Learned {
			continue
		}
		indices = append(indices, i)
		lines = append(lines, turn.String())
	}
	if len(indices) == 0 {
		return models.NothingNew()
	}

	passages := e.chunker.Split(strings.Join(lines, "\n"), map[string]string{
		models.MetadataKind: models.KindHistory,
	})
	if len(passages) == 0 {
		return models.Failed(historyProcessingFailed, "")
	}

	if err := e.store.Add(ctx, passages); err != nil {
		e.logger.Error().Err(err).Msg("Failed to store chat history passages")
		return models.Failed(historyProcessingFailed, "")
	}

	if err := e.chatLog.MarkLearned(indices); err != nil {
		// Passages are stored; the turns will be offered again next time
		e.logger.Error().Err(err).Msg("Failed to flag learned chat turns")
		return models.Failed(historyProcessingFailed, "")
	}

	status := models.HistoryLearned(len(indices))
	e.logger.Info().
		Int("turns", len(indices)).
		Int("passages", len(passages)).
		Msg("Chat history learned")

	e.publish(ctx, interfaces.EventLearned, status)
	e.refreshStats(ctx)
	return status
}

// LearningStats summarises the store. It scans every entry and is meant for
// background goroutines. It does not take the engine lock.
func (e *Engine) LearningStats(ctx context.Context) (*models.LearningStats, error) {
	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return &models.LearningStats{LastLearned: models.LastLearnedNone}, nil
	}

	snapshot, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]struct{})
	for _, meta := range snapshot.Metadatas {
		if source := meta[models.MetadataSource]; source != "" {
			sources[source] = struct{}{}
		}
	}

	allText := strings.Join(snapshot.Documents, " ")

	size, err := e.store.SizeOnDisk()
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to measure knowledge store size")
		size = 0
	}

	return &models.LearningStats{
		DocCount:    len(sources),
		WordCount:   len(strings.Fields(allText)),
		LastLearned: lastLearned(sources),
		AllText:     allText,
		DBSize:      bytesToMB(size),
	}, nil
}

// lastLearned is the newest modification date among sources still on disk
func lastLearned(sources map[string]struct{}) string {
	var latest time.Time
	for source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			continue
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	if latest.IsZero() {
		return models.LastLearnedUnavailable
	}
	return latest.Format("2006-01-02")
}

func bytesToMB(size int64) float64 {
	mb := float64(size) / (1024 * 1024)
	return math.Round(mb*100) / 100
}

func (e *Engine) currentPersona(ctx context.Context) models.Persona {
	if e.persona == nil {
		return models.Persona{}
	}
	return e.persona.Persona(ctx)
}

func (e *Engine) publish(ctx context.Context, eventType interfaces.EventType, payload interface{}) {
	if e.events == nil {
		return
	}
	// Subscribers run after the request that triggered them may be gone
	if err := e.events.Publish(context.WithoutCancel(ctx), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		e.logger.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish event")
	}
}

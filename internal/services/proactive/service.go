// Package proactive lets the companion start a conversation after a quiet spell.
package proactive

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// DefaultInterval is the quiet time before the companion speaks up
const DefaultInterval = 5 * time.Minute

// DefaultUserName is used when the persona has no user name
const DefaultUserName = "friend"

// Phrases are the idle messages; {user_name} is replaced with the persona's user name
var Phrases = []string{
	"Hey {user_name}, anything interesting happen today?",
	"Just letting you know I'm here if you need anything, {user_name}!",
	"Getting a little bored... Do you have any documents for me to read?",
	"How's the weather over there, {user_name}?",
	"It feels like a while since I last learned something...",
}

// ActivityTracker reports whether the conversation engine is idle
type ActivityTracker interface {
	Busy() bool
	LastActivity() time.Time
}

// Service posts a phrase to the chat log once the engine has been idle for the interval
type Service struct {
	activity ActivityTracker
	chatLog  interfaces.ChatLogStore
	persona  interfaces.PersonaProvider
	events   interfaces.EventService
	interval time.Duration
	logger   arbor.ILogger

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	last    time.Time // last proactive message
	pick    func(n int) int
}

// NewService creates a proactive chat service. events may be nil.
func NewService(
	interval time.Duration,
	activity ActivityTracker,
	chatLog interfaces.ChatLogStore,
	persona interfaces.PersonaProvider,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		activity: activity,
		chatLog:  chatLog,
		persona:  persona,
		events:   events,
		interval: interval,
		logger:   logger,
		cron:     cron.New(),
		pick:     rand.IntN,
	}
}

// Interval returns the configured quiet time
func (s *Service) Interval() time.Duration {
	return s.interval
}

// checkEvery is how often idleness is checked; a fraction of the interval keeps
// the first message close to interval after the last activity
func (s *Service) checkEvery() time.Duration {
	every := s.interval / 5
	if every < time.Second {
		every = time.Second
	}
	return every
}

// Start schedules the idle check
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("proactive chat already running")
	}

	spec := "@every " + s.checkEvery().String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.Tick(context.Background(), time.Now())
	}); err != nil {
		return fmt.Errorf("failed to add proactive chat schedule: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Dur("interval", s.interval).
		Str("schedule", spec).
		Msg("Proactive chat started")
	return nil
}

// Stop halts the schedule and waits for a running check to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Proactive chat stopped")
}

// Tick speaks up when the engine is idle and quiet for the interval.
// It reports whether a message was sent.
func (s *Service) Tick(ctx context.Context, now time.Time) bool {
	if s.activity.Busy() {
		s.logger.Debug().Msg("Engine busy, skipping proactive chat")
		return false
	}

	s.mu.Lock()
	quietSince := s.activity.LastActivity()
	if s.last.After(quietSince) {
		quietSince = s.last
	}
	s.mu.Unlock()

	if now.Sub(quietSince) < s.interval {
		return false
	}

	if _, err := s.Nudge(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Proactive chat failed")
		return false
	}
	return true
}

// Nudge appends a random phrase as an assistant turn and publishes it
func (s *Service) Nudge(ctx context.Context) (models.ChatTurn, error) {
	turn := models.NewChatTurn(models.RoleAssistant, s.phrase(ctx))

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()

	if err := s.chatLog.Append(turn); err != nil {
		return turn, fmt.Errorf("failed to append proactive message: %w", err)
	}

	s.logger.Info().Str("message", turn.Content).Msg("Proactive message sent")

	if s.events != nil {
		err := s.events.Publish(ctx, interfaces.Event{
			Type:    interfaces.EventProactiveMessage,
			Payload: turn,
		})
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish proactive message")
		}
	}
	return turn, nil
}

func (s *Service) phrase(ctx context.Context) string {
	userName := ""
	if s.persona != nil {
		userName = s.persona.Persona(ctx).UserName
	}
	if userName == "" {
		userName = DefaultUserName
	}
	return strings.ReplaceAll(Phrases[s.pick(len(Phrases))], "{user_name}", userName)
}

// IntervalFromConfig parses the [proactive] interval, falling back to DefaultInterval
func IntervalFromConfig(cfg common.ProactiveConfig) time.Duration {
	return common.ParseDurationOr(cfg.Interval, DefaultInterval)
}

package proactive

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
	"github.com/ternarybob/pal/internal/services/chatlog"
	"github.com/ternarybob/pal/internal/services/events"
)

type fakeActivity struct {
	busy atomic.Bool
	last atomic.Int64
}

func (f *fakeActivity) Busy() bool { return f.busy.Load() }

func (f *fakeActivity) LastActivity() time.Time { return time.Unix(0, f.last.Load()) }

func (f *fakeActivity) set(t time.Time) { f.last.Store(t.UnixNano()) }

type persona models.Persona

func (p persona) Persona(ctx context.Context) models.Persona { return models.Persona(p) }

func newTestService(t *testing.T, activity *fakeActivity) (*Service, *chatlog.Store) {
	t.Helper()
	logger := arbor.NewLogger()
	log := chatlog.NewStore(filepath.Join(t.TempDir(), "chat_log.json"), logger)
	s := NewService(time.Minute, activity, log, persona{UserName: "Sam"}, nil, logger)
	s.pick = func(n int) int { return 0 }
	return s, log
}

func TestTick(t *testing.T) {
	now := time.Now()

	t.Run("quiet long enough", func(t *testing.T) {
		activity := &fakeActivity{}
		activity.set(now.Add(-2 * time.Minute))
		s, log := newTestService(t, activity)

		assert.True(t, s.Tick(context.Background(), now))

		turns := log.Load()
		require.Len(t, turns, 1)
		assert.Equal(t, models.RoleAssistant, turns[0].Role)
		assert.Equal(t, "Hey Sam, anything interesting happen today?", turns[0].Content)
		assert.False(t, turns[0].Learned)
	})

	t.Run("recent activity", func(t *testing.T) {
		activity := &fakeActivity{}
		activity.set(now.Add(-30 * time.Second))
		s, log := newTestService(t, activity)

		assert.False(t, s.Tick(context.Background(), now))
		assert.Empty(t, log.Load())
	})

	t.Run("busy", func(t *testing.T) {
		activity := &fakeActivity{}
		activity.set(now.Add(-time.Hour))
		activity.busy.Store(true)
		s, log := newTestService(t, activity)

		assert.False(t, s.Tick(context.Background(), now))
		assert.Empty(t, log.Load())
	})

	t.Run("waits a full interval between messages", func(t *testing.T) {
		activity := &fakeActivity{}
		activity.set(now.Add(-time.Hour))
		s, log := newTestService(t, activity)

		require.True(t, s.Tick(context.Background(), time.Now()))
		assert.False(t, s.Tick(context.Background(), time.Now().Add(30*time.Second)))
		assert.True(t, s.Tick(context.Background(), time.Now().Add(2*time.Minute)))
		assert.Len(t, log.Load(), 2)
	})
}

func TestNudge_DefaultUserNameAndEvent(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	defer eventService.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, eventService.Subscribe(interfaces.EventProactiveMessage, func(ctx context.Context, event interfaces.Event) error {
		received <- event
		return nil
	}))

	log := chatlog.NewStore(filepath.Join(t.TempDir(), "chat_log.json"), logger)
	s := NewService(time.Minute, &fakeActivity{}, log, persona{}, eventService, logger)
	s.pick = func(n int) int { return 3 }

	turn, err := s.Nudge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "How's the weather over there, friend?", turn.Content)

	select {
	case event := <-received:
		assert.Equal(t, turn, event.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("proactive message was not published")
	}
}

func TestStartStop(t *testing.T) {
	activity := &fakeActivity{}
	activity.set(time.Now())
	s, _ := newTestService(t, activity)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	s.Stop()
	s.Stop()
}

func TestIntervalFromConfig(t *testing.T) {
	assert.Equal(t, 90*time.Second, IntervalFromConfig(common.ProactiveConfig{Interval: "90s"}))
	assert.Equal(t, DefaultInterval, IntervalFromConfig(common.ProactiveConfig{Interval: "soon"}))
	assert.Equal(t, time.Minute, NewService(time.Minute, &fakeActivity{}, nil, nil, nil, arbor.NewLogger()).Interval())
}

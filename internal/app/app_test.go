package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/services/events"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := common.NewDefaultConfig()
	cfg.LLM.Mode = "mock"
	cfg.Storage.Badger.Path = filepath.Join(dir, "knowledge")
	cfg.Storage.ChatLogPath = filepath.Join(dir, "chat_log.json")
	cfg.Storage.PromptConfig = filepath.Join(dir, "prompt_config.json")
	cfg.Proactive.Enabled = false
	cfg.Watch.Enabled = false
	cfg.Watch.Dir = filepath.Join(dir, "inbox")
	cfg.Watch.Debounce = "50ms"
	return cfg
}

func TestNew_WiresConversationCore(t *testing.T) {
	application, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	assert.Equal(t, interfaces.LLMModeMock, application.LLMService.GetMode())
	assert.NotNil(t, application.StorageManager.KnowledgeStorage())
	assert.NotNil(t, application.Engine)
	assert.NotNil(t, application.WSHandler)
	assert.Nil(t, application.ProactiveService)
	assert.Nil(t, application.WatcherService)

	require.NoError(t, application.StartBackground())
}

func TestNew_SubscribesEachListenerOnce(t *testing.T) {
	application, err := New(testConfig(t), arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	eventService, ok := application.EventService.(*events.Service)
	require.True(t, ok)
	for _, eventType := range events.AllEventTypes {
		// debug logger and WebSocket fan-out
		assert.Equal(t, 2, eventService.SubscriberCount(eventType), string(eventType))
	}
}

func TestNew_InvalidMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Mode = "telepathy"

	_, err := New(cfg, arbor.NewLogger())
	assert.Error(t, err)
}

func TestStartBackground_WatchFolderLearns(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Enabled = true
	cfg.Watch.Include = []string{"**/*.txt"}
	cfg.Proactive.Enabled = true
	cfg.Proactive.Interval = "1h"

	application, err := New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	defer application.Close()

	require.NotNil(t, application.ProactiveService)
	require.NoError(t, application.StartBackground())

	doc := filepath.Join(cfg.Watch.Dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("The kettle is in the left cupboard."), 0644))

	ctx := context.Background()
	assert.Eventually(t, func() bool {
		stats, err := application.Engine.LearningStats(ctx)
		return err == nil && stats.DocCount == 1
	}, 5*time.Second, 50*time.Millisecond)
}

package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db        *BadgerDB
	knowledge *KnowledgeStorage
	kv        *KVStorage
	logger    arbor.ILogger
}

// NewManager opens the knowledge store directory and the settings store inside it.
// The knowledge index is attached later with AttachEmbedder because the embedder's
// API keys may live in the settings store.
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// AttachEmbedder creates the knowledge index. embedder is used for both ingestion and queries.
func (m *Manager) AttachEmbedder(embedder interfaces.EmbeddingService) error {
	if embedder == nil {
		return fmt.Errorf("embedding service is required")
	}
	if m.knowledge != nil {
		return fmt.Errorf("knowledge storage already attached")
	}
	m.knowledge = NewKnowledgeStorage(m.db, embedder, m.logger)
	m.logger.Debug().Str("model", embedder.ModelName()).Msg("Knowledge storage attached")
	return nil
}

var _ interfaces.StorageManager = (*Manager)(nil)

// KnowledgeStorage returns the vector index of learned passages, nil before AttachEmbedder
func (m *Manager) KnowledgeStorage() interfaces.KnowledgeStorage {
	if m.knowledge == nil {
		return nil
	}
	return m.knowledge
}

// KeyValueStorage returns the settings/API key store
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing Badger storage manager")
	return m.db.Close()
}

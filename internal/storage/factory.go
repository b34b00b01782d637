package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/storage/badger"
)

// NewStorageManager opens the Badger-backed knowledge store named in config
func NewStorageManager(logger arbor.ILogger, config *common.Config) (*badger.Manager, error) {
	if config.Storage.Badger.Path == "" {
		return nil, fmt.Errorf("storage.badger.path is required")
	}
	return badger.NewManager(logger, &config.Storage.Badger)
}

package interfaces

// StorageManager owns the knowledge store directory and the storages inside it
type StorageManager interface {
	KnowledgeStorage() KnowledgeStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}

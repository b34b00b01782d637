package badger

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// insertBatchSize bounds the entries written per badger transaction
const insertBatchSize = 64

// DefaultSearchK is used when Search is called with k <= 0
const DefaultSearchK = 3

// KnowledgeStorage implements KnowledgeStorage over badgerhold with brute-force cosine search
type KnowledgeStorage struct {
	db       *BadgerDB
	embedder interfaces.EmbeddingService
	logger   arbor.ILogger
}

// NewKnowledgeStorage creates a knowledge store that embeds with embedder
func NewKnowledgeStorage(db *BadgerDB, embedder interfaces.EmbeddingService, logger arbor.ILogger) *KnowledgeStorage {
	return &KnowledgeStorage{
		db:       db,
		embedder: embedder,
		logger:   logger,
	}
}

var _ interfaces.KnowledgeStorage = (*KnowledgeStorage)(nil)

// Add embeds every passage, inserts the entries and syncs the database.
// When Add returns nil the passages are on disk.
func (s *KnowledgeStorage) Add(ctx context.Context, passages []models.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	entries := make([]*models.KnowledgeEntry, 0, len(passages))
	now := time.Now()
	for i, p := range passages {
		if err := ctx.Err(); err != nil {
			return err
		}

		embedding, err := s.embedder.Embed(ctx, p.Text)
		if err != nil {
			return fmt.Errorf("failed to embed passage %d of %d: %w", i+1, len(passages), err)
		}

		entries = append(entries, &models.KnowledgeEntry{
			ID:         common.NewEntryID(),
			Text:       p.Text,
			Embedding:  embedding,
			Metadata:   copyMetadata(p.Metadata),
			Source:     p.Source(),
			EmbedModel: s.embedder.ModelName(),
			CreatedAt:  now,
		})
	}

	store := s.db.Store()
	for start := 0; start < len(entries); start += insertBatchSize {
		end := min(start+insertBatchSize, len(entries))
		batch := entries[start:end]

		err := s.db.Badger().Update(func(tx *badger.Txn) error {
			for _, entry := range batch {
				if err := store.TxInsert(tx, entry.ID, entry); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to insert knowledge entries: %w", err)
		}
	}

	if err := s.db.Sync(); err != nil {
		return err
	}

	s.logger.Debug().
		Int("passages", len(entries)).
		Str("embed_model", s.embedder.ModelName()).
		Msg("Knowledge entries persisted")

	return nil
}

// Search embeds query and returns the k most similar passages by cosine similarity
func (s *KnowledgeStorage) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = DefaultSearchK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var entries []models.KnowledgeEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to load knowledge entries: %w", err)
	}

	results := make([]models.SearchResult, 0, len(entries))
	skipped := 0
	for i := range entries {
		score, ok := cosineSimilarity(queryVec, entries[i].Embedding)
		if !ok {
			skipped++
			continue
		}
		results = append(results, models.SearchResult{
			Passage: entries[i].Passage(),
			Score:   score,
		})
	}

	if skipped > 0 {
		s.logger.Warn().
			Int("skipped", skipped).
			Int("query_dimension", len(queryVec)).
			Str("embed_model", s.embedder.ModelName()).
			Msg("Skipped knowledge entries with mismatched embedding dimension")
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// All returns every stored passage, oldest first
func (s *KnowledgeStorage) All(ctx context.Context) (*models.KnowledgeSnapshot, error) {
	var entries []models.KnowledgeEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to scan knowledge entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	snapshot := &models.KnowledgeSnapshot{
		Metadatas: make([]map[string]string, 0, len(entries)),
		Documents: make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		snapshot.Metadatas = append(snapshot.Metadatas, e.Metadata)
		snapshot.Documents = append(snapshot.Documents, e.Text)
	}
	return snapshot, nil
}

// Count returns the number of stored entries
func (s *KnowledgeStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.KnowledgeEntry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count knowledge entries: %w", err)
	}
	return int(count), nil
}

// Sources returns the distinct, non-empty source paths, sorted
func (s *KnowledgeStorage) Sources(ctx context.Context) ([]string, error) {
	var entries []models.KnowledgeEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Source").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to find knowledge sources: %w", err)
	}

	seen := make(map[string]struct{})
	sources := make([]string, 0)
	for _, e := range entries {
		if _, ok := seen[e.Source]; ok {
			continue
		}
		seen[e.Source] = struct{}{}
		sources = append(sources, e.Source)
	}
	sort.Strings(sources)
	return sources, nil
}

// SizeOnDisk sums the disk usage of all files under the store directory.
// Badger preallocates sparse value log and memtable files, so allocated
// blocks are counted rather than apparent sizes where the platform exposes them.
func (s *KnowledgeStorage) SizeOnDisk() (int64, error) {
	return directorySize(s.db.Path())
}

func directorySize(root string) (int64, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Badger may rotate files while we walk
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		total += diskUsage(info)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure knowledge store size: %w", err)
	}
	return total, nil
}

// cosineSimilarity returns false when the vectors cannot be compared
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, true
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

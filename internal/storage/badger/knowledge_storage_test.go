package badger

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// wordHashEmbedder is a bag-of-words embedder: texts sharing words point the same way
type wordHashEmbedder struct {
	dim   int
	fail  bool
	calls int
}

func (e *wordHashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedding backend down")
	}
	vec := make([]float32, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,?!")))
		vec[int(h.Sum32())%e.dim] += 1
	}
	return vec, nil
}

func (e *wordHashEmbedder) ModelName() string { return "word-hash" }
func (e *wordHashEmbedder) Dimension() int    { return e.dim }

var _ interfaces.EmbeddingService = (*wordHashEmbedder)(nil)

func newTestManager(t *testing.T, embedder interfaces.EmbeddingService) *Manager {
	t.Helper()
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "knowledge")}
	manager, err := NewManager(arbor.NewLogger(), config)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	require.NoError(t, manager.AttachEmbedder(embedder))
	return manager
}

func passage(text, source string) models.Passage {
	meta := map[string]string{models.MetadataKind: models.KindDocument}
	if source != "" {
		meta[models.MetadataSource] = source
	}
	return models.Passage{Text: text, Metadata: meta}
}

func TestKnowledgeStorage_AddAndSearch(t *testing.T) {
	embedder := &wordHashEmbedder{dim: 64}
	store := newTestManager(t, embedder).KnowledgeStorage()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []models.Passage{
		passage("Cats are small furry pets that purr", "/docs/cats.txt"),
		passage("Rockets burn fuel to reach orbit", "/docs/space.txt"),
		passage("Bread needs flour water yeast and salt", "/docs/bread.txt"),
		passage("user: I love my cat", ""),
	}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	results, err := store.Search(ctx, "how do rockets reach orbit", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Rockets burn fuel to reach orbit", results[0].Text)
	assert.Equal(t, "/docs/space.txt", results[0].Source())
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestKnowledgeStorage_SearchDefaultK(t *testing.T) {
	store := newTestManager(t, &wordHashEmbedder{dim: 32}).KnowledgeStorage()
	ctx := context.Background()

	var passages []models.Passage
	for _, w := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		passages = append(passages, passage(w+" passage", ""))
	}
	require.NoError(t, store.Add(ctx, passages))

	results, err := store.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchK)
}

func TestKnowledgeStorage_SearchEmptyStore(t *testing.T) {
	store := newTestManager(t, &wordHashEmbedder{dim: 16}).KnowledgeStorage()

	results, err := store.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestKnowledgeStorage_AddEmbeddingFailure(t *testing.T) {
	embedder := &wordHashEmbedder{dim: 16, fail: true}
	store := newTestManager(t, embedder).KnowledgeStorage()
	ctx := context.Background()

	err := store.Add(ctx, []models.Passage{passage("some text", "/a.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed passage 1 of 1")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is written when embedding fails")
}

func TestKnowledgeStorage_AddLargeBatch(t *testing.T) {
	store := newTestManager(t, &wordHashEmbedder{dim: 8}).KnowledgeStorage()
	ctx := context.Background()

	passages := make([]models.Passage, insertBatchSize*2+5)
	for i := range passages {
		passages[i] = passage("chunk text", "/big.pdf")
	}
	require.NoError(t, store.Add(ctx, passages))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(passages), count)
}

func TestKnowledgeStorage_AllAndSources(t *testing.T) {
	store := newTestManager(t, &wordHashEmbedder{dim: 16}).KnowledgeStorage()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, []models.Passage{
		passage("first chunk", "/docs/a.pdf"),
		passage("second chunk", "/docs/a.pdf"),
		passage("third chunk", "/docs/b.txt"),
		passage("assistant: hello", ""),
	}))

	snapshot, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, snapshot.Documents, 4)
	assert.Len(t, snapshot.Metadatas, 4)

	sources, err := store.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/a.pdf", "/docs/b.txt"}, sources)
}

func TestKnowledgeStorage_SearchSkipsMismatchedDimensions(t *testing.T) {
	manager := newTestManager(t, &wordHashEmbedder{dim: 16})
	ctx := context.Background()
	require.NoError(t, manager.KnowledgeStorage().Add(ctx, []models.Passage{passage("old model text", "")}))

	// Same store, new embedding model with a different dimension
	upgraded := NewKnowledgeStorage(manager.db, &wordHashEmbedder{dim: 32}, arbor.NewLogger())
	require.NoError(t, upgraded.Add(ctx, []models.Passage{passage("new model text", "")}))

	results, err := upgraded.Search(ctx, "model text", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "new model text", results[0].Text)
}

func TestDirectorySize(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	size, err := directorySize(missing)
	require.NoError(t, err)
	assert.Zero(t, size)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 8192), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.bin"), make([]byte, 4096), 0644))

	size, err = directorySize(dir)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestCosineSimilarity(t *testing.T) {
	score, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	assert.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, ok = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 0.0, score, 1e-9)

	_, ok = cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	assert.False(t, ok)
}

func TestKVStorage_SetGetDelete(t *testing.T) {
	kv := newTestManager(t, &wordHashEmbedder{dim: 4}).KeyValueStorage()
	ctx := context.Background()

	_, err := kv.Get(ctx, "persona.user_name")
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "Persona.User_Name", "Alex", "display name"))
	value, err := kv.Get(ctx, "persona.user_name")
	require.NoError(t, err)
	assert.Equal(t, "Alex", value)

	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"persona.user_name": "Alex"}, all)

	require.NoError(t, kv.Delete(ctx, "persona.user_name"))
	assert.ErrorIs(t, kv.Delete(ctx, "persona.user_name"), interfaces.ErrKeyNotFound)
}

func TestManager_AttachEmbedder(t *testing.T) {
	config := &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "knowledge")}
	manager, err := NewManager(arbor.NewLogger(), config)
	require.NoError(t, err)
	defer manager.Close()

	assert.Nil(t, manager.KnowledgeStorage())
	assert.NotNil(t, manager.KeyValueStorage())

	assert.Error(t, manager.AttachEmbedder(nil))
	require.NoError(t, manager.AttachEmbedder(&wordHashEmbedder{dim: 8}))
	assert.NotNil(t, manager.KnowledgeStorage())
	assert.Error(t, manager.AttachEmbedder(&wordHashEmbedder{dim: 8}))
}

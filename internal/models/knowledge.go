package models

import (
	"time"
)

// Metadata keys recorded on passages
const (
	MetadataSource = "source" // absolute path of the learned file; absent for chat history
	MetadataPage   = "page"   // 1-based PDF page number
	MetadataKind   = "kind"   // KindDocument or KindHistory
	MetadataTitle  = "title"  // document title when the loader can find one
)

// Passage kinds
const (
	KindDocument = "document"
	KindHistory  = "history"
)

// Passage is a bounded slice of source text, the unit of retrieval.
// Produced by the chunker, immutable once stored.
type Passage struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Source returns the source path of the passage, empty for chat history
func (p Passage) Source() string {
	return p.Metadata[MetadataSource]
}

// KnowledgeEntry is a stored passage with its embedding.
// Entries are only ever inserted, never updated.
type KnowledgeEntry struct {
	ID         string            `json:"id" badgerhold:"key"` // kn_{uuid}
	Text       string            `json:"text"`
	Embedding  []float32         `json:"embedding"`
	Metadata   map[string]string `json:"metadata"`
	Source     string            `json:"source" badgerhold:"index"`
	EmbedModel string            `json:"embed_model"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Passage converts the entry back to the passage it was created from
func (e *KnowledgeEntry) Passage() Passage {
	return Passage{Text: e.Text, Metadata: e.Metadata}
}

// KnowledgeSnapshot is the result of a full scan of the store.
// Metadatas[i] belongs to Documents[i].
type KnowledgeSnapshot struct {
	Metadatas []map[string]string `json:"metadatas"`
	Documents []string            `json:"documents"`
}

// SearchResult is a retrieved passage with its similarity score
type SearchResult struct {
	Passage
	Score float64 `json:"score"`
}

// Package chunker turns documents and raw text into overlapping passages.
package chunker

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Service splits text into fixed-size rune windows.
// Consecutive chunks share exactly overlap runes; the final chunk may be shorter.
type Service struct {
	chunkSize int
	overlap   int
	loaders   map[string]interfaces.DocumentLoader
	logger    arbor.ILogger
}

// NewService creates a chunker with the PDF, text, Markdown and HTML loaders registered.
// Invalid sizes fall back to the defaults.
func NewService(chunkSize, overlap int, logger arbor.ILogger) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = min(DefaultChunkOverlap, chunkSize/10)
	}

	s := &Service{
		chunkSize: chunkSize,
		overlap:   overlap,
		loaders:   make(map[string]interfaces.DocumentLoader),
		logger:    logger,
	}

	s.Register(NewPDFLoader(logger))
	s.Register(NewTextLoader())
	s.Register(NewMarkdownLoader())
	s.Register(NewHTMLLoader())

	return s
}

var _ interfaces.Chunker = (*Service)(nil)

// Register adds or replaces the loader for each of its extensions
func (s *Service) Register(loader interfaces.DocumentLoader) {
	for _, ext := range loader.Extensions() {
		s.loaders[strings.ToLower(ext)] = loader
	}
}

// Supports reports whether a loader exists for the file's extension
func (s *Service) Supports(path string) bool {
	_, ok := s.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Split cuts text into passages, each carrying a copy of metadata
func (s *Service) Split(text string, metadata map[string]string) []models.Passage {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.chunkSize - s.overlap
	passages := make([]models.Passage, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := min(start+s.chunkSize, len(runes))
		chunk := runes[start:end]

		if !isBlank(chunk) {
			passages = append(passages, models.Passage{
				Text:     string(chunk),
				Metadata: cloneMetadata(metadata),
			})
		}

		if end == len(runes) {
			break
		}
	}

	return passages
}

// SplitDocument loads path with the loader for its extension and splits every section.
// Unsupported types and load failures produce no passages.
func (s *Service) SplitDocument(ctx context.Context, path string) []models.Passage {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := s.loaders[ext]
	if !ok {
		s.logger.Info().
			Str("path", path).
			Str("extension", ext).
			Msg("Unsupported document type, nothing to learn")
		return nil
	}

	sections, err := loader.Load(ctx, path)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("path", path).
			Msg("Failed to load document")
		return nil
	}

	source := path
	if abs, err := filepath.Abs(path); err == nil {
		source = abs
	}

	var passages []models.Passage
	for _, section := range sections {
		meta := cloneMetadata(section.Metadata)
		meta[models.MetadataSource] = source
		meta[models.MetadataKind] = models.KindDocument
		passages = append(passages, s.Split(section.Text, meta)...)
	}

	s.logger.Debug().
		Str("path", path).
		Int("sections", len(sections)).
		Int("passages", len(passages)).
		Msg("Document split into passages")

	return passages
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func cloneMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

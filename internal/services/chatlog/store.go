// Package chatlog persists the chat log as a single pretty-printed JSON array.
package chatlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// DefaultPageSize is used when Page is called with a non-positive size
const DefaultPageSize = 20

// Store is a whole-file JSON chat log.
// Every write rewrites the file through a temp file and rename.
type Store struct {
	path   string
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewStore creates a store for the log at path. The file is created on first write.
func NewStore(path string, logger arbor.ILogger) *Store {
	return &Store{
		path:   path,
		logger: logger,
	}
}

var _ interfaces.ChatLogStore = (*Store)(nil)

// Path returns the log file location
func (s *Store) Path() string {
	return s.path
}

// Load returns every turn in chronological order
func (s *Store) Load() []models.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns, _ := s.read()
	return turns
}

// Exists reports whether the log file is present and well-formed
func (s *Store) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.read()
	return err == nil
}

// Append adds turns to the end of the log
func (s *Store) Append(turns ...models.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		// A corrupt log is replaced rather than blocking the conversation
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Chat log unreadable, starting a new log")
	}

	return s.write(append(existing, turns...))
}

// MarkLearned sets learned=true on the turns at indices.
// Indices stay valid across appends since turns are never reordered or removed.
func (s *Store) MarkLearned(indices []int) error {
	if len(indices) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns, err := s.read()
	if err != nil {
		return fmt.Errorf("failed to load chat log: %w", err)
	}

	for _, i := range indices {
		if i < 0 || i >= len(turns) {
			return fmt.Errorf("chat log index %d out of range (%d turns)", i, len(turns))
		}
		turns[i].Learned = true
	}

	return s.write(turns)
}

// Recent returns the last n turns in chronological order
func (s *Store) Recent(n int) []models.ChatTurn {
	turns := s.Load()
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns
}

// Page returns one page of turns, newest first. page is 0-indexed.
func (s *Store) Page(page, pageSize int) models.ChatLogPage {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	turns := s.Load()
	total := len(turns)
	totalPages := (total + pageSize - 1) / pageSize

	result := models.ChatLogPage{
		Turns:      []models.ChatTurn{},
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}

	// Index 0 of the newest-first view is the last turn of the log
	start := page * pageSize
	if start >= total {
		return result
	}
	end := min(start+pageSize, total)
	for i := start; i < end; i++ {
		result.Turns = append(result.Turns, turns[total-1-i])
	}
	return result
}

// read must be called with mu held
func (s *Store) read() ([]models.ChatTurn, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return []models.ChatTurn{}, err
	}

	var turns []models.ChatTurn
	if err := json.Unmarshal(data, &turns); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Chat log is corrupt, treating as empty")
		return []models.ChatTurn{}, fmt.Errorf("failed to decode chat log: %w", err)
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	return turns, nil
}

// write must be called with mu held
func (s *Store) write(turns []models.ChatTurn) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(turns); err != nil {
		return fmt.Errorf("failed to encode chat log: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create chat log directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp chat log: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write chat log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync chat log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close chat log: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace chat log: %w", err)
	}
	return nil
}

// Package watcher learns documents dropped into a watched folder.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/models"
)

// DefaultDebounce is the quiet time after the last write before a file is learned
const DefaultDebounce = 2 * time.Second

// Learner ingests one document
type Learner interface {
	LearnDocument(ctx context.Context, path string) models.Status
}

// Service watches a directory tree and learns matching files once writes settle
type Service struct {
	dir      string
	include  []string
	debounce time.Duration
	learner  Learner
	logger   arbor.ILogger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewService creates a watcher from the [watch] config section
func NewService(cfg common.WatchConfig, learner Learner, logger arbor.ILogger) (*Service, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch dir: %w", err)
	}

	include := cfg.Include
	if len(include) == 0 {
		include = []string{"**/*"}
	}
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid watch include pattern %q", pattern)
		}
	}

	return &Service{
		dir:      dir,
		include:  include,
		debounce: common.ParseDurationOr(cfg.Debounce, DefaultDebounce),
		learner:  learner,
		logger:   logger,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Dir returns the absolute watched directory
func (s *Service) Dir() string {
	return s.dir
}

// Matches reports whether path is inside the watched dir and matches an include pattern
func (s *Service) Matches(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	for _, pattern := range s.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// Start creates the directory if needed and begins watching it and its subdirectories
func (s *Service) Start(ctx context.Context) error {
	if s.watcher != nil {
		return fmt.Errorf("watcher already running")
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := addRecursive(watcher, s.dir); err != nil {
		watcher.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.watcher = watcher
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx)

	s.logger.Info().
		Str("dir", s.dir).
		Strs("include", s.include).
		Dur("debounce", s.debounce).
		Msg("Watch folder started")
	return nil
}

// Stop ends watching and drops pending files
func (s *Service) Stop() error {
	if s.watcher == nil {
		return nil
	}
	s.cancel()
	err := s.watcher.Close()
	<-s.done
	s.watcher = nil

	s.mu.Lock()
	for path, timer := range s.timers {
		timer.Stop()
		delete(s.timers, path)
	}
	s.mu.Unlock()

	s.logger.Info().Str("dir", s.dir).Msg("Watch folder stopped")
	return err
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ctx, event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn().Err(err).Msg("Watch folder error")
		}
	}
}

func (s *Service) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := addRecursive(s.watcher, event.Name); err != nil {
				s.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
		}
		return
	}

	if !s.Matches(event.Name) {
		s.logger.Trace().Str("path", event.Name).Msg("Ignoring file outside include patterns")
		return
	}
	s.schedule(ctx, event.Name)
}

// schedule learns path once no further events arrive for the debounce period
func (s *Service) schedule(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[path]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if s.timers[path] == timer {
			delete(s.timers, path)
		}
		s.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		common.SafeGo(s.logger, "watch:learn", func() {
			status := s.learner.LearnDocument(ctx, path)
			s.logger.Info().
				Str("path", path).
				Str("result", string(status.Kind)).
				Msg(status.Message)
		})
	})
	s.timers[path] = timer
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

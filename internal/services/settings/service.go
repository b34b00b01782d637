// Package settings resolves the companion's persona from config and the KV store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

// KV keys that override the [persona] config section
const (
	KeyAIName   = "persona.ai_name"
	KeyUserName = "persona.user_name"
	KeyTone     = "persona.tone"
)

// Update holds persona fields to change; nil fields are left alone
type Update struct {
	AIName   *string `json:"ai_name,omitempty" validate:"omitnil,min=1,max=64"`
	UserName *string `json:"user_name,omitempty" validate:"omitnil,min=1,max=64"`
	Tone     *string `json:"tone,omitempty" validate:"omitnil,oneof=Friendly Polite Concise"`
}

// Service provides the persona with KV overrides layered over config
type Service struct {
	storage  interfaces.KeyValueStorage
	defaults common.PersonaConfig
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a settings service. storage may be nil, in which case only config is used.
func NewService(storage interfaces.KeyValueStorage, defaults common.PersonaConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage:  storage,
		defaults: defaults,
		validate: validator.New(),
		logger:   logger,
	}
}

var _ interfaces.PersonaProvider = (*Service)(nil)

// Persona returns the current persona. Storage errors fall back to config values.
func (s *Service) Persona(ctx context.Context) models.Persona {
	return models.Persona{
		AIName:   s.lookup(ctx, KeyAIName, s.defaults.AIName),
		UserName: s.lookup(ctx, KeyUserName, s.defaults.UserName),
		Tone:     s.lookup(ctx, KeyTone, s.defaults.Tone),
	}
}

func (s *Service) lookup(ctx context.Context, key, fallback string) string {
	if s.storage == nil {
		return fallback
	}
	value, err := s.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrKeyNotFound) {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to read setting, using config value")
		}
		return fallback
	}
	return value
}

// Update validates and stores persona overrides
func (s *Service) Update(ctx context.Context, update Update) (models.Persona, error) {
	if s.storage == nil {
		return models.Persona{}, fmt.Errorf("settings storage is not available")
	}

	trim := func(v *string) {
		if v != nil {
			*v = strings.TrimSpace(*v)
		}
	}
	trim(update.AIName)
	trim(update.UserName)
	trim(update.Tone)

	if err := s.validate.Struct(update); err != nil {
		return models.Persona{}, fmt.Errorf("invalid settings: %w", err)
	}

	changes := []struct {
		key         string
		value       *string
		description string
	}{
		{KeyAIName, update.AIName, "Companion display name"},
		{KeyUserName, update.UserName, "Name the companion uses for the user"},
		{KeyTone, update.Tone, "Personality tone preset"},
	}
	for _, change := range changes {
		if change.value == nil {
			continue
		}
		if err := s.storage.Set(ctx, change.key, *change.value, change.description); err != nil {
			s.logger.Error().Err(err).Str("key", change.key).Msg("Failed to store setting")
			return models.Persona{}, fmt.Errorf("failed to store %s: %w", change.key, err)
		}
		s.logger.Info().Str("key", change.key).Msg("Stored setting")
	}

	return s.Persona(ctx), nil
}

// Reset removes every persona override, restoring config values
func (s *Service) Reset(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	for _, key := range []string{KeyAIName, KeyUserName, KeyTone} {
		if err := s.storage.Delete(ctx, key); err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	s.logger.Info().Msg("Persona settings reset to config")
	return nil
}

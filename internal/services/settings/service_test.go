package settings

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pal/internal/common"
	"github.com/ternarybob/pal/internal/interfaces"
	"github.com/ternarybob/pal/internal/models"
)

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: make(map[string]string)}
}

func (m *memoryKV) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", interfaces.ErrKeyNotFound
	}
	return v, nil
}

func (m *memoryKV) Set(ctx context.Context, key, value, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return interfaces.ErrKeyNotFound
	}
	delete(m.values, key)
	return nil
}

func (m *memoryKV) GetAll(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

var defaults = common.PersonaConfig{AIName: "Pal", UserName: "Any", Tone: "Friendly"}

func strPtr(s string) *string { return &s }

func TestPersona_ConfigDefaults(t *testing.T) {
	service := NewService(nil, defaults, arbor.NewLogger())
	assert.Equal(t, models.Persona{AIName: "Pal", UserName: "Any", Tone: "Friendly"}, service.Persona(context.Background()))
}

func TestUpdate_OverridesConfig(t *testing.T) {
	ctx := context.Background()
	kv := newMemoryKV()
	service := NewService(kv, defaults, arbor.NewLogger())

	persona, err := service.Update(ctx, Update{UserName: strPtr("  Sam "), Tone: strPtr("Concise")})
	require.NoError(t, err)

	assert.Equal(t, "Pal", persona.AIName)
	assert.Equal(t, "Sam", persona.UserName)
	assert.Equal(t, "Concise", persona.Tone)
	assert.Equal(t, "Sam", kv.values[KeyUserName])
	assert.NotContains(t, kv.values, KeyAIName)
}

func TestUpdate_Validation(t *testing.T) {
	service := NewService(newMemoryKV(), defaults, arbor.NewLogger())

	tests := []struct {
		name   string
		update Update
	}{
		{"unknown tone", Update{Tone: strPtr("Sarcastic")}},
		{"blank name", Update{AIName: strPtr("   ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Update(context.Background(), tt.update)
			assert.Error(t, err)
		})
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	kv := newMemoryKV()
	service := NewService(kv, defaults, arbor.NewLogger())

	_, err := service.Update(ctx, Update{AIName: strPtr("Buddy")})
	require.NoError(t, err)
	require.NoError(t, service.Reset(ctx))

	assert.Equal(t, "Pal", service.Persona(ctx).AIName)
}

func TestPersona_StorageErrorFallsBack(t *testing.T) {
	kv := newMemoryKV()
	kv.getErr = errors.New("db closed")
	service := NewService(kv, defaults, arbor.NewLogger())

	assert.Equal(t, "Any", service.Persona(context.Background()).UserName)
}

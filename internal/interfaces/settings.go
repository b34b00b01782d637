package interfaces

import (
	"context"

	"github.com/ternarybob/pal/internal/models"
)

// PersonaProvider resolves the persona in effect for the next prompt
type PersonaProvider interface {
	Persona(ctx context.Context) models.Persona
}

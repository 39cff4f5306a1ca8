package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no application has the requested ID.
var ErrNotFound = errors.New("application not found")

// Application is the externally owned record tasks hang off.
// TenantID is authoritative; tasks copy it at creation.
type Application struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Lookup is the capability the task engine depends on.
type Lookup interface {
	// Get returns the application or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (*Application, error)
}

// Store is the contract for application persistence.
type Store interface {
	Lookup

	// Register creates an application. An empty ID gets a fresh UUID.
	Register(ctx context.Context, a *Application) (*Application, error)

	// List returns applications, optionally limited to one tenant.
	List(ctx context.Context, tenantID string) ([]Application, error)

	// EnsureTable creates the applications table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

// newID returns id in canonical UUID form, or a fresh v7 id when id is
// empty.
func newID(id string) (string, error) {
	if id == "" {
		return uuid.Must(uuid.NewV7()).String(), nil
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("application id %q: %w", id, err)
	}
	return u.String(), nil
}

// lookupID canonicalizes id for a read. An id that is not a UUID cannot
// name any application.
func lookupID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("get application %s: %w", id, ErrNotFound)
	}
	return u.String(), nil
}

package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore keeps applications in memory.
type MemStore struct {
	mu   sync.RWMutex
	apps map[string]Application
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{apps: make(map[string]Application)}
}

// EnsureTable is a no-op.
func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Register stores a copy of a.
func (s *MemStore) Register(ctx context.Context, a *Application) (*Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := *a
	id, err := newID(out.ID)
	if err != nil {
		return nil, err
	}
	out.ID = id
	out.CreatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[out.ID]; exists {
		return nil, fmt.Errorf("register application %s: already exists", out.ID)
	}
	s.apps[out.ID] = out
	return &out, nil
}

// Get returns a copy of the application.
func (s *MemStore) Get(ctx context.Context, id string) (*Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := lookupID(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return nil, fmt.Errorf("get application %s: %w", id, ErrNotFound)
	}
	return &a, nil
}

// List returns applications ordered by creation time.
func (s *MemStore) List(ctx context.Context, tenantID string) ([]Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var apps []Application
	for _, a := range s.apps {
		if tenantID == "" || a.TenantID == tenantID {
			apps = append(apps, a)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.Before(apps[j].CreatedAt) })
	return apps, nil
}

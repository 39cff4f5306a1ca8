package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore keeps tasks in memory. Records are copied in and out.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[string]Task
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[string]Task)}
}

// EnsureTable is a no-op.
func (s *MemStore) EnsureTable(context.Context) error { return nil }

// Insert stores a copy of t.
func (s *MemStore) Insert(ctx context.Context, t *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("insert task %s: duplicate id", t.ID)
	}
	s.tasks[t.ID] = *t
	return nil
}

// Get returns a copy of the task.
func (s *MemStore) Get(ctx context.Context, id string) (*Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

// DueBetween returns tasks due in [start, end) not in exclude.
func (s *MemStore) DueBetween(ctx context.Context, start, end time.Time, exclude []Status) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, t := range s.tasks {
		if t.DueAt.Before(start) || !t.DueAt.Before(end) || excluded(t.Status, exclude) {
			continue
		}
		out = append(out, t)
	}
	sortByDue(out)
	return out, nil
}

// OpenDueTimes returns due times of tasks that are not completed.
func (s *MemStore) OpenDueTimes(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []time.Time
	for _, t := range s.tasks {
		if t.Status != StatusCompleted {
			out = append(out, t.DueAt)
		}
	}
	return out, nil
}

// Complete marks the task completed unless it already is.
func (s *MemStore) Complete(ctx context.Context, id string, at time.Time) (*Task, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, false, fmt.Errorf("complete task %s: %w", id, ErrNotFound)
	}
	if t.Status == StatusCompleted {
		return &t, false, nil
	}
	t.Status = StatusCompleted
	t.UpdatedAt = at
	s.tasks[id] = t
	return &t, true, nil
}

// Counts returns total and non-completed counts.
func (s *MemStore) Counts(ctx context.Context) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	open := 0
	for _, t := range s.tasks {
		if t.Status != StatusCompleted {
			open++
		}
	}
	return len(s.tasks), open, nil
}

func excluded(st Status, exclude []Status) bool {
	for _, e := range exclude {
		if st == e {
			return true
		}
	}
	return false
}

func sortByDue(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].DueAt.Equal(tasks[j].DueAt) {
			return tasks[i].DueAt.Before(tasks[j].DueAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

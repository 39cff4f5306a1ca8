// Package dashboard keeps the working set a follow-up dashboard renders:
// the selected day, that day's open tasks and the days that still have
// work on them.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"followups/pkg/calendar"
	"followups/pkg/task"
)

// Engine is the part of task.Service the board uses.
type Engine interface {
	ListForDay(ctx context.Context, day calendar.Day, exclude ...task.Status) ([]task.Task, error)
	OpenDates(ctx context.Context) (calendar.DateSet, error)
	Complete(ctx context.Context, id string) (*task.Task, error)
	Today() calendar.Day
}

// State is a point-in-time copy of the board.
type State struct {
	Day       calendar.Day    `json:"day"`
	Tasks     []task.Task     `json:"tasks"`
	OpenDates []string        `json:"open_dates"`
	Pending   map[string]bool `json:"pending,omitempty"`
}

// Board is safe for concurrent use.
type Board struct {
	engine Engine

	mu      sync.RWMutex
	day     calendar.Day
	tasks   []task.Task
	dates   calendar.DateSet
	pending map[string]bool
}

// New creates a board positioned on the engine's current day.
func New(engine Engine) *Board {
	return &Board{
		engine:  engine,
		day:     engine.Today(),
		tasks:   []task.Task{},
		dates:   calendar.DateSet{},
		pending: make(map[string]bool),
	}
}

// Load refreshes the day list and the open dates concurrently.
func (b *Board) Load(ctx context.Context) error {
	b.mu.RLock()
	day := b.day
	b.mu.RUnlock()

	var (
		tasks []task.Task
		dates calendar.DateSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = b.engine.ListForDay(gctx, day)
		return err
	})
	g.Go(func() error {
		var err error
		dates, err = b.engine.OpenDates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load board for %s: %w", day, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dates = dates
	if b.day == day {
		b.tasks = b.withoutPending(tasks)
	}
	return nil
}

// Select moves the board to day and reloads its task list.
func (b *Board) Select(ctx context.Context, day calendar.Day) error {
	tasks, err := b.engine.ListForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("select %s: %w", day, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.day = day
	b.tasks = b.withoutPending(tasks)
	return nil
}

// Complete removes the task from the list before the engine confirms.
// If the engine fails the task is put back where it was and the error is
// returned. On success the open dates are refreshed.
func (b *Board) Complete(ctx context.Context, id string) error {
	b.mu.Lock()
	if b.pending[id] {
		b.mu.Unlock()
		return nil
	}
	day := b.day
	idx := -1
	var removed task.Task
	for i, t := range b.tasks {
		if t.ID == id {
			idx, removed = i, t
			break
		}
	}
	if idx >= 0 {
		b.tasks = append(b.tasks[:idx:idx], b.tasks[idx+1:]...)
	}
	b.pending[id] = true
	b.mu.Unlock()

	_, err := b.engine.Complete(ctx, id)

	b.mu.Lock()
	delete(b.pending, id)
	if err != nil {
		if idx >= 0 && b.day == day && !b.has(id) {
			b.tasks = insertAt(b.tasks, idx, removed)
		}
		b.mu.Unlock()
		return fmt.Errorf("complete %s: %w", id, err)
	}
	b.mu.Unlock()

	dates, err := b.engine.OpenDates(ctx)
	if err != nil {
		log.Printf("dashboard: refresh open dates: %v", err)
		return nil
	}
	b.mu.Lock()
	b.dates = dates
	b.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	tasks := make([]task.Task, len(b.tasks))
	copy(tasks, b.tasks)
	var pending map[string]bool
	if len(b.pending) > 0 {
		pending = make(map[string]bool, len(b.pending))
		for id := range b.pending {
			pending[id] = true
		}
	}
	return State{
		Day:       b.day,
		Tasks:     tasks,
		OpenDates: b.dates.Strings(),
		Pending:   pending,
	}
}

// withoutPending drops tasks with a completion in flight. Callers hold mu.
func (b *Board) withoutPending(tasks []task.Task) []task.Task {
	if len(b.pending) == 0 {
		return tasks
	}
	out := tasks[:0:0]
	for _, t := range tasks {
		if !b.pending[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func (b *Board) has(id string) bool {
	for _, t := range b.tasks {
		if t.ID == id {
			return true
		}
	}
	return false
}

func insertAt(tasks []task.Task, idx int, t task.Task) []task.Task {
	if idx > len(tasks) {
		idx = len(tasks)
	}
	tasks = append(tasks, task.Task{})
	copy(tasks[idx+1:], tasks[idx:])
	tasks[idx] = t
	return tasks
}

package task

import (
	"context"
	"time"
)

// Type is the kind of follow-up.
type Type string

const (
	TypeCall   Type = "call"
	TypeEmail  Type = "email"
	TypeReview Type = "review"
)

// Types lists the valid task types in display order.
var Types = []Type{TypeCall, TypeEmail, TypeReview}

// Valid reports whether t is one of Types.
func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of Statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Task is a follow-up tied to an application.
type Task struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	TenantID      string    `json:"tenant_id"` // copied from the application at creation
	Type          Type      `json:"type"`
	Status        Status    `json:"status"`
	Title         string    `json:"title,omitempty"`
	DueAt         time.Time `json:"due_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the record-store capability behind the engine.
// Implementations must honor ctx cancellation and never retry.
type Store interface {
	// Insert persists t as given. The caller fills every field.
	Insert(ctx context.Context, t *Task) error

	// Get returns a task or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// DueBetween returns tasks with start <= due_at < end whose status is
	// not in exclude, ordered by due_at then id.
	DueBetween(ctx context.Context, start, end time.Time, exclude []Status) ([]Task, error)

	// OpenDueTimes returns due_at of every task that is not completed.
	OpenDueTimes(ctx context.Context) ([]time.Time, error)

	// Complete moves a non-completed task to completed, stamping
	// updated_at. changed is false when it was already completed, in which
	// case the stored record is returned untouched.
	Complete(ctx context.Context, id string, at time.Time) (t *Task, changed bool, err error)

	// Counts returns total and non-completed task counts.
	Counts(ctx context.Context) (total, open int, err error)

	// EnsureTable creates the tasks table if it doesn't exist.
	EnsureTable(ctx context.Context) error
}

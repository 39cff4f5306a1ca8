// Package activity records what happened to tasks as a hash-chained,
// append-only log.
package activity

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Event types emitted by the task engine.
const (
	TaskCreated   = "task.created"
	TaskCompleted = "task.completed"
)

// Event is one entry in the activity log.
type Event struct {
	ID        string         `json:"id"`        // UUID v7 (time-ordered)
	Type      string         `json:"type"`      // e.g. "task.created"
	Timestamp time.Time      `json:"timestamp"` // when the event was recorded
	Source    string         `json:"source"`    // component that emitted it
	Content   map[string]any `json:"content"`
	Hash      string         `json:"hash"`      // SHA-256 of canonical form
	PrevHash  string         `json:"prev_hash"` // hash chain link
}

// Log is the contract for activity persistence.
type Log interface {
	Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
	Since(ctx context.Context, afterID string, limit int) ([]Event, error)
	Count(ctx context.Context) (int, error)
	VerifyChain(ctx context.Context) error
	EnsureTable(ctx context.Context) error
}

// computeHash computes a SHA-256 hash for chain integrity.
func computeHash(prevHash, id, eventType, source string, timestamp time.Time, contentJSON []byte) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, id, eventType, source, timestamp.UnixNano(), string(contentJSON))
	h := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", h)
}

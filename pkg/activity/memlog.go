package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemLog is an in-memory Log.
type MemLog struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemLog creates an empty MemLog.
func NewMemLog() *MemLog {
	return &MemLog{}
}

// EnsureTable is a no-op.
func (l *MemLog) EnsureTable(context.Context) error { return nil }

// Append stores a new event, linking it to the previous hash.
func (l *MemLog) Append(_ context.Context, eventType, source string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := ""
	if n := len(l.events); n > 0 {
		prevHash = l.events[n-1].Hash
	}
	now := time.Now()
	id := uuid.Must(uuid.NewV7()).String()
	e := Event{
		ID:        id,
		Type:      eventType,
		Timestamp: now,
		Source:    source,
		Content:   content,
		Hash:      computeHash(prevHash, id, eventType, source, now, contentJSON),
		PrevHash:  prevHash,
	}
	l.events = append(l.events, e)
	return &e, nil
}

// Recent returns the most recent events, newest first.
func (l *MemLog) Recent(_ context.Context, limit int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Event
	for i := len(l.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.events[i])
	}
	return out, nil
}

// Since returns events recorded after afterID, oldest first.
func (l *MemLog) Since(_ context.Context, afterID string, limit int) ([]Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, e := range l.events {
		if e.ID != afterID {
			continue
		}
		rest := l.events[i+1:]
		if len(rest) > limit {
			rest = rest[:limit]
		}
		return append([]Event(nil), rest...), nil
	}
	return nil, nil
}

// Count returns the number of events.
func (l *MemLog) Count(context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events), nil
}

// VerifyChain checks every link in the log.
func (l *MemLog) VerifyChain(context.Context) error {
	l.mu.RLock()
	events := append([]Event(nil), l.events...)
	l.mu.RUnlock()
	return verify(events)
}

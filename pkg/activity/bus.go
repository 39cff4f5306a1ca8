package activity

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many events a slow subscriber may lag before
// events are dropped for it.
const subscriberBuffer = 64

// Filter selects which events a subscriber sees. Zero values match all.
type Filter struct {
	TenantID string
	Types    []string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *Event) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, e.Type) {
		return false
	}
	if f.TenantID != "" {
		tenant, _ := e.Content["tenant_id"].(string)
		if tenant != f.TenantID {
			return false
		}
	}
	return true
}

// Bus is a Log that also notifies live subscribers of every appended
// event. Delivery never blocks Append; a subscriber whose buffer is full
// misses the event and can catch up with Since.
type Bus struct {
	Log

	mu      sync.RWMutex
	subs    map[chan *Event]Filter
	closed  bool
	dropped atomic.Int64
}

// NewBus creates a Bus over log.
func NewBus(log Log) *Bus {
	return &Bus{
		Log:  log,
		subs: make(map[chan *Event]Filter),
	}
}

// Append records the event, then offers it to matching subscribers.
func (b *Bus) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	e, err := b.Log.Append(ctx, eventType, source, content)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, f := range b.subs {
		if !f.Match(e) {
			continue
		}
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
	return e, nil
}

// Subscribe registers a subscriber for events matching f. After Close the
// returned channel is already closed.
func (b *Bus) Subscribe(f Filter) chan *Event {
	ch := make(chan *Event, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = f
	return ch
}

// Unsubscribe removes ch and closes it. Calling it for a channel that
// Close already released is a no-op.
func (b *Bus) Unsubscribe(ch chan *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Close ends every subscription. Appends still reach the log.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped for full buffers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

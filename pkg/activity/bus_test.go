package activity

import (
	"context"
	"sync"
	"testing"
	"time"
)

func receive(t *testing.T, ch chan *Event) *Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	return nil
}

func assertQuiet(t *testing.T, ch chan *Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %s (%s)", e.ID, e.Type)
	default:
	}
}

func TestBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(NewMemLog())
	ch := bus.Subscribe(Filter{})

	e, err := bus.Append(ctx, TaskCreated, "engine", nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if got := receive(t, ch); got.ID != e.ID {
		t.Fatalf("got event %s, want %s", got.ID, e.ID)
	}

	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	bus.Unsubscribe(ch) // second call must not panic
}

func TestBusFilter(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(NewMemLog())

	tenantA := bus.Subscribe(Filter{TenantID: "a"})
	completions := bus.Subscribe(Filter{Types: []string{TaskCompleted}})
	both := bus.Subscribe(Filter{TenantID: "b", Types: []string{TaskCompleted}})

	if _, err := bus.Append(ctx, TaskCreated, "engine", map[string]any{"tenant_id": "a"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := bus.Append(ctx, TaskCompleted, "engine", map[string]any{"tenant_id": "b"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if got := receive(t, tenantA); got.Type != TaskCreated {
		t.Fatalf("tenant a got %s", got.Type)
	}
	assertQuiet(t, tenantA)

	if got := receive(t, completions); got.Content["tenant_id"] != "b" {
		t.Fatalf("completions got %v", got.Content)
	}
	assertQuiet(t, completions)

	if got := receive(t, both); got.Type != TaskCompleted {
		t.Fatalf("tenant b completions got %s", got.Type)
	}
	assertQuiet(t, both)

	if n, _ := bus.Count(ctx); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestFilterMatch(t *testing.T) {
	e := &Event{Type: TaskCreated, Content: map[string]any{"tenant_id": "a"}}
	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"zero", Filter{}, true},
		{"tenant", Filter{TenantID: "a"}, true},
		{"other tenant", Filter{TenantID: "b"}, false},
		{"type", Filter{Types: []string{TaskCompleted, TaskCreated}}, true},
		{"other type", Filter{Types: []string{TaskCompleted}}, false},
	}
	for _, tt := range tests {
		if got := tt.f.Match(e); got != tt.want {
			t.Errorf("%s: Match = %v, want %v", tt.name, got, tt.want)
		}
	}
	if (Filter{TenantID: "a"}).Match(&Event{Type: TaskCreated}) {
		t.Error("event without tenant must not match a tenant filter")
	}
}

func TestBusSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(NewMemLog())
	ch := bus.Subscribe(Filter{})

	for i := 0; i < subscriberBuffer+5; i++ {
		if _, err := bus.Append(ctx, TaskCreated, "engine", nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("buffered %d, want %d", len(ch), subscriberBuffer)
	}
	if got := bus.Dropped(); got != 5 {
		t.Fatalf("Dropped = %d, want 5", got)
	}
}

func TestBusClose(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(NewMemLog())
	first := bus.Subscribe(Filter{})
	second := bus.Subscribe(Filter{TenantID: "a"})

	bus.Close()
	for _, ch := range []chan *Event{first, second} {
		if _, ok := <-ch; ok {
			t.Fatal("channel should be closed after Close")
		}
	}
	if n := bus.Subscribers(); n != 0 {
		t.Fatalf("Subscribers = %d after Close", n)
	}

	// Handlers unsubscribing on their way out must not double-close.
	bus.Unsubscribe(first)
	bus.Close()

	late := bus.Subscribe(Filter{})
	if _, ok := <-late; ok {
		t.Fatal("Subscribe after Close should return a closed channel")
	}

	if _, err := bus.Append(ctx, TaskCreated, "engine", nil); err != nil {
		t.Fatalf("append after Close: %v", err)
	}
}

func TestBusConcurrentSubscribeAndClose(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(NewMemLog())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := bus.Subscribe(Filter{})
			defer bus.Unsubscribe(ch)
			bus.Append(ctx, TaskCreated, "engine", nil)
		}()
	}
	bus.Close()
	wg.Wait()

	if err := bus.VerifyChain(ctx); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
}

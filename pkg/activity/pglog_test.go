package activity

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func newTestPgLog(t *testing.T) *PgLog {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Skipping test: database ping failed: %v", err)
	}

	l := NewPgLog(pool)
	if err := l.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM task_activity`); err != nil {
		t.Fatalf("reset: %v", err)
	}
	return l
}

func TestPgLogConcurrentAppendsKeepOneChain(t *testing.T) {
	ctx := context.Background()
	l := newTestPgLog(t)

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(ctx, TaskCreated, "engine", map[string]any{"n": i})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if n, _ := l.Count(ctx); n != writers {
		t.Fatalf("Count = %d, want %d", n, writers)
	}
	if err := l.VerifyChain(ctx); err != nil {
		t.Fatalf("VerifyChain after concurrent appends: %v", err)
	}

	recent, err := l.Recent(ctx, writers)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	for i := 1; i < len(recent); i++ {
		if !recent[i-1].Timestamp.After(recent[i].Timestamp) {
			t.Fatalf("timestamps not strictly increasing at %d: %v then %v", i, recent[i].Timestamp, recent[i-1].Timestamp)
		}
	}
}

package task

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTask(due time.Time, status Status) *Task {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &Task{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ApplicationID: uuid.Must(uuid.NewV7()).String(),
		TenantID:      tenantA,
		Type:          TypeCall,
		Status:        status,
		DueAt:         due,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// exerciseStore checks the Store contract against a fresh, empty store.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	require.NoError(t, s.EnsureTable(ctx))

	start := time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	atStart := newTask(start, StatusOpen)
	beforeEnd := newTask(end.Add(-time.Microsecond), StatusInProgress)
	atEnd := newTask(end, StatusOpen)
	beforeStart := newTask(start.Add(-time.Microsecond), StatusOpen)
	done := newTask(start.Add(time.Hour), StatusCompleted)
	middle := newTask(start.Add(2*time.Hour), StatusOpen)
	for _, tk := range []*Task{atStart, beforeEnd, atEnd, beforeStart, done, middle} {
		require.NoError(t, s.Insert(ctx, tk))
	}

	t.Run("get", func(t *testing.T) {
		got, err := s.Get(ctx, middle.ID)
		require.NoError(t, err)
		assert.Equal(t, middle.ApplicationID, got.ApplicationID)
		assert.Equal(t, tenantA, got.TenantID)
		assert.True(t, got.DueAt.Equal(middle.DueAt))

		_, err = s.Get(ctx, uuid.Must(uuid.NewV7()).String())
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("due between is half open", func(t *testing.T) {
		got, err := s.DueBetween(ctx, start, end, []Status{StatusCompleted})
		require.NoError(t, err)
		assert.Equal(t, []string{atStart.ID, middle.ID, beforeEnd.ID}, ids(got))

		got, err = s.DueBetween(ctx, start, end, nil)
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("open due times", func(t *testing.T) {
		got, err := s.OpenDueTimes(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("complete", func(t *testing.T) {
		at := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
		got, changed, err := s.Complete(ctx, middle.ID, at)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.True(t, got.UpdatedAt.Equal(at))

		again, changed, err := s.Complete(ctx, middle.ID, at.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.True(t, again.UpdatedAt.Equal(at))
		assert.True(t, again.DueAt.Equal(middle.DueAt))

		_, _, err = s.Complete(ctx, uuid.Must(uuid.NewV7()).String(), at)
		assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("counts", func(t *testing.T) {
		total, open, err := s.Counts(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, total)
		assert.Equal(t, 4, open)
	})
}

func TestMemStore(t *testing.T) {
	exerciseStore(t, NewMemStore())
}

func TestMemStoreHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemStore().OpenDueTimes(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	exerciseStore(t, NewGormStore(db))
}

func TestPgStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Skipping test: database ping failed: %v", err)
	}

	s := NewPgStore(pool)
	require.NoError(t, s.EnsureTable(ctx))
	_, err = pool.Exec(ctx, `DELETE FROM tasks`)
	require.NoError(t, err)

	exerciseStore(t, s)
}

package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"followups/internal/config"
	"followups/pkg/application"
	"followups/pkg/calendar"
	"followups/pkg/task"
)

func TestOpenBackends(t *testing.T) {
	for _, store := range []string{config.StoreMemory, config.StoreSQLite} {
		t.Run(store, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.Config{
				Store:      store,
				SQLitePath: filepath.Join(t.TempDir(), "followups.db"),
				Calendar:   calendar.New(time.UTC),
			}
			s, err := Open(ctx, cfg)
			require.NoError(t, err)
			defer s.Close()
			require.NoError(t, s.EnsureTables(ctx))

			app, err := s.Apps.Register(ctx, &application.Application{TenantID: "0192f1a4-0000-7000-8000-00000000000a"})
			require.NoError(t, err)

			now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
			engine := task.NewService(s.Tasks, s.Apps,
				task.WithClock(func() time.Time { return now }),
				task.WithActivity(s.Activity),
			)
			created, err := engine.Create(ctx, task.Request{ApplicationID: app.ID, TaskType: "review", DueAt: "2026-10-14T17:00:00Z"})
			require.NoError(t, err)

			tasks, err := engine.ListForDay(ctx, engine.Today())
			require.NoError(t, err)
			require.Len(t, tasks, 1)
			assert.Equal(t, created.ID, tasks[0].ID)

			n, err := s.Activity.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
			assert.NoError(t, s.Activity.VerifyChain(ctx))
		})
	}
}

func TestOpenUnknownStore(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Store: "mongo"})
	assert.Error(t, err)
}

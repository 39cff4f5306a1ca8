package activity

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestGormLog(t *testing.T) (*GormLog, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	l := NewGormLog(db)
	if err := l.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return l, db
}

func TestGormLogChain(t *testing.T) {
	ctx := context.Background()
	l, db := newTestGormLog(t)

	var appended []*Event
	for i, typ := range []string{TaskCreated, TaskCreated, TaskCompleted} {
		e, err := l.Append(ctx, typ, "engine", map[string]any{"task_id": string(rune('a' + i))})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		appended = append(appended, e)
	}
	if appended[1].PrevHash != appended[0].Hash || appended[2].PrevHash != appended[1].Hash {
		t.Fatal("events are not linked")
	}
	if err := l.VerifyChain(ctx); err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}

	n, err := l.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	recent, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != appended[2].ID || recent[1].ID != appended[1].ID {
		t.Fatalf("Recent = %+v", recent)
	}

	since, err := l.Since(ctx, appended[0].ID, 10)
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(since) != 2 || since[0].ID != appended[1].ID || since[1].ID != appended[2].ID {
		t.Fatalf("Since = %+v", since)
	}
	if got, _ := l.Since(ctx, "missing", 10); len(got) != 0 {
		t.Fatalf("Since(missing) = %+v", got)
	}

	if err := db.Model(&eventRow{}).Where("id = ?", appended[1].ID).Update("content", `{"task_id":"z"}`).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := l.VerifyChain(ctx); err == nil {
		t.Fatal("expected VerifyChain to detect tampering")
	}
}

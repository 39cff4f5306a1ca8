package db

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"followups/internal/config"
	"followups/pkg/activity"
	"followups/pkg/application"
	"followups/pkg/task"
)

// Stores bundles the backends chosen by config.
type Stores struct {
	Tasks    task.Store
	Apps     application.Store
	Activity activity.Log

	close func()
}

// Open builds the stores for cfg.Store.
func Open(ctx context.Context, cfg config.Config) (*Stores, error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Tasks:    task.NewPgStore(pool),
			Apps:     application.NewPgStore(pool),
			Activity: activity.NewPgLog(pool),
			close:    pool.Close,
		}, nil

	case config.StoreSQLite:
		gdb, err := gorm.Open(sqlite.Open(cfg.SQLitePath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		// One writer keeps the activity chain head read and insert serial.
		sqlDB.SetMaxOpenConns(1)
		return &Stores{
			Tasks:    task.NewGormStore(gdb),
			Apps:     application.NewGormStore(gdb),
			Activity: activity.NewGormLog(gdb),
			close: func() {
				if err := sqlDB.Close(); err != nil {
					log.Printf("db: close sqlite: %v", err)
				}
			},
		}, nil

	case config.StoreMemory:
		return &Stores{
			Tasks:    task.NewMemStore(),
			Apps:     application.NewMemStore(),
			Activity: activity.NewMemLog(),
			close:    func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// EnsureTables creates every table the stores need.
func (s *Stores) EnsureTables(ctx context.Context) error {
	if err := s.Apps.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure applications table: %w", err)
	}
	if err := s.Tasks.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure tasks table: %w", err)
	}
	if err := s.Activity.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure activity table: %w", err)
	}
	return nil
}

// Close releases the underlying connections.
func (s *Stores) Close() {
	s.close()
}

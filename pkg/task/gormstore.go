package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// taskRow is the GORM model for the tasks table. Instants are stored as
// unix microseconds so range comparisons are numeric on every driver.
type taskRow struct {
	ID            string `gorm:"primarykey;size:36"`
	ApplicationID string `gorm:"size:36;not null;index"`
	TenantID      string `gorm:"size:36;not null;index"`
	Type          string `gorm:"size:16;not null"`
	Status        string `gorm:"size:16;not null;default:open;index"`
	Title         string `gorm:"size:500;not null;default:''"`
	DueAt         int64  `gorm:"column:due_at;not null;index"`
	CreatedUS     int64  `gorm:"column:created_at;not null"`
	UpdatedUS     int64  `gorm:"column:updated_at;not null"`
}

func (taskRow) TableName() string {
	return "tasks"
}

// GormStore is a GORM-backed task store, used with SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable migrates the tasks table.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&taskRow{})
}

// Insert stores a new task.
func (s *GormStore) Insert(ctx context.Context, t *Task) error {
	row := toRow(t)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a single task by ID.
func (s *GormStore) Get(ctx context.Context, id string) (*Task, error) {
	return getRow(s.db.WithContext(ctx), id)
}

// DueBetween returns tasks with start <= due_at < end and status not in exclude.
func (s *GormStore) DueBetween(ctx context.Context, start, end time.Time, exclude []Status) ([]Task, error) {
	q := s.db.WithContext(ctx).
		Where("due_at >= ? AND due_at < ?", start.UnixMicro(), end.UnixMicro())
	if len(exclude) > 0 {
		statuses := make([]string, len(exclude))
		for i, st := range exclude {
			statuses[i] = string(st)
		}
		q = q.Where("status NOT IN ?", statuses)
	}
	var rows []taskRow
	if err := q.Order("due_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("tasks due between %s and %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	tasks := make([]Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.toTask()
	}
	return tasks, nil
}

// OpenDueTimes returns due_at of every non-completed task.
func (s *GormStore) OpenDueTimes(ctx context.Context) ([]time.Time, error) {
	var dues []int64
	err := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("status <> ?", string(StatusCompleted)).
		Pluck("due_at", &dues).Error
	if err != nil {
		return nil, fmt.Errorf("open due times: %w", err)
	}
	out := make([]time.Time, len(dues))
	for i, us := range dues {
		out[i] = time.UnixMicro(us).UTC()
	}
	return out, nil
}

// Complete marks a task as completed unless it already is.
func (s *GormStore) Complete(ctx context.Context, id string, at time.Time) (*Task, bool, error) {
	var (
		out     *Task
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&taskRow{}).
			Where("id = ? AND status <> ?", id, string(StatusCompleted)).
			Updates(map[string]any{"status": string(StatusCompleted), "updated_at": at.UnixMicro()})
		if res.Error != nil {
			return fmt.Errorf("complete task %s: %w", id, res.Error)
		}
		changed = res.RowsAffected > 0
		t, err := getRow(tx, id)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

// Counts returns total and non-completed task counts.
func (s *GormStore) Counts(ctx context.Context) (int, int, error) {
	var total, open int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&taskRow{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	if err := db.Model(&taskRow{}).Where("status <> ?", string(StatusCompleted)).Count(&open).Error; err != nil {
		return 0, 0, fmt.Errorf("count open tasks: %w", err)
	}
	return int(total), int(open), nil
}

func getRow(db *gorm.DB, id string) (*Task, error) {
	var row taskRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	t := row.toTask()
	return &t, nil
}

func toRow(t *Task) taskRow {
	return taskRow{
		ID:            t.ID,
		ApplicationID: t.ApplicationID,
		TenantID:      t.TenantID,
		Type:          string(t.Type),
		Status:        string(t.Status),
		Title:         t.Title,
		DueAt:         t.DueAt.UnixMicro(),
		CreatedUS:     t.CreatedAt.UnixMicro(),
		UpdatedUS:     t.UpdatedAt.UnixMicro(),
	}
}

func (r taskRow) toTask() Task {
	return Task{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		TenantID:      r.TenantID,
		Type:          Type(r.Type),
		Status:        Status(r.Status),
		Title:         r.Title,
		DueAt:         time.UnixMicro(r.DueAt).UTC(),
		CreatedAt:     time.UnixMicro(r.CreatedUS).UTC(),
		UpdatedAt:     time.UnixMicro(r.UpdatedUS).UTC(),
	}
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// applicationRow is the GORM model for the applications table.
type applicationRow struct {
	ID        string    `gorm:"primarykey;size:36"`
	TenantID  string    `gorm:"size:36;not null;index"`
	Name      string    `gorm:"size:200;not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}

func (applicationRow) TableName() string {
	return "applications"
}

// GormStore is a GORM-backed application store, used with SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureTable migrates the applications table.
func (s *GormStore) EnsureTable(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&applicationRow{})
}

// Register inserts a new application.
func (s *GormStore) Register(ctx context.Context, a *Application) (*Application, error) {
	out := *a
	id, err := newID(out.ID)
	if err != nil {
		return nil, err
	}
	out.ID = id
	out.CreatedAt = time.Now().UTC()

	row := applicationRow{ID: out.ID, TenantID: out.TenantID, Name: out.Name, CreatedAt: out.CreatedAt}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("register application %s: %w", out.ID, err)
	}
	return &out, nil
}

// Get returns an application by ID.
func (s *GormStore) Get(ctx context.Context, id string) (*Application, error) {
	id, err := lookupID(id)
	if err != nil {
		return nil, err
	}
	var row applicationRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("get application %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	a := row.toApplication()
	return &a, nil
}

// List returns applications ordered by creation time.
func (s *GormStore) List(ctx context.Context, tenantID string) ([]Application, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	var rows []applicationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps := make([]Application, len(rows))
	for i, r := range rows {
		apps[i] = r.toApplication()
	}
	return apps, nil
}

func (r applicationRow) toApplication() Application {
	return Application{ID: r.ID, TenantID: r.TenantID, Name: r.Name, CreatedAt: r.CreatedAt}
}

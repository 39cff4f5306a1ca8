package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed application store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the applications table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS applications (
			id         UUID PRIMARY KEY,
			tenant_id  UUID NOT NULL,
			name       TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_applications_tenant ON applications(tenant_id)`)
	return err
}

// Register inserts a new application.
func (s *PgStore) Register(ctx context.Context, a *Application) (*Application, error) {
	out := *a
	id, err := newID(out.ID)
	if err != nil {
		return nil, err
	}
	out.ID = id
	out.CreatedAt = time.Now().Truncate(time.Microsecond)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO applications (id, tenant_id, name, created_at)
		VALUES ($1, $2, $3, $4)`,
		out.ID, out.TenantID, out.Name, out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("register application %s: %w", out.ID, err)
	}
	return &out, nil
}

// Get returns an application by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Application, error) {
	id, err := lookupID(id)
	if err != nil {
		return nil, err
	}
	var a Application
	err = s.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, created_at
		FROM applications WHERE id = $1`, id).
		Scan(&a.ID, &a.TenantID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get application %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return &a, nil
}

// List returns applications ordered by creation time.
func (s *PgStore) List(ctx context.Context, tenantID string) ([]Application, error) {
	query := `SELECT id::text, tenant_id::text, name, created_at FROM applications ORDER BY created_at ASC`
	var args []any
	if tenantID != "" {
		query = `SELECT id::text, tenant_id::text, name, created_at FROM applications WHERE tenant_id = $1 ORDER BY created_at ASC`
		args = []any{tenantID}
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.TenantID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

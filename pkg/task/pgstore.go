package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const taskColumns = `id::text, application_id::text, tenant_id::text, type, status, title, due_at, created_at, updated_at`

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id             UUID PRIMARY KEY,
			application_id UUID NOT NULL,
			tenant_id      UUID NOT NULL,
			type           TEXT NOT NULL CHECK (type IN ('call', 'email', 'review')),
			status         TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'in_progress', 'completed')),
			title          TEXT NOT NULL DEFAULT '',
			due_at         TIMESTAMPTZ NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_due_at ON tasks(due_at) WHERE status <> 'completed'`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_tenant ON tasks(tenant_id)`)
	return err
}

// Insert stores a new task.
func (s *PgStore) Insert(ctx context.Context, t *Task) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasks (id, application_id, tenant_id, type, status, title, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.ApplicationID, t.TenantID, string(t.Type), string(t.Status), t.Title, t.DueAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a single task by ID.
func (s *PgStore) Get(ctx context.Context, id string) (*Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// DueBetween returns tasks with start <= due_at < end and status not in exclude.
func (s *PgStore) DueBetween(ctx context.Context, start, end time.Time, exclude []Status) ([]Task, error) {
	statuses := make([]string, len(exclude))
	for i, st := range exclude {
		statuses[i] = string(st)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE due_at >= $1 AND due_at < $2 AND NOT (status = ANY($3))
		ORDER BY due_at ASC, id ASC`, start, end, statuses)
	if err != nil {
		return nil, fmt.Errorf("tasks due between %s and %s: %w", start.Format(time.RFC3339), end.Format(time.RFC3339), err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// OpenDueTimes returns due_at of every non-completed task.
func (s *PgStore) OpenDueTimes(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `SELECT due_at FROM tasks WHERE status <> 'completed'`)
	if err != nil {
		return nil, fmt.Errorf("open due times: %w", err)
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Complete marks a task as completed. The status guard keeps a repeated
// completion from bumping updated_at.
func (s *PgStore) Complete(ctx context.Context, id string, at time.Time) (*Task, bool, error) {
	t, err := scanTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET status = 'completed', updated_at = $1
		WHERE id = $2 AND status <> 'completed'
		RETURNING `+taskColumns, at, id))
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("complete task %s: %w", id, err)
	}

	// Either already completed or missing.
	t, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}

// Counts returns total and non-completed task counts.
func (s *PgStore) Counts(ctx context.Context) (int, int, error) {
	var total, open int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status <> 'completed') FROM tasks`).Scan(&total, &open)
	if err != nil {
		return 0, 0, fmt.Errorf("count tasks: %w", err)
	}
	return total, open, nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var typ, status string
	if err := row.Scan(&t.ID, &t.ApplicationID, &t.TenantID, &typ, &status, &t.Title, &t.DueAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	return &t, nil
}

func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}

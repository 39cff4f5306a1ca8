package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appendLockKey names the transaction-scoped advisory lock that serializes
// appends. Row locks cannot guard an empty table.
const appendLockKey int64 = 0x7461736b5f616374

// PgLog is a PostgreSQL-backed Log.
type PgLog struct {
	pool *pgxpool.Pool
}

// NewPgLog creates a PgLog.
func NewPgLog(pool *pgxpool.Pool) *PgLog {
	return &PgLog{pool: pool}
}

// EnsureTable creates the task_activity table if it doesn't exist.
func (l *PgLog) EnsureTable(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS task_activity (
			id        TEXT PRIMARY KEY,
			type      TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			source    TEXT NOT NULL,
			content   JSONB NOT NULL DEFAULT '{}',
			hash      TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT ''
		)`)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_task_activity_timestamp_id ON task_activity(timestamp, id)`)
	return err
}

// Append stores a new event, linking it to the previous hash.
func (l *PgLog) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("lock chain: %w", err)
	}

	var prevHash string
	var headAt time.Time
	err = tx.QueryRow(ctx, `SELECT hash, timestamp FROM task_activity ORDER BY timestamp DESC, id DESC LIMIT 1`).Scan(&prevHash, &headAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read chain head: %w", err)
	}

	// The new event must sort after the head, even across clock skew
	// between app instances.
	now := time.Now().Truncate(time.Microsecond)
	if !headAt.IsZero() && !now.After(headAt) {
		now = headAt.Add(time.Microsecond)
	}
	id := uuid.Must(uuid.NewV7()).String()

	e := &Event{
		ID:        id,
		Type:      eventType,
		Timestamp: now,
		Source:    source,
		Content:   content,
		Hash:      computeHash(prevHash, id, eventType, source, now, contentJSON),
		PrevHash:  prevHash,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO task_activity (id, type, timestamp, source, content, hash, prev_hash)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`,
		e.ID, e.Type, e.Timestamp, e.Source, string(contentJSON), e.Hash, e.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit event: %w", err)
	}
	return e, nil
}

// Recent returns the most recent events, newest first.
func (l *PgLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	return l.scanMany(ctx, `
		SELECT id, type, timestamp, source, content, hash, prev_hash
		FROM task_activity ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
}

// Since returns events recorded after afterID, oldest first.
func (l *PgLog) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	return l.scanMany(ctx, `
		SELECT id, type, timestamp, source, content, hash, prev_hash
		FROM task_activity WHERE (timestamp, id) > (SELECT timestamp, id FROM task_activity WHERE id = $1)
		ORDER BY timestamp ASC, id ASC LIMIT $2`, afterID, limit)
}

// Count returns the total number of events.
func (l *PgLog) Count(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM task_activity`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

// VerifyChain walks the log chronologically and checks every link.
func (l *PgLog) VerifyChain(ctx context.Context) error {
	events, err := l.scanMany(ctx, `
		SELECT id, type, timestamp, source, content, hash, prev_hash
		FROM task_activity ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	return verify(events)
}

func (l *PgLog) scanMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var contentJSON []byte
		if err := rows.Scan(&e.ID, &e.Type, &e.Timestamp, &e.Source, &contentJSON, &e.Hash, &e.PrevHash); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(contentJSON, &e.Content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return events, nil
}

// verify checks links and hashes of events in chronological order.
func verify(events []Event) error {
	prevHash := ""
	for i, e := range events {
		if e.PrevHash != prevHash {
			return fmt.Errorf("event %d (%s): prev_hash mismatch: got %s, want %s", i, e.ID, e.PrevHash, prevHash)
		}
		contentJSON, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("event %d (%s): marshal content: %w", i, e.ID, err)
		}
		if want := computeHash(prevHash, e.ID, e.Type, e.Source, e.Timestamp, contentJSON); e.Hash != want {
			return fmt.Errorf("event %d (%s): hash mismatch: got %s, want %s", i, e.ID, e.Hash, want)
		}
		prevHash = e.Hash
	}
	return nil
}

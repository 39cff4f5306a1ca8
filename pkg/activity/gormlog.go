package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// eventRow is the GORM model for task_activity. The timestamp is kept
// in unix nanoseconds so the stored value hashes exactly as appended.
type eventRow struct {
	ID       string `gorm:"primarykey;size:36"`
	Type     string `gorm:"size:64;not null;index"`
	UnixNano int64  `gorm:"column:timestamp;not null;index"`
	Source   string `gorm:"size:64;not null"`
	Content  string `gorm:"type:text;not null"`
	Hash     string `gorm:"size:64;not null"`
	PrevHash string `gorm:"size:64;not null;default:''"`
}

func (eventRow) TableName() string {
	return "task_activity"
}

// GormLog is a GORM-backed activity log, used with SQLite.
type GormLog struct {
	db *gorm.DB
}

// NewGormLog creates a GormLog.
func NewGormLog(db *gorm.DB) *GormLog {
	return &GormLog{db: db}
}

// EnsureTable migrates the task_activity table.
func (l *GormLog) EnsureTable(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&eventRow{})
}

// Append stores a new event, linking it to the previous hash.
func (l *GormLog) Append(ctx context.Context, eventType, source string, content map[string]any) (*Event, error) {
	if content == nil {
		content = map[string]any{}
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}

	var e *Event
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var head eventRow
		prevHash := ""
		err := tx.Order("timestamp DESC, id DESC").Limit(1).Take(&head).Error
		switch {
		case err == nil:
			prevHash = head.Hash
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("read chain head: %w", err)
		}

		now := time.Now()
		if head.UnixNano >= now.UnixNano() {
			now = time.Unix(0, head.UnixNano+1)
		}
		id := uuid.Must(uuid.NewV7()).String()
		e = &Event{
			ID:        id,
			Type:      eventType,
			Timestamp: now,
			Source:    source,
			Content:   content,
			Hash:      computeHash(prevHash, id, eventType, source, now, contentJSON),
			PrevHash:  prevHash,
		}
		row := eventRow{
			ID:       e.ID,
			Type:     e.Type,
			UnixNano: now.UnixNano(),
			Source:   e.Source,
			Content:  string(contentJSON),
			Hash:     e.Hash,
			PrevHash: e.PrevHash,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Recent returns the most recent events, newest first.
func (l *GormLog) Recent(ctx context.Context, limit int) ([]Event, error) {
	var rows []eventRow
	err := l.db.WithContext(ctx).Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("recent events: %w", err)
	}
	return toEvents(rows)
}

// Since returns events recorded after afterID, oldest first.
func (l *GormLog) Since(ctx context.Context, afterID string, limit int) ([]Event, error) {
	db := l.db.WithContext(ctx)
	var anchor eventRow
	if err := db.First(&anchor, "id = ?", afterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("events since %s: %w", afterID, err)
	}
	var rows []eventRow
	err := db.Where("timestamp > ? OR (timestamp = ? AND id > ?)", anchor.UnixNano, anchor.UnixNano, anchor.ID).
		Order("timestamp ASC, id ASC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("events since %s: %w", afterID, err)
	}
	return toEvents(rows)
}

// Count returns the total number of events.
func (l *GormLog) Count(ctx context.Context) (int, error) {
	var n int64
	if err := l.db.WithContext(ctx).Model(&eventRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

// VerifyChain walks the log chronologically and checks every link.
func (l *GormLog) VerifyChain(ctx context.Context) error {
	var rows []eventRow
	if err := l.db.WithContext(ctx).Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return fmt.Errorf("verify chain query: %w", err)
	}
	events, err := toEvents(rows)
	if err != nil {
		return err
	}
	return verify(events)
}

func toEvents(rows []eventRow) ([]Event, error) {
	events := make([]Event, len(rows))
	for i, r := range rows {
		events[i] = Event{
			ID:        r.ID,
			Type:      r.Type,
			Timestamp: time.Unix(0, r.UnixNano),
			Source:    r.Source,
			Hash:      r.Hash,
			PrevHash:  r.PrevHash,
		}
		if err := json.Unmarshal([]byte(r.Content), &events[i].Content); err != nil {
			return nil, fmt.Errorf("unmarshal content of %s: %w", r.ID, err)
		}
	}
	return events, nil
}

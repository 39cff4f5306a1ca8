package task

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"followups/pkg/activity"
	"followups/pkg/application"
	"followups/pkg/calendar"
)

// DateCache caches the open-date set per calendar zone.
type DateCache interface {
	Load(ctx context.Context, zone string) (calendar.DateSet, bool, error)
	Save(ctx context.Context, zone string, dates calendar.DateSet) error
	Invalidate(ctx context.Context) error
}

// Service is the task lifecycle and scheduling engine.
type Service struct {
	tasks    Store
	apps     application.Lookup
	cal      calendar.Calendar
	now      Clock
	cache    DateCache    // optional
	activity activity.Log // optional
	sf       *singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(s *Service) { s.now = c } }

// WithCalendar sets the zone used for day math. Default is UTC.
func WithCalendar(c calendar.Calendar) Option { return func(s *Service) { s.cal = c } }

// WithDateCache caches open dates.
func WithDateCache(c DateCache) Option { return func(s *Service) { s.cache = c } }

// WithActivity records task.created and task.completed events.
func WithActivity(l activity.Log) Option { return func(s *Service) { s.activity = l } }

// NewService creates a Service over the given stores.
func NewService(tasks Store, apps application.Lookup, opts ...Option) *Service {
	s := &Service{
		tasks: tasks,
		apps:  apps,
		cal:   calendar.New(time.UTC),
		now:   time.Now,
		sf:    &singleflight.Group{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// In returns a view of the engine that does its day math in loc.
// Stores, cache and activity log are shared.
func (s *Service) In(loc *time.Location) *Service {
	cp := *s
	cp.cal = calendar.New(loc)
	return &cp
}

// Calendar returns the calendar the engine uses.
func (s *Service) Calendar() calendar.Calendar { return s.cal }

// Today returns the current local day.
func (s *Service) Today() calendar.Day { return s.cal.Today(s.now()) }

// Create validates req, inherits the application's tenant and stores a new
// open task.
func (s *Service) Create(ctx context.Context, req Request) (*Task, error) {
	now := s.now()
	v, err := Validate(req, now)
	if err != nil {
		return nil, err
	}

	app, err := s.apps.Get(ctx, v.ApplicationID)
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			return nil, &NotFoundError{Entity: "Application", ID: v.ApplicationID}
		}
		return nil, &PersistenceError{Op: "lookup application", Err: err}
	}

	ts := now.UTC().Truncate(time.Microsecond)
	t := &Task{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ApplicationID: app.ID,
		TenantID:      app.TenantID,
		Type:          v.Type,
		Status:        StatusOpen,
		Title:         v.Title,
		DueAt:         v.DueAt.UTC().Truncate(time.Microsecond),
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, &PersistenceError{Op: "create task", Err: err}
	}

	s.invalidateDates(ctx)
	s.record(ctx, activity.TaskCreated, t)
	return t, nil
}

// Get returns a task by ID.
func (s *Service) Get(ctx context.Context, raw string) (*Task, error) {
	id, ok := CanonicalID(raw)
	if !ok {
		return nil, &NotFoundError{Entity: "Task", ID: raw}
	}
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Entity: "Task", ID: id}
		}
		return nil, &PersistenceError{Op: "get task", Err: err}
	}
	return t, nil
}

// ListForDay returns tasks due within day, ordered by due time.
// Completed tasks are always excluded; exclude adds more statuses.
func (s *Service) ListForDay(ctx context.Context, day calendar.Day, exclude ...Status) ([]Task, error) {
	start, end := s.cal.Range(day)
	statuses := []Status{StatusCompleted}
	for _, st := range exclude {
		if st != StatusCompleted {
			statuses = append(statuses, st)
		}
	}
	tasks, err := s.tasks.DueBetween(ctx, start, end, statuses)
	if err != nil {
		return nil, &PersistenceError{Op: "list tasks for " + day.String(), Err: err}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// OpenDates returns the local days that have at least one task not yet
// completed.
func (s *Service) OpenDates(ctx context.Context) (calendar.DateSet, error) {
	zone := s.cal.Zone()
	if s.cache != nil {
		dates, ok, err := s.cache.Load(ctx, zone)
		if err != nil {
			log.Printf("engine: open dates cache load: %v", err)
		} else if ok {
			return dates, nil
		}
	}

	v, err, _ := s.sf.Do("open-dates:"+zone, func() (any, error) {
		times, err := s.tasks.OpenDueTimes(ctx)
		if err != nil {
			return nil, err
		}
		return s.cal.Project(times), nil
	})
	if err != nil {
		return nil, &PersistenceError{Op: "open dates", Err: err}
	}
	dates := v.(calendar.DateSet)

	if s.cache != nil {
		if err := s.cache.Save(ctx, zone, dates); err != nil {
			log.Printf("engine: open dates cache save: %v", err)
		}
	}
	return dates, nil
}

// Complete closes a task. Completing an already completed task succeeds
// and returns the stored record unchanged.
func (s *Service) Complete(ctx context.Context, raw string) (*Task, error) {
	id, ok := CanonicalID(raw)
	if !ok {
		return nil, &NotFoundError{Entity: "Task", ID: raw}
	}
	t, changed, err := s.tasks.Complete(ctx, id, s.now().UTC().Truncate(time.Microsecond))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Entity: "Task", ID: id}
		}
		return nil, &PersistenceError{Op: "complete task", Err: err}
	}
	if changed {
		s.invalidateDates(ctx)
		s.record(ctx, activity.TaskCompleted, t)
	}
	return t, nil
}

// Stats returns total and open task counts.
func (s *Service) Stats(ctx context.Context) (total, open int, err error) {
	total, open, err = s.tasks.Counts(ctx)
	if err != nil {
		return 0, 0, &PersistenceError{Op: "count tasks", Err: err}
	}
	return total, open, nil
}

func (s *Service) invalidateDates(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("engine: open dates cache invalidate: %v", err)
	}
}

func (s *Service) record(ctx context.Context, eventType string, t *Task) {
	if s.activity == nil {
		return
	}
	_, err := s.activity.Append(ctx, eventType, "engine", map[string]any{
		"task_id":        t.ID,
		"application_id": t.ApplicationID,
		"tenant_id":      t.TenantID,
		"type":           string(t.Type),
		"status":         string(t.Status),
		"due_at":         t.DueAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("engine: record %s for task %s: %v", eventType, t.ID, err)
	}
}

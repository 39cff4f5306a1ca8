package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Request is an unvalidated creation request as it arrives on the wire.
type Request struct {
	ApplicationID string `json:"application_id"`
	TaskType      string `json:"task_type"`
	DueAt         string `json:"due_at"`
	Title         string `json:"title,omitempty"`
}

// Validated is a request that passed every check.
type Validated struct {
	ApplicationID string
	Type          Type
	DueAt         time.Time
	Title         string
}

// Clock returns the current time.
type Clock func() time.Time

// timestampLayouts are tried in order when parsing due_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

type check func(Request, *Validated, time.Time) *ValidationError

// checks run in order; the first failure is reported.
var checks = []check{
	checkApplicationID,
	checkTaskType,
	checkDueAtPresent,
	checkDueAtParses,
	checkDueAtFuture,
}

// Validate checks req against now. It reports only the first failure.
func Validate(req Request, now time.Time) (Validated, error) {
	var v Validated
	for _, c := range checks {
		if err := c(req, &v, now); err != nil {
			return Validated{}, err
		}
	}
	v.Title = strings.TrimSpace(req.Title)
	return v, nil
}

// Validator binds Validate to a clock.
type Validator struct {
	Now Clock
}

// Validate checks req against the validator's clock.
func (v Validator) Validate(req Request) (Validated, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return Validate(req, now())
}

// checkApplicationID accepts any form uuid.Parse does and keeps the
// canonical lowercase hyphenated form, which is what every store holds.
func checkApplicationID(req Request, v *Validated, _ time.Time) *ValidationError {
	id, ok := CanonicalID(req.ApplicationID)
	if !ok {
		return &ValidationError{
			Kind:    KindMissingOrInvalidReference,
			Field:   "application_id",
			Message: "application_id is required and must be a valid UUID",
		}
	}
	v.ApplicationID = id
	return nil
}

// CanonicalID parses s as a UUID and returns its canonical string.
func CanonicalID(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return u.String(), true
}

func checkTaskType(req Request, v *Validated, _ time.Time) *ValidationError {
	t := Type(req.TaskType)
	if !t.Valid() {
		names := make([]string, len(Types))
		for i, tt := range Types {
			names[i] = string(tt)
		}
		return &ValidationError{
			Kind:    KindInvalidEnumValue,
			Field:   "task_type",
			Message: "task_type must be one of: " + strings.Join(names, ", "),
		}
	}
	v.Type = t
	return nil
}

func checkDueAtPresent(req Request, _ *Validated, _ time.Time) *ValidationError {
	if req.DueAt == "" {
		return &ValidationError{Kind: KindMissingField, Field: "due_at", Message: "due_at is required"}
	}
	return nil
}

func checkDueAtParses(req Request, v *Validated, _ time.Time) *ValidationError {
	s := strings.TrimSpace(req.DueAt)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Stores keep microseconds; compare what will be stored.
			v.DueAt = t.Truncate(time.Microsecond)
			return nil
		}
	}
	return &ValidationError{Kind: KindMalformedTimestamp, Field: "due_at", Message: "due_at must be a valid timestamp"}
}

func checkDueAtFuture(_ Request, v *Validated, now time.Time) *ValidationError {
	if !v.DueAt.After(now) {
		return &ValidationError{Kind: KindPastDueDate, Field: "due_at", Message: "due_at must be a future timestamp"}
	}
	return nil
}

package task

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func validRequest() Request {
	return Request{
		ApplicationID: "0192f1a4-6c1e-7a3b-9b8e-5f0c2d7e4a11",
		TaskType:      "call",
		DueAt:         "2026-10-15T09:00:00Z",
	}
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %T: %v", err, err)
	return ve.Kind
}

func TestValidateAccepts(t *testing.T) {
	req := validRequest()
	req.Title = "  Call about transcript  "
	v, err := Validate(req, validNow)
	require.NoError(t, err)

	assert.Equal(t, req.ApplicationID, v.ApplicationID)
	assert.Equal(t, TypeCall, v.Type)
	assert.True(t, v.DueAt.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Call about transcript", v.Title)
}

func TestValidateEveryType(t *testing.T) {
	for _, typ := range Types {
		req := validRequest()
		req.TaskType = string(typ)
		_, err := Validate(req, validNow)
		assert.NoError(t, err, "type %s", typ)
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		kind   Kind
		msg    string
	}{
		{"missing application", func(r *Request) { r.ApplicationID = "" }, KindMissingOrInvalidReference, "application_id is required and must be a valid UUID"},
		{"malformed application", func(r *Request) { r.ApplicationID = "app-1" }, KindMissingOrInvalidReference, "application_id is required and must be a valid UUID"},
		{"missing type", func(r *Request) { r.TaskType = "" }, KindInvalidEnumValue, "task_type must be one of: call, email, review"},
		{"unknown type", func(r *Request) { r.TaskType = "meeting" }, KindInvalidEnumValue, "task_type must be one of: call, email, review"},
		{"type is case sensitive", func(r *Request) { r.TaskType = "Call" }, KindInvalidEnumValue, "task_type must be one of: call, email, review"},
		{"missing due", func(r *Request) { r.DueAt = "" }, KindMissingField, "due_at is required"},
		{"blank due", func(r *Request) { r.DueAt = "   " }, KindMalformedTimestamp, "due_at must be a valid timestamp"},
		{"malformed due", func(r *Request) { r.DueAt = "tomorrow at nine" }, KindMalformedTimestamp, "due_at must be a valid timestamp"},
		{"due without zone", func(r *Request) { r.DueAt = "2026-10-15T09:00:00" }, KindMalformedTimestamp, "due_at must be a valid timestamp"},
		{"past due", func(r *Request) { r.DueAt = "2026-10-13T12:00:00Z" }, KindPastDueDate, "due_at must be a future timestamp"},
		{"due equals now", func(r *Request) { r.DueAt = validNow.Format(time.RFC3339Nano) }, KindPastDueDate, "due_at must be a future timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := Validate(req, validNow)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(t, err))
			assert.Equal(t, tt.msg, err.Error())
			assert.True(t, IsClientError(err))
		})
	}
}

func TestValidateFirstFailureWins(t *testing.T) {
	req := Request{ApplicationID: "nope", TaskType: "meeting", DueAt: "garbage"}
	_, err := Validate(req, validNow)
	assert.Equal(t, KindMissingOrInvalidReference, kindOf(t, err))

	req.ApplicationID = validRequest().ApplicationID
	_, err = Validate(req, validNow)
	assert.Equal(t, KindInvalidEnumValue, kindOf(t, err))

	req.TaskType = "email"
	_, err = Validate(req, validNow)
	assert.Equal(t, KindMalformedTimestamp, kindOf(t, err))
}

func TestValidateSubMicrosecondDue(t *testing.T) {
	req := validRequest()
	req.DueAt = validNow.Add(500 * time.Nanosecond).Format(time.RFC3339Nano)
	_, err := Validate(req, validNow)
	assert.Equal(t, KindPastDueDate, kindOf(t, err), "rounds down to now once stored")

	req.DueAt = validNow.Add(time.Microsecond).Format(time.RFC3339Nano)
	v, err := Validate(req, validNow)
	require.NoError(t, err)
	assert.True(t, v.DueAt.After(validNow))

	req.DueAt = validNow.Add(1500 * time.Nanosecond).Format(time.RFC3339Nano)
	v, err = Validate(req, validNow)
	require.NoError(t, err)
	assert.True(t, v.DueAt.Equal(validNow.Add(time.Microsecond)))
}

func TestValidateCanonicalApplicationID(t *testing.T) {
	const canonical = "0192f1a4-6c1e-7a3b-9b8e-5f0c2d7e4a11"
	for _, form := range []string{
		canonical,
		strings.ToUpper(canonical),
		"{" + canonical + "}",
		"urn:uuid:" + canonical,
		strings.ReplaceAll(canonical, "-", ""),
	} {
		req := validRequest()
		req.ApplicationID = form
		v, err := Validate(req, validNow)
		require.NoError(t, err, form)
		assert.Equal(t, canonical, v.ApplicationID, form)
	}
}

func TestValidateOffsetTimestamp(t *testing.T) {
	req := validRequest()
	req.DueAt = "2026-10-14T08:30:00-04:00" // 12:30 UTC
	v, err := Validate(req, validNow)
	require.NoError(t, err)
	assert.True(t, v.DueAt.Equal(time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)))
}

func TestValidatorUsesClock(t *testing.T) {
	v := Validator{Now: func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }}
	_, err := v.Validate(validRequest())
	assert.Equal(t, KindPastDueDate, kindOf(t, err))
}

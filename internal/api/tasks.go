package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"followups/pkg/calendar"
	"followups/pkg/task"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req task.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	t, err := s.engine.Create(r.Context(), req)
	if err != nil {
		s.writeTaskError(w, err, "Failed to create task", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "task_id": t.ID})
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err, "Failed to get task", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskComplete(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeTaskError(w, err, "Failed to complete task", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDayTasks(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.viewer(w, r)
	if !ok {
		return
	}

	var day calendar.Day
	if raw := r.PathValue("date"); raw == "today" {
		day = engine.Today()
	} else {
		d, err := calendar.ParseDay(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or today")
			return
		}
		day = d
	}

	var exclude []task.Status
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := task.Status(strings.TrimSpace(part))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "exclude must list statuses from: open, in_progress, completed")
				return
			}
			exclude = append(exclude, st)
		}
	}

	tasks, err := engine.ListForDay(r.Context(), day, exclude...)
	if err != nil {
		s.writeTaskError(w, err, "Failed to list tasks", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":      day.String(),
		"time_zone": engine.Calendar().Zone(),
		"tasks":     tasks,
	})
}

func (s *Server) handleOpenDates(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.viewer(w, r)
	if !ok {
		return
	}
	dates, err := engine.OpenDates(r.Context())
	if err != nil {
		s.writeTaskError(w, err, "Failed to load open dates", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"time_zone": engine.Calendar().Zone(),
		"dates":     dates.Strings(),
	})
}

// viewer returns the engine bound to the request's tz, if any.
func (s *Server) viewer(w http.ResponseWriter, r *http.Request) (*task.Service, bool) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return s.engine, true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest, "tz must be an IANA time zone name")
		return nil, false
	}
	return s.engine.In(loc), true
}

// writeTaskError maps engine errors onto responses. notFound is the status
// used for a missing reference: creation reports it as a bad request.
func (s *Server) writeTaskError(w http.ResponseWriter, err error, failure string, notFound int) {
	var ve *task.ValidationError
	var pe *task.PersistenceError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, task.ErrReferenceNotFound):
		writeError(w, notFound, err.Error())
	case errors.As(err, &pe):
		log.Printf("api: %s: %v", failure, err)
		writeError(w, http.StatusInternalServerError, failure)
	default:
		log.Printf("api: unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

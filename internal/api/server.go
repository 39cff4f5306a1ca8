package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"followups/pkg/activity"
	"followups/pkg/task"
)

// Server is the HTTP API server.
type Server struct {
	engine *task.Service
	events *activity.Bus
	mux    *http.ServeMux
}

// New creates a new Server.
func New(engine *task.Service, events *activity.Bus) *Server {
	s := &Server{
		engine: engine,
		events: events,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks. Creation checks the method itself so the 405 body is JSON.
	s.mux.HandleFunc("/api/tasks", s.handleTaskCreate)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleTaskGet)
	s.mux.HandleFunc("POST /api/tasks/{id}/complete", s.handleTaskComplete)

	// Calendar
	s.mux.HandleFunc("GET /api/days/{date}/tasks", s.handleDayTasks)
	s.mux.HandleFunc("GET /api/calendar/open-dates", s.handleOpenDates)

	// Activity
	s.mux.HandleFunc("GET /api/activity", s.handleActivityList)
	s.mux.HandleFunc("GET /api/activity/stream", s.handleActivityStream)

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

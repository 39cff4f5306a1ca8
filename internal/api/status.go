package api

import (
	"log"
	"net/http"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	total, open, err := s.engine.Stats(ctx)
	if err != nil {
		log.Printf("api: status: %v", err)
		writeError(w, 500, "Failed to load status")
		return
	}
	eventCount, err := s.events.Count(ctx)
	if err != nil {
		log.Printf("api: status: count activity: %v", err)
	}

	writeJSON(w, 200, map[string]any{
		"tasks":     total,
		"open":      open,
		"completed": total - open,
		"activity":  eventCount,
		"time_zone": s.engine.Calendar().Zone(),
		"today":     s.engine.Today().String(),
	})
}

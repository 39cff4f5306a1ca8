package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"followups/pkg/activity"
)

const keepAliveInterval = 15 * time.Second

func (s *Server) handleActivityList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryInt(r, "limit", 50)

	if raw := r.URL.Query().Get("after"); raw != "" {
		u, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, 400, "after must be an activity id")
			return
		}
		after := u.String()
		events, err := s.events.Since(ctx, after, limit)
		if err != nil {
			log.Printf("api: activity since %s: %v", after, err)
			writeError(w, 500, "Failed to load activity")
			return
		}
		writeJSON(w, 200, nonNil(events))
		return
	}

	events, err := s.events.Recent(ctx, limit)
	if err != nil {
		log.Printf("api: recent activity: %v", err)
		writeError(w, 500, "Failed to load activity")
		return
	}
	writeJSON(w, 200, nonNil(events))
}

func nonNil(events []activity.Event) []activity.Event {
	if events == nil {
		return []activity.Event{}
	}
	return events
}

// streamFilter reads tenant_id and type (repeatable or comma separated)
// from the query.
func streamFilter(r *http.Request) (activity.Filter, error) {
	q := r.URL.Query()
	var f activity.Filter
	if tenant := q.Get("tenant_id"); tenant != "" {
		u, err := uuid.Parse(tenant)
		if err != nil {
			return f, errors.New("tenant_id must be a valid UUID")
		}
		f.TenantID = u.String()
	}
	for _, v := range q["type"] {
		for _, typ := range strings.Split(v, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				f.Types = append(f.Types, typ)
			}
		}
	}
	return f, nil
}

// handleActivityStream pushes new activity as server-sent events.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	filter, err := streamFilter(r)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	ch := s.events.Subscribe(filter)
	defer s.events.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case e, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Printf("api: encode activity %s: %v", e.ID, err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stagecue/stagecue-core/internal/audit"
	"github.com/stagecue/stagecue-core/internal/event"
)

// handleListFields returns the persisted state of every known field.
func (s *Server) handleListFields(w http.ResponseWriter, _ *http.Request) {
	states, err := s.fields.List()
	if err != nil {
		s.logger.Error("failed to list field states", "error", err)
		writeInternalError(w, "failed to list field states")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields": states,
		"count":  len(states),
	})
}

// handleGetField returns the state of a single field. A field that has never
// produced an event reports standby.
func (s *Server) handleGetField(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/\\.") {
		writeBadRequest(w, "invalid field id")
		return
	}

	state, err := s.fields.Read(id)
	if err != nil {
		s.logger.Error("failed to read field state", "field_id", id, "error", err)
		writeInternalError(w, "failed to read field state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleScheduledView returns the scheduled-match view for displays.
func (s *Server) handleScheduledView(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.scheduled.List()
	if err != nil {
		s.logger.Error("failed to read scheduled view", "error", err)
		writeInternalError(w, "failed to read scheduled view")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": entries,
		"count":   len(entries),
	})
}

// handlePopupsView returns the popup view, hiding entries that have expired.
func (s *Server) handlePopupsView(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.popups.List(time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to read popup view", "error", err)
		writeInternalError(w, "failed to read popup view")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"popups": entries,
		"count":  len(entries),
	})
}

// handleListAudit returns a filtered, paginated slice of the audit trail.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "audit trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		EventType: q.Get("event_type"),
		FieldID:   q.Get("field_id"),
		Status:    q.Get("status"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePostEvent accepts an event for asynchronous processing.
//
// The event is validated and enqueued without waiting for processing; the
// response is 202 Accepted with the event ID. When the queue is full the
// connector gets a 503 with a Retry-After hint so it can back off and retry
// rather than drop the event.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var ev event.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeBadRequest(w, "invalid event JSON: "+err.Error())
		return
	}

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := ev.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.queue.TryEnqueue(ev); err != nil {
		if errors.Is(err, event.ErrQueueFull) {
			s.logger.Warn("event queue full, rejecting event",
				"event_id", ev.ID,
				"event_type", ev.Type,
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event queue full")
			return
		}
		s.logger.Error("failed to enqueue event", "event_id", ev.ID, "error", err)
		writeInternalError(w, "failed to enqueue event")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"id":     ev.ID,
		"status": "accepted",
	})
}

// handleControlReload re-reads the control file from disk. On validation
// failure the previous snapshot stays active and the error is returned to
// the operator.
func (s *Server) handleControlReload(w http.ResponseWriter, _ *http.Request) {
	if s.control == nil {
		writeNotFound(w, "control configuration not configured")
		return
	}
	if err := s.control.Reload(); err != nil {
		s.logger.Warn("control reload rejected", "error", err)
		writeBadRequest(w, err.Error())
		return
	}
	s.logger.Info("control configuration reloaded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded"})
}

// handleMappingsReload re-reads the action mapping file from disk. On parse
// failure the previous mapping stays active.
func (s *Server) handleMappingsReload(w http.ResponseWriter, _ *http.Request) {
	if s.mappings == nil {
		writeNotFound(w, "action mappings not configured")
		return
	}
	if err := s.mappings.Reload(); err != nil {
		s.logger.Warn("mapping reload rejected", "error", err)
		writeBadRequest(w, err.Error())
		return
	}
	s.logger.Info("action mappings reloaded")
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded"})
}

package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stagecue/stagecue-core/internal/audit"
	"github.com/stagecue/stagecue-core/internal/automation"
	"github.com/stagecue/stagecue-core/internal/control"
	"github.com/stagecue/stagecue-core/internal/event"
	"github.com/stagecue/stagecue-core/internal/field"
	"github.com/stagecue/stagecue-core/internal/infrastructure/config"
	"github.com/stagecue/stagecue-core/internal/infrastructure/logging"
	"github.com/stagecue/stagecue-core/internal/views"
)

// testServer creates a Server backed by temp-dir file stores and an
// in-memory SQLite audit repository.
func testServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()

	fields, err := field.NewStore(filepath.Join(dir, "fields"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	controlPath := filepath.Join(dir, "control.json")
	if writeErr := os.WriteFile(controlPath, []byte(`{"schedule_lead_matches": 2}`), 0o644); writeErr != nil {
		t.Fatalf("write control file: %v", writeErr)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	ctrl, err := control.NewProvider(controlPath, log)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	mappingPath := filepath.Join(dir, "actions.json")
	mappings, err := automation.NewMappingProvider(mappingPath, log)
	if err != nil {
		t.Fatalf("NewMappingProvider: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:    log,
		Fields:    fields,
		Scheduled: views.NewScheduledStore(filepath.Join(dir, "scheduled.json")),
		Popups:    views.NewPopupStore(filepath.Join(dir, "popups.json")),
		AuditRepo: audit.NewSQLiteRepository(setupAuditDB(t)),
		Queue:     event.NewQueue(8),
		Control:   ctrl,
		Mappings:  mappings,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv
}

// setupAuditDB creates an in-memory SQLite database with the audit schema.
func setupAuditDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE audit_entries (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			field_id TEXT,
			outcomes TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_audit_event_type ON audit_entries(event_type);
		CREATE INDEX idx_audit_field_id ON audit_entries(field_id);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Field State Tests ─────────────────────────────────────────────

func TestListFields_Empty(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestListFields_AfterWrite(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	if err := srv.fields.Write(field.FieldState{
		FieldID:     "1",
		State:       field.StateActive,
		MatchID:     "qm-12",
		MatchName:   "Q12",
		LastUpdated: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Fields []field.FieldState `json:"fields"`
		Count  int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	if resp.Fields[0].State != field.StateActive {
		t.Errorf("state = %q, want %q", resp.Fields[0].State, field.StateActive)
	}
}

func TestGetField_UnknownDefaultsToStandby(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields/3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var st field.FieldState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.State != field.StateStandby {
		t.Errorf("state = %q, want %q", st.State, field.StateStandby)
	}
	if st.FieldID != "3" {
		t.Errorf("field_id = %q, want %q", st.FieldID, "3")
	}
}

func TestGetField_RejectsPathCharacters(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/fields/..%2fescape", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── View Tests ────────────────────────────────────────────────────

func TestScheduledView(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	if err := srv.scheduled.Upsert(views.ScheduledMatchEntry{
		MatchID:       "qm-7",
		MatchName:     "Q7",
		FieldID:       "2",
		ScheduledTime: time.Now().UTC().Add(10 * time.Minute),
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/views/scheduled", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp struct {
		Matches []views.ScheduledMatchEntry `json:"matches"`
		Count   int                         `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Matches[0].MatchID != "qm-7" {
		t.Errorf("unexpected scheduled view: %+v", resp)
	}
}

func TestPopupsView_HidesExpired(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	now := time.Now().UTC()
	for _, p := range []views.PopupEntry{
		{ID: "live", Title: "Up Next", Start: now, End: now.Add(time.Minute)},
		{ID: "stale", Title: "Old", Start: now.Add(-2 * time.Minute), End: now.Add(-time.Minute)},
	} {
		if err := srv.popups.Upsert(p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/views/popups", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp struct {
		Popups []views.PopupEntry `json:"popups"`
		Count  int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || resp.Popups[0].ID != "live" {
		t.Errorf("expected only live popup, got %+v", resp)
	}
}

// ─── Event Ingestion Tests ─────────────────────────────────────────

func TestPostEvent_Accepted(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	body := `{"type": "matchStarted", "field": "1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "accepted" {
		t.Errorf("status = %v, want accepted", resp["status"])
	}
	if resp["id"] == "" {
		t.Error("expected generated event id")
	}

	if srv.queue.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", srv.queue.Len())
	}
}

func TestPostEvent_PreservesClientID(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	body := `{"id": "evt-42", "type": "fieldActivated", "field": "1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["id"] != "evt-42" {
		t.Errorf("id = %v, want evt-42", resp["id"])
	}
}

func TestPostEvent_UnknownTypeRejected(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	body := `{"type": "somethingElse", "field": "1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if srv.queue.Len() != 0 {
		t.Errorf("queue depth = %d, want 0", srv.queue.Len())
	}
}

func TestPostEvent_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPostEvent_QueueFullBackpressure(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Fill the queue to capacity (no engine is draining it in this test).
	for i := 0; i < srv.queue.Cap(); i++ {
		ev := event.New(event.TypeMatchStarted, fmt.Sprintf("%d", i), nil)
		if err := srv.queue.TryEnqueue(ev); err != nil {
			t.Fatalf("TryEnqueue %d: %v", i, err)
		}
	}

	body := `{"type": "matchStarted", "field": "1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on backpressure response")
	}
}

// ─── Audit Tests ───────────────────────────────────────────────────

func TestListAudit(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	entry := &audit.Entry{
		EventID:   "evt-1",
		EventType: event.TypeMatchStarted,
		FieldID:   "1",
		Outcomes: []automation.Outcome{
			{ActionID: "act-1", Category: automation.CategoryLighting, Status: automation.StatusSuccess, Attempts: 1},
		},
	}
	if err := srv.auditRepo.Create(context.Background(), entry); err != nil {
		t.Fatalf("Create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit?event_type=matchStarted", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp audit.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Total != 1 || len(resp.Entries) != 1 {
		t.Fatalf("total = %d, entries = %d, want 1/1", resp.Total, len(resp.Entries))
	}
	if resp.Entries[0].EventID != "evt-1" {
		t.Errorf("event_id = %q, want evt-1", resp.Entries[0].EventID)
	}
}

func TestListAudit_InvalidLimit(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit?limit=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Reload Tests ──────────────────────────────────────────────────

func TestControlReload(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestControlReload_InvalidFileKeepsSnapshot(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	// Corrupt the control file after the provider loaded a valid snapshot.
	if err := os.WriteFile(srv.control.Path(), []byte(`{"schedule_lead_matches": -1}`), 0o644); err != nil {
		t.Fatalf("write control file: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/control/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// Old snapshot still active
	if srv.control.Current().ScheduleLeadMatches != 2 {
		t.Errorf("lead = %d, want 2 (previous snapshot)", srv.control.Current().ScheduleLeadMatches)
	}
}

func TestMappingsReload(t *testing.T) {
	srv := testServer(t)
	router := srv.buildRouter()

	mapping := `{"on_event": {"matchStarted": {"all": [{"category": "audio", "audio": {"command": "play_track", "track": "start.wav"}}]}}}`
	if err := os.WriteFile(srv.mappings.Path(), []byte(mapping), 0o644); err != nil {
		t.Fatalf("write mapping file: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mappings/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if !automation.HasKey(srv.mappings.Current().OnEvent, event.TypeMatchStarted) {
		t.Error("expected reloaded mapping to contain matchStarted rules")
	}
}

// ─── Lifecycle Tests ───────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv := testServer(t)
	srv.hub = nil // Start() creates its own hub

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestServer_HealthCheckNotStarted(t *testing.T) {
	srv := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check to fail before Start()")
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func TestHub_ClientCount(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: make(map[string]struct{})}
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0 after unregister", hub.ClientCount())
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	subscribed := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{"field.state": {}}}
	other := &WSClient{hub: hub, send: make(chan []byte, 1), subscriptions: make(map[string]struct{})}
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast("field.state", map[string]any{"field_id": "1", "state": "active"})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != "field.state" {
			t.Errorf("got message %+v, want event on field.state", msg)
		}
	default:
		t.Fatal("subscribed client received no message")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received a message")
	default:
	}
}

package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stagecue/stagecue-core/internal/control"
	"github.com/stagecue/stagecue-core/internal/event"
	"github.com/stagecue/stagecue-core/internal/field"
	"github.com/stagecue/stagecue-core/internal/views"
)

// ConfigSource provides the active operational config snapshot.
type ConfigSource interface {
	Current() *control.Config
}

// Auditor records per-event processing outcomes.
type Auditor interface {
	Record(ctx context.Context, eventID, eventType, fieldID string, outcomes []Outcome) error
}

// WSHub is the interface for broadcasting events to UI clients.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Telemetry receives processing metrics. May be absent.
type Telemetry interface {
	WriteEventMetric(eventType, fieldID string, durationMS float64, actionsRun, actionsFailed int) error
	WriteActionMetric(category, target, status string, attempts int, durationMS float64) error
	WriteQueueMetric(depth, capacity int) error
}

// defaultPopupDuration applies when a popup payload omits its duration.
const defaultPopupDuration = 30 * time.Second

// EngineDeps collects the engine's collaborators and tuning knobs.
type EngineDeps struct {
	Queue       *event.Queue
	Fields      *field.Store
	Config      ConfigSource
	Mappings    *MappingProvider
	Dispatchers map[string]Dispatcher
	Auditor     Auditor
	Scheduled   *views.ScheduledStore
	Popups      *views.PopupStore

	Hub       WSHub     // optional
	Telemetry Telemetry // optional
	Logger    Logger

	SweepInterval time.Duration
	ViewGrace     time.Duration
	DedupeWindow  int
}

// Engine is the single consumer of the event queue. It validates events,
// applies field-state transitions, resolves action mappings against one
// config snapshot per event, dispatches to device collaborators, and
// records audit entries. All canonical-state mutation happens here.
type Engine struct {
	queue       *event.Queue
	fields      *field.Store
	config      ConfigSource
	mappings    *MappingProvider
	dispatchers map[string]Dispatcher
	auditor     Auditor
	scheduled   *views.ScheduledStore
	popups      *views.PopupStore
	hub         WSHub
	telemetry   Telemetry
	logger      Logger

	sweepInterval time.Duration
	viewGrace     time.Duration
	deduper       *event.Deduper

	// deferred holds match_scheduled events held back by the quiet
	// window, re-examined on each sweep tick. Only the engine goroutine
	// touches it.
	deferred []event.Event
}

// NewEngine creates the event processor.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	sweep := deps.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Second
	}
	grace := deps.ViewGrace
	if grace <= 0 {
		grace = 10 * time.Minute
	}

	return &Engine{
		queue:         deps.Queue,
		fields:        deps.Fields,
		config:        deps.Config,
		mappings:      deps.Mappings,
		dispatchers:   deps.Dispatchers,
		auditor:       deps.Auditor,
		scheduled:     deps.Scheduled,
		popups:        deps.Popups,
		hub:           deps.Hub,
		telemetry:     deps.Telemetry,
		logger:        logger,
		sweepInterval: sweep,
		viewGrace:     grace,
		deduper:       event.NewDeduper(deps.DedupeWindow),
	}
}

// Run drains the queue until ctx is cancelled. It must be the only
// consumer; the single-consumer discipline is what serializes state
// mutation across fields.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	e.logger.Info("event processor started", "sweep_interval", e.sweepInterval)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("event processor stopping")
			return ctx.Err()
		case now := <-ticker.C:
			e.sweep(ctx, now)
		case ev := <-e.queue.Events():
			e.process(ctx, ev)
		}
	}
}

// process handles one dequeued event end to end.
func (e *Engine) process(ctx context.Context, ev event.Event) {
	e.processEvent(ctx, ev, false)
}

func (e *Engine) processEvent(ctx context.Context, ev event.Event, redelivery bool) {
	start := time.Now()

	if !redelivery && e.deduper.Seen(ev.ID) {
		e.logger.Debug("duplicate event dropped", "event_id", ev.ID, "type", ev.Type)
		return
	}

	if err := ev.Validate(); err != nil {
		e.logger.Warn("event rejected", "event_id", ev.ID, "type", ev.Type, "error", err)
		return
	}

	// Display events arrive without a field; attribute them to the field
	// currently on screen (the most recently updated active one).
	if ev.Type == event.TypeAudienceDisplayChanged && ev.Field == "" {
		if st, ok, err := e.fields.MostRecentActive(); err != nil {
			e.logger.Error("active field lookup failed", "event_id", ev.ID, "error", err)
		} else if ok {
			ev.Field = st.FieldID
			e.logger.Debug("display event attributed to active field", "event_id", ev.ID, "field", ev.Field)
		}
	}

	// One snapshot per decision. Nothing below re-reads config or mappings.
	cfg := e.config.Current()
	mapping := e.mappings.Current()

	var outcomes []Outcome
	transitionKey := ""

	switch ev.Type {
	case event.TypeMatchScheduled:
		outcome, held := e.handleMatchScheduled(ev, cfg)
		if held {
			// The whole event is held back until the quiet window ends; its
			// mapped actions run once, on redelivery. Record the deferral and
			// stop here.
			e.deferred = append(e.deferred, ev)
			if e.auditor != nil {
				if err := e.auditor.Record(ctx, ev.ID, ev.Type, ev.Field, []Outcome{outcome}); err != nil {
					e.logger.Error("audit record failed", "event_id", ev.ID, "error", err)
				}
			}
			e.logger.Info("event deferred until quiet window ends", "event_id", ev.ID, "type", ev.Type)
			return
		}
		outcomes = append(outcomes, outcome)
	case event.TypeManualPopup:
		outcomes = append(outcomes, e.handleManualPopup(ev))
	case event.TypeManualAction:
		outcomes = append(outcomes, e.handleManualAction(ctx, ev, cfg))
	default:
		key, invalid := e.applyTransition(ev)
		transitionKey = key
		if invalid {
			outcomes = append(outcomes, Outcome{Status: StatusInvalidTransition})
		}
	}

	// Relevance: no transition, no special handling, no mapping for the
	// type means the event is archived with no side effects.
	if len(outcomes) == 0 && transitionKey == "" && !HasKey(mapping.OnEvent, ev.Type) {
		e.logger.Debug("irrelevant event discarded", "event_id", ev.ID, "type", ev.Type)
		return
	}

	actions := Resolve(mapping.OnEvent, ev.Type, ev.Field)
	if transitionKey != "" {
		actions = append(actions, Resolve(mapping.OnStateChange, transitionKey, ev.Field)...)
	}

	failed := 0
	for _, a := range actions {
		outcome := e.dispatchAction(ctx, cfg, ev, a)
		if outcome.Status == StatusFailure {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}

	if len(outcomes) > 0 && e.auditor != nil {
		if err := e.auditor.Record(ctx, ev.ID, ev.Type, ev.Field, outcomes); err != nil {
			e.logger.Error("audit record failed", "event_id", ev.ID, "error", err)
		}
	}

	durationMS := float64(time.Since(start).Microseconds()) / 1000

	if e.hub != nil {
		e.hub.Broadcast("event.processed", map[string]any{
			"event_id":    ev.ID,
			"type":        ev.Type,
			"field":       ev.Field,
			"transition":  transitionKey,
			"actions":     len(actions),
			"duration_ms": durationMS,
		})
	}

	if e.telemetry != nil {
		if err := e.telemetry.WriteEventMetric(ev.Type, ev.Field, durationMS, len(actions), failed); err != nil {
			e.logger.Debug("event telemetry write skipped", "error", err)
		}
	}

	e.logger.Info("event processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"field", ev.Field,
		"transition", transitionKey,
		"actions", len(actions),
		"failed", failed,
		"duration_ms", durationMS,
	)
}

// applyTransition computes and persists the field-state change an event
// requests, if any. Returns the "old->new" mapping key when a transition
// was applied, and whether an invalid transition was requested.
func (e *Engine) applyTransition(ev event.Event) (string, bool) {
	target, ok := field.TargetState(ev.Type)
	if !ok || ev.Field == "" {
		return "", false
	}

	prev, err := e.fields.Read(ev.Field)
	if err != nil {
		e.logger.Error("field state read failed", "event_id", ev.ID, "field", ev.Field, "error", err)
		return "", false
	}

	if !field.Allowed(prev.State, target) {
		e.logger.Warn("invalid transition requested",
			"event_id", ev.ID,
			"field", ev.Field,
			"from", prev.State,
			"to", target,
		)
		return "", true
	}

	next := prev
	next.State = target
	next.LastUpdated = ev.Timestamp
	if next.LastUpdated.IsZero() {
		next.LastUpdated = time.Now().UTC()
	}

	switch ev.Type {
	case event.TypeFieldMatchAssigned:
		if name := FormatMatchName(ev.Payload["match"]); name != "" {
			next.MatchName = name
		}
		if id := ev.PayloadString("match_id"); id != "" {
			next.MatchID = id
		}
	case event.TypeFieldReset, event.TypeMatchAborted:
		next.MatchID = ""
		next.MatchName = ""
	}

	if err := e.fields.Write(next); err != nil {
		e.logger.Error("field state write failed", "event_id", ev.ID, "field", ev.Field, "error", err)
		return "", false
	}

	e.logger.Info("field state updated",
		"field", ev.Field,
		"from", prev.State,
		"to", target,
		"match", next.MatchName,
	)

	if e.hub != nil {
		e.hub.Broadcast("field.state", next)
	}

	if prev.State == target {
		// Reset on an already-standby field: persisted, but no
		// transition occurred, so no state-change mappings fire.
		return "", false
	}

	return field.TransitionKey(prev.State, target), false
}

// dispatchAction routes one resolved action through the pause check and the
// category's dispatcher.
func (e *Engine) dispatchAction(ctx context.Context, cfg *control.Config, ev event.Event, a Action) Outcome {
	a = a.WithID()

	// Route video cues without an explicit camera through the field's
	// configured camera.
	if a.Video != nil && a.Video.CameraID == "" && ev.Field != "" {
		if cam := cfg.CameraForField(ev.Field); cam != "" {
			cue := *a.Video
			cue.CameraID = cam
			a.Video = &cue
		}
	}

	// Numbered-playlist audio cues pick their track from the field's
	// current match name.
	if a.Audio != nil && a.Audio.Command == "play_playlist_track" && a.Audio.TrackNumber == nil && ev.Field != "" {
		if st, err := e.fields.Read(ev.Field); err == nil {
			if n, ok := MatchNumber(st.MatchName); ok {
				cue := *a.Audio
				cue.TrackNumber = &n
				a.Audio = &cue
			}
		}
	}

	if cfg.CategoryPaused(a.Category) {
		e.logger.Info("action skipped, category paused",
			"event_id", ev.ID,
			"action_id", a.ID,
			"category", a.Category,
		)
		return Outcome{ActionID: a.ID, Category: a.Category, Status: StatusSkippedPaused}
	}

	d, ok := e.dispatchers[a.Category]
	if !ok {
		e.logger.Error("no dispatcher for category", "action_id", a.ID, "category", a.Category)
		return Outcome{
			ActionID: a.ID,
			Category: a.Category,
			Status:   StatusFailure,
			Error:    ErrNoDispatcher.Error(),
		}
	}

	outcome := d.Execute(ctx, a)

	if e.telemetry != nil {
		if err := e.telemetry.WriteActionMetric(a.Category, a.Target(), outcome.Status, outcome.Attempts, outcome.DurationMS); err != nil {
			e.logger.Debug("action telemetry write skipped", "error", err)
		}
	}

	return outcome
}

// handleMatchScheduled updates the scheduled-matches view, and creates room
// popups when the notification names rooms. During the quiet window the
// event is held for the next sweep instead.
func (e *Engine) handleMatchScheduled(ev event.Event, cfg *control.Config) (Outcome, bool) {
	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if cfg.MatchQueuePause.Active(time.Now().UTC()) {
		e.logger.Info("match notification deferred, quiet window active", "event_id", ev.ID)
		return Outcome{Status: StatusDeferred}, true
	}

	entry := views.ScheduledMatchEntry{
		MatchID:    ev.PayloadString("match_id"),
		DivisionID: ev.PayloadString("division_id"),
		MatchName:  ev.PayloadString("match_name"),
		Teams:      payloadStrings(ev.Payload["teams"]),
		FieldID:    ev.PayloadString("field_id"),
		RoomIDs:    payloadStrings(ev.Payload["room_ids"]),
	}
	if ts, err := time.Parse(time.RFC3339, ev.PayloadString("scheduled_time")); err == nil {
		entry.ScheduledTime = ts
	} else {
		entry.ScheduledTime = now
	}
	if entry.MatchID == "" {
		e.logger.Warn("match notification missing match_id", "event_id", ev.ID)
		return Outcome{Status: StatusFailure, Error: "missing match_id"}, false
	}

	if err := e.scheduled.Upsert(entry); err != nil {
		e.logger.Error("scheduled view update failed", "event_id", ev.ID, "error", err)
		return Outcome{Status: StatusFailure, Error: err.Error()}, false
	}

	if len(entry.RoomIDs) > 0 {
		popup := views.PopupEntry{
			ID:      uuid.New().String(),
			RoomIDs: entry.RoomIDs,
			Title:   ev.PayloadString("title"),
			Message: ev.PayloadString("message"),
			MatchID: entry.MatchID,
			Kind:    "toast",
			Source:  "match_scheduler",
			Start:   now,
			End:     now.Add(defaultPopupDuration),
		}
		if err := e.popups.Upsert(popup); err != nil {
			e.logger.Error("popup creation failed", "event_id", ev.ID, "error", err)
		} else if e.hub != nil {
			e.hub.Broadcast("popup.created", popup)
		}
	}

	e.logger.Info("scheduled view updated", "event_id", ev.ID, "match_id", entry.MatchID)
	return Outcome{Status: StatusSuccess}, false
}

// handleManualPopup validates an operator popup and writes it to the view.
func (e *Engine) handleManualPopup(ev event.Event) Outcome {
	message := ev.PayloadString("message")
	if message == "" {
		e.logger.Warn("popup rejected, missing message", "event_id", ev.ID)
		return Outcome{Status: StatusFailure, Error: "missing message"}
	}

	duration := defaultPopupDuration
	if secs, ok := ev.PayloadFloat("duration"); ok && secs > 0 {
		duration = time.Duration(secs * float64(time.Second))
	}

	priority := 0
	if p, ok := ev.PayloadFloat("priority"); ok {
		priority = int(p)
	}

	start := ev.Timestamp
	if start.IsZero() {
		start = time.Now().UTC()
	}

	popup := views.PopupEntry{
		ID:       ev.ID,
		RoomIDs:  payloadStrings(ev.Payload["room_ids"]),
		Title:    ev.PayloadString("title"),
		Message:  message,
		MatchID:  ev.PayloadString("match_id"),
		Team:     ev.PayloadString("team"),
		Kind:     "manual",
		Priority: priority,
		Source:   "operator",
		Start:    start,
		End:      start.Add(duration),
	}
	if room := ev.PayloadString("room_id"); room != "" && len(popup.RoomIDs) == 0 {
		popup.RoomIDs = []string{room}
	}

	if err := e.popups.Upsert(popup); err != nil {
		e.logger.Error("popup view update failed", "event_id", ev.ID, "error", err)
		return Outcome{Status: StatusFailure, Error: err.Error()}
	}

	if e.hub != nil {
		e.hub.Broadcast("popup.created", popup)
	}

	e.logger.Info("popup created", "event_id", ev.ID, "popup_id", popup.ID, "end", popup.End)
	return Outcome{Status: StatusSuccess}
}

// handleManualAction decodes an operator-submitted raw action and runs it
// through the regular pause/dispatch path.
func (e *Engine) handleManualAction(ctx context.Context, ev event.Event, cfg *control.Config) Outcome {
	a, err := ParseAction(ev.Payload)
	if err != nil {
		e.logger.Warn("manual action rejected", "event_id", ev.ID, "error", err)
		return Outcome{Status: StatusFailure, Error: err.Error()}
	}

	return e.dispatchAction(ctx, cfg, ev, a)
}

// sweep runs the periodic maintenance pass: expire popups, evict stale
// scheduled matches, retry deferred notifications, sample queue depth.
func (e *Engine) sweep(ctx context.Context, now time.Time) {
	if removed, err := e.popups.Sweep(now); err != nil {
		e.logger.Error("popup sweep failed", "error", err)
	} else if removed > 0 {
		e.logger.Info("expired popups removed", "count", removed)
	}

	if evicted, err := e.scheduled.Sweep(now, e.viewGrace); err != nil {
		e.logger.Error("scheduled view sweep failed", "error", err)
	} else if evicted > 0 {
		e.logger.Info("stale scheduled matches evicted", "count", evicted)
	}

	if len(e.deferred) > 0 && !e.config.Current().MatchQueuePause.Active(now) {
		held := e.deferred
		e.deferred = nil
		e.logger.Info("re-processing deferred match notifications", "count", len(held))
		for _, ev := range held {
			e.processEvent(ctx, ev, true)
		}
	}

	if e.telemetry != nil {
		if err := e.telemetry.WriteQueueMetric(e.queue.Len(), e.queue.Cap()); err != nil {
			e.logger.Debug("queue telemetry write skipped", "error", err)
		}
	}
}

// payloadStrings coerces a payload value decoded from JSON into a string
// slice.
func payloadStrings(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}

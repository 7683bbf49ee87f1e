// StageCue Core - Event-Driven Show Control
//
// This is the main entry point for the StageCue Core application.
// StageCue turns match-control events from a competition venue into
// coordinated lighting, video, and audio cues:
//   - Single-consumer event engine with per-field state machines
//   - File-backed canonical state that survives restarts
//   - MQTT command fan-out to device connectors
//   - HTTP/WebSocket surface for operator tooling and displays
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/stagecue/stagecue-core/migrations"

	"github.com/stagecue/stagecue-core/internal/api"
	"github.com/stagecue/stagecue-core/internal/audit"
	"github.com/stagecue/stagecue-core/internal/automation"
	"github.com/stagecue/stagecue-core/internal/control"
	"github.com/stagecue/stagecue-core/internal/dispatch"
	"github.com/stagecue/stagecue-core/internal/event"
	"github.com/stagecue/stagecue-core/internal/field"
	"github.com/stagecue/stagecue-core/internal/infrastructure/config"
	"github.com/stagecue/stagecue-core/internal/infrastructure/database"
	"github.com/stagecue/stagecue-core/internal/infrastructure/influxdb"
	"github.com/stagecue/stagecue-core/internal/infrastructure/logging"
	"github.com/stagecue/stagecue-core/internal/infrastructure/mqtt"
	"github.com/stagecue/stagecue-core/internal/schedule"
	"github.com/stagecue/stagecue-core/internal/views"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting StageCue Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Canonical file-backed state
	fields, err := field.NewStore(filepath.Join(cfg.Storage.Dir, "fields"))
	if err != nil {
		return fmt.Errorf("creating field store: %w", err)
	}
	scheduled := views.NewScheduledStore(filepath.Join(cfg.Storage.Dir, "scheduled_matches.json"))
	popups := views.NewPopupStore(filepath.Join(cfg.Storage.Dir, "popups.json"))

	// Operational config and action mappings (hot-reloadable)
	ctrl, err := control.NewProvider(cfg.Storage.ControlFile, log)
	if err != nil {
		return fmt.Errorf("loading control config: %w", err)
	}
	mappings, err := automation.NewMappingProvider(cfg.Storage.ActionsFile, log)
	if err != nil {
		return fmt.Errorf("loading action mappings: %w", err)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Central event queue and audit trail
	queue := event.NewQueue(cfg.Engine.QueueCapacity)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// API server; its WebSocket hub is shared with the engine so processed
	// events reach display clients.
	apiServer, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Fields:    fields,
		Scheduled: scheduled,
		Popups:    popups,
		AuditRepo: auditRepo,
		Queue:     queue,
		Control:   ctrl,
		Mappings:  mappings,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	hub := apiServer.Hub()

	// Event engine: the single consumer of the queue
	engine := automation.NewEngine(automation.EngineDeps{
		Queue:         queue,
		Fields:        fields,
		Config:        ctrl,
		Mappings:      mappings,
		Dispatchers:   dispatch.ForCategories(mqttClient, byte(cfg.MQTT.QoS), log),
		Auditor:       auditRepo,
		Scheduled:     scheduled,
		Popups:        popups,
		Hub:           hub,
		Telemetry:     telemetryOrNil(influxClient),
		Logger:        log,
		SweepInterval: time.Duration(cfg.Engine.SweepInterval) * time.Second,
		ViewGrace:     time.Duration(cfg.Engine.ViewGrace) * time.Second,
		DedupeWindow:  cfg.Engine.DedupeWindow,
	})

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- engine.Run(ctx)
	}()
	log.Info("event engine started", "queue_capacity", queue.Cap())

	// Match scheduler: emits match_scheduled events from the fetched schedule
	scheduler := schedule.NewScheduler(
		cfg.Scheduler.ScheduleFile,
		queue,
		ctrl,
		fields,
		schedule.NewSQLiteNotified(db.DB),
		time.Duration(cfg.Scheduler.Interval)*time.Second,
		log,
	)
	go func() {
		if schedErr := scheduler.Run(ctx); schedErr != nil && ctx.Err() == nil {
			log.Error("match scheduler stopped", "error", schedErr)
		}
	}()
	log.Info("match scheduler started",
		"schedule_file", cfg.Scheduler.ScheduleFile,
		"interval_s", cfg.Scheduler.Interval,
	)

	// Bridge inbound MQTT events onto the queue
	if subErr := subscribeEvents(mqttClient, queue, log); subErr != nil {
		return fmt.Errorf("subscribing to events: %w", subErr)
	}

	// Start the API server
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Announce presence on the bus
	publishStatus(mqttClient, cfg.Venue.ID, log)

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown or engine failure
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case engineErr := <-engineDone:
		if engineErr != nil && ctx.Err() == nil {
			return fmt.Errorf("event engine stopped: %w", engineErr)
		}
	}

	log.Info("StageCue Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses STAGECUE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("STAGECUE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// subscribeEvents wires the MQTT event topics onto the central queue. Each
// inbound message is decoded, validated, and enqueued; a full queue is
// reported back as an error so the broker redelivers at QoS 1.
func subscribeEvents(client *mqtt.Client, queue *event.Queue, log *logging.Logger) error {
	topic := mqtt.Topics{}.AllEvents()
	log.Info("subscribing to event topics", "topic", topic)

	return client.Subscribe(topic, 1, func(t string, payload []byte) error {
		var ev event.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			log.Warn("discarding malformed event", "topic", t, "error", err)
			return nil
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		if err := ev.Validate(); err != nil {
			log.Warn("discarding invalid event", "topic", t, "error", err)
			return nil
		}

		if err := queue.TryEnqueue(ev); err != nil {
			log.Warn("event queue full, requesting redelivery",
				"event_id", ev.ID,
				"event_type", ev.Type,
			)
			return err
		}
		return nil
	})
}

// publishStatus announces this instance on the system status topic.
func publishStatus(client *mqtt.Client, venueID string, log *logging.Logger) {
	status, err := json.Marshal(map[string]any{
		"venue_id":  venueID,
		"version":   version,
		"status":    "online",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := client.PublishRetained(mqtt.Topics{}.SystemStatus(), status); err != nil {
		log.Warn("failed to publish status", "error", err)
	}
}

// telemetryOrNil avoids storing a typed-nil *influxdb.Client in the engine's
// Telemetry interface field when InfluxDB is disabled.
func telemetryOrNil(client *influxdb.Client) automation.Telemetry {
	if client == nil {
		return nil
	}
	return client
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

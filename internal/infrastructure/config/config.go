package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for StageCue Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// This covers process-level settings only. Operator-editable show settings
// (pause flags, routing, quiet windows) live in the control file and are
// managed by the control package.
type Config struct {
	Venue     VenueConfig     `yaml:"venue"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// VenueConfig identifies the event this instance is running.
type VenueConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// StorageConfig contains paths for file-backed state.
// Field states, derived views, the control file, and the action mapping
// file all live under Dir.
type StorageConfig struct {
	Dir         string `yaml:"dir"`
	ControlFile string `yaml:"control_file"`
	ActionsFile string `yaml:"actions_file"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// EngineConfig contains event processing settings.
type EngineConfig struct {
	// QueueCapacity bounds the central event queue. Producers hitting a
	// full queue receive an explicit backpressure error.
	QueueCapacity int `yaml:"queue_capacity"`

	// SweepInterval is how often expired popups and stale scheduled-match
	// entries are evicted (seconds).
	SweepInterval int `yaml:"sweep_interval"`

	// ViewGrace is how long a scheduled-match entry outlives its scheduled
	// time before eviction (seconds).
	ViewGrace int `yaml:"view_grace"`

	// DedupeWindow is how many recent event IDs are remembered for
	// duplicate suppression.
	DedupeWindow int `yaml:"dedupe_window"`
}

// SchedulerConfig contains match scheduler settings.
type SchedulerConfig struct {
	// Interval between schedule scans (seconds).
	Interval int `yaml:"interval"`

	// ScheduleFile is the path to the externally-fetched schedule.
	ScheduleFile string `yaml:"schedule_file"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: STAGECUE_SECTION_KEY
// For example: STAGECUE_DATABASE_PATH, STAGECUE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Venue: VenueConfig{
			ID:       "venue-001",
			Name:     "StageCue",
			Timezone: "UTC",
		},
		Storage: StorageConfig{
			Dir:         "./storage",
			ControlFile: "./storage/control.json",
			ActionsFile: "./storage/actions.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/stagecue.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Engine: EngineConfig{
			QueueCapacity: 256,
			SweepInterval: 5,
			ViewGrace:     600,
			DedupeWindow:  1024,
		},
		Scheduler: SchedulerConfig{
			Interval:     10,
			ScheduleFile: "./storage/schedule.json",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "stagecue-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: STAGECUE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STAGECUE_STORAGE_DIR"); v != "" {
		cfg.Storage.Dir = v
	}
	if v := os.Getenv("STAGECUE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STAGECUE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("STAGECUE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("STAGECUE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("STAGECUE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("STAGECUE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("STAGECUE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Venue.ID == "" {
		errs = append(errs, "venue.id is required")
	}
	if c.Storage.Dir == "" {
		errs = append(errs, "storage.dir is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Engine.QueueCapacity < 1 {
		errs = append(errs, "engine.queue_capacity must be at least 1")
	}
	if c.Engine.SweepInterval < 1 {
		errs = append(errs, "engine.sweep_interval must be at least 1 second")
	}
	if c.Scheduler.Interval < 1 {
		errs = append(errs, "scheduler.interval must be at least 1 second")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSweepInterval returns the engine sweep interval as a Duration.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.Engine.SweepInterval) * time.Second
}

// GetViewGrace returns the scheduled-view grace period as a Duration.
func (c *Config) GetViewGrace() time.Duration {
	return time.Duration(c.Engine.ViewGrace) * time.Second
}

// GetSchedulerInterval returns the scheduler scan interval as a Duration.
func (c *Config) GetSchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.Interval) * time.Second
}

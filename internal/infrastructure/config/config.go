package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as Go duration
// strings ("5s", "10m", "1h").
type Duration time.Duration

// UnmarshalYAML decodes a duration string via time.ParseDuration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration structure for FleetSim Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Store     StoreConfig     `yaml:"store"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Publisher PublisherConfig `yaml:"publisher"`
	API       APIConfig       `yaml:"api"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains service identity information.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// StoreConfig contains PostgreSQL reference store settings.
//
// The DSN is required and is normally supplied via the FLEETSIM_STORE_DSN
// environment variable rather than the config file, so credentials stay out
// of version control.
type StoreConfig struct {
	// DSN is the PostgreSQL connection string (postgres:// URL or key=value form).
	DSN string `yaml:"dsn"`

	// MaxOpenConns limits the connection pool. 0 means the driver default.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle pooled connections. 0 means the driver default.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// NotifyChannel is the LISTEN/NOTIFY channel carrying device-type change
	// notifications. The store-side trigger must NOTIFY on the same channel.
	NotifyChannel string `yaml:"notify_channel"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Topic     string              `yaml:"topic"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SchedulerConfig contains tick and cache refresh cadence settings.
type SchedulerConfig struct {
	// TickInterval is the reading generation cadence.
	// Overridable by the single optional CLI argument.
	TickInterval Duration `yaml:"tick_interval"`

	// CachePollInterval is how often the reference cache re-reads the store
	// regardless of change notifications.
	CachePollInterval Duration `yaml:"cache_poll_interval"`
}

// PublisherConfig contains delivery pipeline settings.
type PublisherConfig struct {
	// Slots is the maximum number of concurrent delivery attempts.
	Slots int `yaml:"slots"`

	// MaxRetries is the number of delivery attempts per message before it
	// is dropped.
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the exponential backoff base in seconds: attempt i
	// (0-indexed) waits base^i seconds before running, for i > 0.
	BackoffBase int `yaml:"backoff_base"`
}

// APIConfig contains HTTP ops API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains optional readings archive settings.
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
// Environment variables follow the pattern: FLEETSIM_SECTION_KEY
// For example: FLEETSIM_STORE_DSN, FLEETSIM_MQTT_HOST
//
// A missing config file is not an error: defaults plus environment variables
// are enough to run, and deployments frequently configure the daemon through
// the environment alone.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be parsed or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file (optional)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parsing config file: %w", unmarshalErr)
		}
	case os.IsNotExist(err):
		// Defaults + environment only
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "fleetsim-001",
			Name: "FleetSim Core",
		},
		Store: StoreConfig{
			MaxOpenConns:  10,
			MaxIdleConns:  2,
			NotifyChannel: "fleetsim_device_types",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Port:     1883,
				ClientID: "fleetsim-core",
			},
			QoS:   1,
			Topic: "fleetsim/telemetry/readings",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Scheduler: SchedulerConfig{
			TickInterval:      Duration(5 * time.Second),
			CachePollInterval: Duration(time.Hour),
		},
		Publisher: PublisherConfig{
			Slots:       10,
			MaxRetries:  3,
			BackoffBase: 2,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLEETSIM_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("FLEETSIM_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("FLEETSIM_STORE_NOTIFY_CHANNEL"); v != "" {
		cfg.Store.NotifyChannel = v
	}

	// MQTT
	if v := os.Getenv("FLEETSIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLEETSIM_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("FLEETSIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLEETSIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FLEETSIM_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}

	// API
	if v := os.Getenv("FLEETSIM_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("FLEETSIM_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// The store DSN is the one hard requirement: without it the reference cache
// can never populate and the daemon has nothing to do. A missing MQTT broker
// host is deliberately NOT a validation error; the publisher degrades to
// failing deliveries until the broker becomes reachable.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Service validation
	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	// Store validation - DSN is REQUIRED (fatal at startup when absent)
	if c.Store.DSN == "" {
		errs = append(errs, "store.dsn is required (set FLEETSIM_STORE_DSN environment variable)")
	}
	if c.Store.NotifyChannel == "" {
		errs = append(errs, "store.notify_channel is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required")
	}

	// Scheduler validation
	if c.Scheduler.TickInterval <= 0 {
		errs = append(errs, "scheduler.tick_interval must be positive")
	}
	if c.Scheduler.CachePollInterval <= 0 {
		errs = append(errs, "scheduler.cache_poll_interval must be positive")
	}

	// Publisher validation
	if c.Publisher.Slots < 1 {
		errs = append(errs, "publisher.slots must be at least 1")
	}
	if c.Publisher.MaxRetries < 1 {
		errs = append(errs, "publisher.max_retries must be at least 1")
	}
	if c.Publisher.BackoffBase < 1 {
		errs = append(errs, "publisher.backoff_base must be at least 1")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
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

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a Gray Logic climate node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Session  SessionConfig  `yaml:"session"`
	Loop     LoopConfig     `yaml:"loop"`
	Hardware HardwareConfig `yaml:"hardware"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NodeConfig identifies the device on the broker.
type NodeConfig struct {
	// Device is the feed owner used as the topic prefix (<device>/feeds/...).
	// On Adafruit IO this is the account username.
	Device string `yaml:"device"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// KeepAlive is the MQTT keepalive interval negotiated with the broker.
	KeepAlive Duration `yaml:"keepalive"`

	// StatusTopic enables the retained online/offline status feed and the
	// publish round trip used by the liveness probe.
	StatusTopic bool `yaml:"status_topic"`

	// InboxSize bounds the number of received messages buffered between
	// loop iterations.
	InboxSize int `yaml:"inbox_size"`
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
	// Key is sent as the MQTT password (the Adafruit IO key).
	Key string `yaml:"key"`
}

// SessionConfig contains the broker session retry policy.
type SessionConfig struct {
	// MaxAttempts is the number of consecutive failed connects tolerated
	// before the node gives up and waits for an external restart.
	MaxAttempts int `yaml:"max_attempts"`

	// RetryDelay is the fixed wait between failed connect attempts.
	RetryDelay Duration `yaml:"retry_delay"`

	// PingTimeout bounds a single liveness probe.
	PingTimeout Duration `yaml:"ping_timeout"`
}

// LoopConfig contains control loop timing.
type LoopConfig struct {
	// DrainTimeout bounds how long each iteration waits for inbound messages.
	DrainTimeout Duration `yaml:"drain_timeout"`

	// PublishInterval is the period between sensor readings.
	PublishInterval Duration `yaml:"publish_interval"`
}

// HardwareConfig contains GPIO and sensor wiring.
type HardwareConfig struct {
	// Enabled switches between real hardware and the simulated board.
	Enabled bool `yaml:"enabled"`

	// GPIOChip is the character device name (e.g. "gpiochip0").
	GPIOChip string `yaml:"gpio_chip"`

	LEDPin    int `yaml:"led_pin"`
	ButtonPin int `yaml:"button_pin"`

	// I2CBus is the bus number the SHT2x sensor is attached to.
	I2CBus int `yaml:"i2c_bus"`

	// NetworkWait blocks startup until a non-loopback address is bound.
	NetworkWait bool `yaml:"network_wait"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Path        string   `yaml:"path"`
	WALMode     bool     `yaml:"wal_mode"`
	BusyTimeout int      `yaml:"busy_timeout"`
	Retention   Duration `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// Duration is a time.Duration that unmarshals from YAML strings like "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_NODE_SECTION_KEY
// For example: GRAYLOGIC_NODE_MQTT_HOST, GRAYLOGIC_NODE_MQTT_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns the stock board wiring and timings.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "io.adafruit.com",
				Port: 1883,
			},
			KeepAlive: Duration(60 * time.Second),
			InboxSize: 64,
		},
		Session: SessionConfig{
			MaxAttempts: 3,
			RetryDelay:  Duration(10 * time.Second),
			PingTimeout: Duration(5 * time.Second),
		},
		Loop: LoopConfig{
			DrainTimeout:    Duration(10 * time.Second),
			PublishInterval: Duration(10 * time.Second),
		},
		Hardware: HardwareConfig{
			GPIOChip:    "gpiochip0",
			LEDPin:      2,
			ButtonPin:   18,
			I2CBus:      1,
			NetworkWait: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/node.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   Duration(7 * 24 * time.Hour),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Credentials belong here rather than in the YAML file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_NODE_DEVICE"); v != "" {
		cfg.Node.Device = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_MQTT_KEY"); v != "" {
		cfg.MQTT.Auth.Key = v
	}

	// Storage
	if v := os.Getenv("GRAYLOGIC_NODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GRAYLOGIC_NODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.Device == "" {
		errs = append(errs, "node.device is required (set GRAYLOGIC_NODE_DEVICE)")
	} else if strings.ContainsAny(c.Node.Device, "/+#") {
		errs = append(errs, "node.device must not contain '/', '+' or '#'")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.InboxSize < 1 {
		errs = append(errs, "mqtt.inbox_size must be at least 1")
	}

	// Session
	if c.Session.MaxAttempts < 1 {
		errs = append(errs, "session.max_attempts must be at least 1")
	}
	if c.Session.RetryDelay < 0 {
		errs = append(errs, "session.retry_delay must not be negative")
	}
	if c.Session.PingTimeout <= 0 {
		errs = append(errs, "session.ping_timeout must be positive")
	}

	// Loop
	if c.Loop.DrainTimeout < 0 {
		errs = append(errs, "loop.drain_timeout must not be negative")
	}
	if c.Loop.PublishInterval <= 0 {
		errs = append(errs, "loop.publish_interval must be positive")
	}

	// Hardware
	if c.Hardware.Enabled {
		if c.Hardware.GPIOChip == "" {
			errs = append(errs, "hardware.gpio_chip is required when hardware is enabled")
		}
		if c.Hardware.LEDPin == c.Hardware.ButtonPin {
			errs = append(errs, "hardware.led_pin and hardware.button_pin must differ")
		}
	}

	// Storage
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns host:port for log output.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.MQTT.Broker.Host, c.MQTT.Broker.Port)
}

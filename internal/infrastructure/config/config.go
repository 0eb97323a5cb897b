package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/deepsleep-agent/internal/settings"
)

// Config is the root configuration structure for the DeepSleep agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Automation AutomationConfig `yaml:"automation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Database   DatabaseConfig   `yaml:"database"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	API        APIConfig        `yaml:"api"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DeviceConfig identifies this agent in telemetry payloads and topics.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig      `yaml:"broker"`
	Auth        MQTTAuthConfig        `yaml:"auth"`
	QoS         int                   `yaml:"qos"`
	Reconnect   MQTTReconnectConfig   `yaml:"reconnect"`
	Persistence MQTTPersistenceConfig `yaml:"persistence"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTPersistenceConfig controls the durable outbound queue.
//
// When enabled, QoS 1/2 publishes are written to the SQLite database
// before transmission and replayed after a reconnect or restart. A
// persistent broker session is requested so the broker keeps our
// subscriptions and in-flight state as well.
type MQTTPersistenceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AutomationConfig contains the automation loop policy and its initial settings.
type AutomationConfig struct {
	// Enabled is the initial value of the remote-controllable enabled flag.
	Enabled bool `yaml:"enabled"`

	// Interval is the tick period of the automation loop.
	Interval time.Duration `yaml:"interval"`

	// HumidityThreshold: humidity strictly below this turns the humidifier on.
	HumidityThreshold float64 `yaml:"humidity_threshold"`

	// HeartRate configures the heart-rate-aware speaker policy.
	HeartRate HeartRateConfig `yaml:"heart_rate"`

	// DisabledPolicy is "pause" (leave actuators as last commanded) or
	// "force_off" (switch both actuators off once when automation is disabled).
	DisabledPolicy string `yaml:"disabled_policy"`

	// PublishUnchangedStatus republishes device status every tick even
	// when the commanded state did not change.
	PublishUnchangedStatus bool `yaml:"publish_unchanged_status"`
}

// HeartRateConfig configures heart-rate driven white-noise playback.
type HeartRateConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Threshold float64       `yaml:"threshold"`
	Topic     string        `yaml:"topic"`
	MaxAge    time.Duration `yaml:"max_age"`
	Volume    uint          `yaml:"volume"`
}

// TelemetryConfig controls the outbound payload format and the inbound queue.
type TelemetryConfig struct {
	// Format is "structured" (JSON record) or "bare" (number as text).
	Format string `yaml:"format"`

	// InboundQueue is the capacity of the inbound command channel.
	InboundQueue int `yaml:"inbound_queue"`
}

// HardwareConfig selects and configures the sensor and actuator drivers.
type HardwareConfig struct {
	// Mode is "simulated" or "raspi".
	Mode       string                `yaml:"mode"`
	Sensor     SensorConfig          `yaml:"sensor"`
	Humidifier ActuatorPinConfig     `yaml:"humidifier"`
	Speaker    SpeakerPinConfig      `yaml:"speaker"`
	Simulated  SimulatedSensorConfig `yaml:"simulated"`
}

// SensorConfig configures the humidity/temperature sensor.
type SensorConfig struct {
	// Type is reported as sensor_type in telemetry (e.g. "SHT2x").
	// Empty reports the driver default: "SHT2x" on raspi, "simulated" otherwise.
	Type string `yaml:"type"`

	// I2CBus is the bus number the sensor is attached to (raspi mode).
	I2CBus int `yaml:"i2c_bus"`

	// MinInterval is the electrical minimum time between two reads.
	MinInterval time.Duration `yaml:"min_interval"`

	// ReadTimeout bounds a single driver read.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ActuatorPinConfig maps an on/off actuator to a header pin.
type ActuatorPinConfig struct {
	Pin      string `yaml:"pin"`
	Inverted bool   `yaml:"inverted"`
}

// SpeakerPinConfig maps the speaker power relay and optional PWM volume pin.
type SpeakerPinConfig struct {
	Pin       string `yaml:"pin"`
	Inverted  bool   `yaml:"inverted"`
	VolumePin string `yaml:"volume_pin"`
}

// SimulatedSensorConfig tunes the simulated sensor.
type SimulatedSensorConfig struct {
	// FaultRate is the probability (0..1) that a simulated read fails.
	FaultRate float64 `yaml:"fault_rate"`

	// Seed makes simulated readings reproducible (0 = time-based).
	Seed uint64 `yaml:"seed"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Hardware modes.
const (
	HardwareModeSimulated = "simulated"
	HardwareModeRaspi     = "raspi"
)

// Disabled policies.
const (
	DisabledPolicyPause    = "pause"
	DisabledPolicyForceOff = "force_off"
)

// Telemetry formats.
const (
	TelemetryFormatStructured = "structured"
	TelemetryFormatBare       = "bare"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DEEPSLEEP_SECTION_KEY
// For example: DEEPSLEEP_MQTT_HOST, DEEPSLEEP_HARDWARE_MODE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
//
// The defaults run the agent in simulated mode against a local broker,
// which is what a developer machine without sensors needs.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "deepsleep-device",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Persistence: MQTTPersistenceConfig{
				Enabled: true,
			},
		},
		Automation: AutomationConfig{
			Enabled:           true,
			Interval:          10 * time.Second,
			HumidityThreshold: 40,
			HeartRate: HeartRateConfig{
				Enabled:   false,
				Threshold: 80,
				Topic:     "sensors/sleep/heartrate",
				MaxAge:    time.Minute,
				Volume:    30,
			},
			DisabledPolicy: DisabledPolicyPause,
		},
		Telemetry: TelemetryConfig{
			Format:       TelemetryFormatStructured,
			InboundQueue: 32,
		},
		Hardware: HardwareConfig{
			Mode: HardwareModeSimulated,
			Sensor: SensorConfig{
				I2CBus:      1,
				MinInterval: 2 * time.Second,
				ReadTimeout: 3 * time.Second,
			},
			Humidifier: ActuatorPinConfig{Pin: "11"},
			Speaker:    SpeakerPinConfig{Pin: "12"},
		},
		Database: DatabaseConfig{
			Path:        "./data/deepsleep.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
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
// Environment variables follow the pattern: DEEPSLEEP_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("DEEPSLEEP_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("DEEPSLEEP_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DEEPSLEEP_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("DEEPSLEEP_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DEEPSLEEP_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Hardware
	if v := os.Getenv("DEEPSLEEP_HARDWARE_MODE"); v != "" {
		cfg.Hardware.Mode = v
	}

	// Database
	if v := os.Getenv("DEEPSLEEP_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("DEEPSLEEP_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of all validation failures, or nil if valid
func (c *Config) Validate() error { //nolint:gocognit,gocyclo // flat list of independent checks
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Persistence.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when mqtt.persistence is enabled")
	}

	// Automation validation
	if c.Automation.Interval <= 0 {
		errs = append(errs, "automation.interval must be positive")
	}
	if !isFinite(c.Automation.HumidityThreshold) || c.Automation.HumidityThreshold < 0 || c.Automation.HumidityThreshold > 100 {
		errs = append(errs, "automation.humidity_threshold must be between 0 and 100")
	}
	if c.Automation.HeartRate.Enabled {
		if hr := c.Automation.HeartRate.Threshold; !isFinite(hr) || hr <= 0 || hr > settings.MaxHeartRateThreshold {
			errs = append(errs, fmt.Sprintf("automation.heart_rate.threshold must be in (0, %g]", settings.MaxHeartRateThreshold))
		}
		if c.Automation.HeartRate.Topic == "" {
			errs = append(errs, "automation.heart_rate.topic is required")
		}
		if c.Automation.HeartRate.Volume > 100 {
			errs = append(errs, "automation.heart_rate.volume must be between 0 and 100")
		}
	}
	switch c.Automation.DisabledPolicy {
	case DisabledPolicyPause, DisabledPolicyForceOff:
	default:
		errs = append(errs, "automation.disabled_policy must be pause or force_off")
	}

	// Telemetry validation
	switch c.Telemetry.Format {
	case TelemetryFormatStructured, TelemetryFormatBare:
	default:
		errs = append(errs, "telemetry.format must be structured or bare")
	}
	if c.Telemetry.InboundQueue < 1 {
		errs = append(errs, "telemetry.inbound_queue must be at least 1")
	}

	// Hardware validation
	switch c.Hardware.Mode {
	case HardwareModeSimulated:
	case HardwareModeRaspi:
		if c.Hardware.Humidifier.Pin == "" {
			errs = append(errs, "hardware.humidifier.pin is required in raspi mode")
		}
		if c.Hardware.Speaker.Pin == "" {
			errs = append(errs, "hardware.speaker.pin is required in raspi mode")
		}
	default:
		errs = append(errs, "hardware.mode must be simulated or raspi")
	}
	if c.Hardware.Sensor.MinInterval < 0 {
		errs = append(errs, "hardware.sensor.min_interval must not be negative")
	}
	if c.Hardware.Simulated.FaultRate < 0 || c.Hardware.Simulated.FaultRate > 1 {
		errs = append(errs, "hardware.simulated.fault_rate must be between 0 and 1")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
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
func (a APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (a APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (a APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(a.Timeouts.Idle) * time.Second
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

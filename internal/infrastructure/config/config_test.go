package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "bedroom-01"
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    tls: true
    client_id: "bedroom-agent"
  qos: 1
automation:
  interval: 5s
  humidity_threshold: 45
  heart_rate:
    enabled: true
    threshold: 75
hardware:
  mode: raspi
  humidifier:
    pin: "11"
  speaker:
    pin: "12"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "bedroom-01" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "bedroom-01")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.Automation.Interval != 5*time.Second {
		t.Errorf("Automation.Interval = %v, want 5s", cfg.Automation.Interval)
	}
	if cfg.Automation.HumidityThreshold != 45 {
		t.Errorf("Automation.HumidityThreshold = %v, want 45", cfg.Automation.HumidityThreshold)
	}
	if !cfg.Automation.HeartRate.Enabled || cfg.Automation.HeartRate.Threshold != 75 {
		t.Errorf("Automation.HeartRate = %+v, want enabled with threshold 75", cfg.Automation.HeartRate)
	}
	// Untouched nested fields keep their defaults.
	if cfg.Automation.HeartRate.Topic != "sensors/sleep/heartrate" {
		t.Errorf("Automation.HeartRate.Topic = %q, want default", cfg.Automation.HeartRate.Topic)
	}
	if cfg.Hardware.Mode != HardwareModeRaspi {
		t.Errorf("Hardware.Mode = %q, want %q", cfg.Hardware.Mode, HardwareModeRaspi)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error for empty device.id, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DEEPSLEEP_MQTT_HOST", "env-broker")
	t.Setenv("DEEPSLEEP_MQTT_PORT", "1884")
	t.Setenv("DEEPSLEEP_DEVICE_ID", "env-device")
	t.Setenv("DEEPSLEEP_HARDWARE_MODE", "simulated")

	cfg, err := Load(writeConfig(t, "device:\n  id: file-device\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("MQTT.Broker.Host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1884 {
		t.Errorf("MQTT.Broker.Port = %d, want 1884", cfg.MQTT.Broker.Port)
	}
	if cfg.Device.ID != "env-device" {
		t.Errorf("Device.ID = %q, want env-device", cfg.Device.ID)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Automation.Interval = 0 },
			wantErr: "automation.interval",
		},
		{
			name:    "humidity threshold above 100",
			mutate:  func(c *Config) { c.Automation.HumidityThreshold = 120 },
			wantErr: "automation.humidity_threshold",
		},
		{
			name: "heart rate enabled without threshold",
			mutate: func(c *Config) {
				c.Automation.HeartRate.Enabled = true
				c.Automation.HeartRate.Threshold = 0
			},
			wantErr: "automation.heart_rate.threshold",
		},
		{
			name: "heart rate threshold above settings bound",
			mutate: func(c *Config) {
				c.Automation.HeartRate.Enabled = true
				c.Automation.HeartRate.Threshold = 300
			},
			wantErr: "automation.heart_rate.threshold",
		},
		{
			name: "heart rate threshold at settings bound",
			mutate: func(c *Config) {
				c.Automation.HeartRate.Enabled = true
				c.Automation.HeartRate.Threshold = 250
			},
		},
		{
			name:    "unknown disabled policy",
			mutate:  func(c *Config) { c.Automation.DisabledPolicy = "shrug" },
			wantErr: "automation.disabled_policy",
		},
		{
			name:    "unknown telemetry format",
			mutate:  func(c *Config) { c.Telemetry.Format = "xml" },
			wantErr: "telemetry.format",
		},
		{
			name:    "unknown hardware mode",
			mutate:  func(c *Config) { c.Hardware.Mode = "arduino" },
			wantErr: "hardware.mode",
		},
		{
			name: "raspi without pins",
			mutate: func(c *Config) {
				c.Hardware.Mode = HardwareModeRaspi
				c.Hardware.Humidifier.Pin = ""
			},
			wantErr: "hardware.humidifier.pin",
		},
		{
			name:    "fault rate out of range",
			mutate:  func(c *Config) { c.Hardware.Simulated.FaultRate = 1.5 },
			wantErr: "hardware.simulated.fault_rate",
		},
		{
			name: "persistence without database path",
			mutate: func(c *Config) {
				c.MQTT.Persistence.Enabled = true
				c.Database.Path = ""
			},
			wantErr: "database.path",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "sleep"
			},
			wantErr: "influxdb.url",
		},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
			},
			wantErr: "api.port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAPIConfig_Timeouts(t *testing.T) {
	cfg := APIConfig{
		Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 120},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 45*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 45s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 120*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 120s", got)
	}
}

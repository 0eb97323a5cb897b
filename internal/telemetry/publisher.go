// Package telemetry publishes sensor readings and actuator status to the
// control plane.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/mqtt"
)

// Metric names a published measurement.
type Metric string

// Metrics the agent publishes.
const (
	MetricHumidity    Metric = "humidity"
	MetricTemperature Metric = "temperature"
)

// ErrUnknownMetric is returned for a metric that has no telemetry topic.
var ErrUnknownMetric = errors.New("telemetry: unknown metric")

// Transport is the publishing side of the MQTT client.
type Transport interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Sink receives a copy of everything published. influxdb.Client implements it.
type Sink interface {
	WriteReading(sensorType, metric string, value float64, ts time.Time)
	WriteActuatorStatus(deviceType string, on bool, volume *uint8, ts time.Time)
}

// Logger is the logging interface used by the publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Event is the structured telemetry payload.
//
//	{"value":38.5,"timestamp":1729200000000,"device_id":"bedroom-01","sensor_type":"SHT2x"}
type Event struct {
	Value       float64 `json:"value"`
	TimestampMs int64   `json:"timestamp"`
	DeviceID    string  `json:"device_id"`
	SensorType  string  `json:"sensor_type"`
}

// Options configures a Publisher.
type Options struct {
	DeviceID   string
	SensorType string
	// Format is config.TelemetryFormatStructured (default) or config.TelemetryFormatBare.
	Format string
	QoS    byte
	// Sink is optional.
	Sink   Sink
	Logger Logger
}

// Publisher formats and publishes telemetry and status events.
//
// Publishing is fire-and-forget from the caller's point of view: while the
// broker is unreachable the transport parks QoS 1/2 messages in its
// outbound store. Errors are still returned so callers can log them.
type Publisher struct {
	transport  Transport
	sink       Sink
	deviceID   string
	sensorType string
	format     string
	qos        byte
	logger     Logger
	now        func() time.Time
}

// NewPublisher creates a Publisher on transport.
func NewPublisher(transport Transport, opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	format := opts.Format
	if format == "" {
		format = config.TelemetryFormatStructured
	}
	return &Publisher{
		transport:  transport,
		sink:       opts.Sink,
		deviceID:   opts.DeviceID,
		sensorType: opts.SensorType,
		format:     format,
		qos:        opts.QoS,
		logger:     logger,
		now:        time.Now,
	}
}

// PublishReading publishes one measurement on its sensors/sleep/* topic
// and mirrors it to the sink.
func (p *Publisher) PublishReading(metric Metric, value float64) error {
	topic, err := metricTopic(metric)
	if err != nil {
		return err
	}

	ts := p.now()
	payload, err := p.encodeReading(value, ts)
	if err != nil {
		return fmt.Errorf("encoding %s telemetry: %w", metric, err)
	}

	if p.sink != nil {
		p.sink.WriteReading(p.sensorType, string(metric), value, ts)
	}

	if err := p.transport.Publish(topic, payload, p.qos, false); err != nil {
		return fmt.Errorf("publishing %s telemetry: %w", metric, err)
	}
	p.logger.Debug("telemetry published", "topic", topic, "value", value)
	return nil
}

// PublishStatus publishes an actuator status event on device/status/{type}
// as a retained message and mirrors it to the sink.
func (p *Publisher) PublishStatus(ev actuator.DeviceStatusEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s status: %w", ev.DeviceType, err)
	}

	if p.sink != nil {
		p.sink.WriteActuatorStatus(string(ev.DeviceType), ev.On(), ev.Volume, time.UnixMilli(ev.TimestampMs))
	}

	topic := mqtt.Topics{}.DeviceStatus(string(ev.DeviceType))
	if err := p.transport.Publish(topic, payload, p.qos, true); err != nil {
		return fmt.Errorf("publishing %s status: %w", ev.DeviceType, err)
	}
	p.logger.Debug("status published", "topic", topic, "status", ev.Status)
	return nil
}

func (p *Publisher) encodeReading(value float64, ts time.Time) ([]byte, error) {
	if p.format == config.TelemetryFormatBare {
		return []byte(strconv.FormatFloat(value, 'f', -1, 64)), nil
	}
	return json.Marshal(Event{
		Value:       value,
		TimestampMs: ts.UnixMilli(),
		DeviceID:    p.deviceID,
		SensorType:  p.sensorType,
	})
}

func metricTopic(metric Metric) (string, error) {
	switch metric {
	case MetricHumidity:
		return mqtt.TopicSensorHumidity, nil
	case MetricTemperature:
		return mqtt.TopicSensorTemperature, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
}

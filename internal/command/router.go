package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/mqtt"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
)

// Actuators is the part of actuator.Controller the router drives.
type Actuators interface {
	SetHumidifier(on bool) (actuator.DeviceStatusEvent, error)
	SetSpeaker(on bool, volume uint8) (actuator.DeviceStatusEvent, error)
}

// SettingsStore is the part of settings.Store the router writes.
type SettingsStore interface {
	ApplyPatch(raw []byte) (settings.Settings, error)
}

// StatusPublisher publishes actuator status after a command.
type StatusPublisher interface {
	PublishStatus(ev actuator.DeviceStatusEvent) error
}

// HeartRateSink receives heart-rate samples.
type HeartRateSink interface {
	Update(bpm float64) error
}

// Logger is the logging interface used by the router.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Router applies inbound messages.
//
// Handle is total: whatever the payload, it returns instead of panicking
// and leaves state untouched when the payload is invalid.
type Router struct {
	actuators      Actuators
	settings       SettingsStore
	status         StatusPublisher
	heartRate      HeartRateSink
	heartRateTopic string
	logger         Logger
}

// Config wires a Router.
type Config struct {
	Actuators Actuators
	Settings  SettingsStore
	Status    StatusPublisher
	// HeartRate and HeartRateTopic are optional; without them heart-rate
	// messages are ignored like any unknown topic.
	HeartRate      HeartRateSink
	HeartRateTopic string
	Logger         Logger
}

// NewRouter creates a Router.
func NewRouter(cfg Config) *Router {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Router{
		actuators:      cfg.Actuators,
		settings:       cfg.Settings,
		status:         cfg.Status,
		heartRate:      cfg.HeartRate,
		heartRateTopic: cfg.HeartRateTopic,
		logger:         logger,
	}
}

// Run drains in until ctx is done or in is closed.
func (r *Router) Run(ctx context.Context, in <-chan Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if err := r.Handle(msg); err != nil {
				r.logger.Warn("inbound message rejected",
					"topic", msg.Topic,
					"error", err,
				)
			}
		}
	}
}

// Handle applies one message.
//
// Returns:
//   - error: Wrapping ErrMalformed or settings.ErrValidation for bad
//     payloads, or actuator.ErrActuatorFault for driver failures; nil for
//     unknown topics
func (r *Router) Handle(msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handling %s: panic: %v", msg.Topic, rec)
		}
	}()

	switch msg.Topic {
	case mqtt.TopicControlHumidifier:
		return r.handleHumidifier(msg.Payload)
	case mqtt.TopicControlSpeaker:
		return r.handleSpeaker(msg.Payload)
	case mqtt.TopicSettingsAutomation:
		return r.handleSettings(msg.Payload)
	}

	if r.heartRate != nil && r.heartRateTopic != "" && msg.Topic == r.heartRateTopic {
		return r.handleHeartRate(msg.Payload)
	}

	r.logger.Debug("ignoring message on unknown topic", "topic", msg.Topic)
	return nil
}

// actuatorCommand is the control/* payload. Extra fields such as
// "timestamp" and "source" are ignored.
type actuatorCommand struct {
	Status *string          `json:"status"`
	Volume *json.RawMessage `json:"volume"`
}

func (r *Router) handleHumidifier(payload []byte) error {
	cmd, on, err := decodeCommand(payload)
	if err != nil {
		return err
	}
	if cmd.Volume != nil {
		r.logger.Debug("ignoring volume on humidifier command")
	}

	ev, err := r.actuators.SetHumidifier(on)
	if err != nil {
		return err
	}
	r.logger.Info("humidifier commanded", "status", ev.Status)
	return r.publish(ev)
}

func (r *Router) handleSpeaker(payload []byte) error {
	cmd, on, err := decodeCommand(payload)
	if err != nil {
		return err
	}

	volume := actuator.DefaultVolume
	if cmd.Volume != nil {
		volume, err = decodeVolume(*cmd.Volume)
		if err != nil {
			return err
		}
	}

	ev, err := r.actuators.SetSpeaker(on, volume)
	if err != nil {
		return err
	}
	r.logger.Info("speaker commanded", "status", ev.Status, "volume", volume)
	return r.publish(ev)
}

func (r *Router) handleSettings(payload []byte) error {
	s, err := r.settings.ApplyPatch(payload)
	if err != nil {
		return err
	}

	args := []any{"enabled", s.Enabled, "humidity_threshold", s.HumidityThreshold}
	if s.HeartRateThreshold != nil {
		args = append(args, "heart_rate_threshold", *s.HeartRateThreshold)
	}
	r.logger.Info("automation settings updated", args...)
	return nil
}

func (r *Router) handleHeartRate(payload []byte) error {
	bpm, err := decodeHeartRate(payload)
	if err != nil {
		return err
	}
	if err := r.heartRate.Update(bpm); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	r.logger.Debug("heart rate sample", "bpm", bpm)
	return nil
}

// publish sends the status after a successful command. A publish failure
// is logged, not returned: the command itself was applied.
func (r *Router) publish(ev actuator.DeviceStatusEvent) error {
	if r.status == nil {
		return nil
	}
	if err := r.status.PublishStatus(ev); err != nil {
		r.logger.Warn("publishing status failed", "device", ev.DeviceType, "error", err)
	}
	return nil
}

func decodeCommand(payload []byte) (actuatorCommand, bool, error) {
	var cmd actuatorCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, false, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if cmd.Status == nil {
		return cmd, false, fmt.Errorf("%w: missing status", ErrMalformed)
	}

	switch actuator.Status(*cmd.Status) {
	case actuator.StatusOn:
		return cmd, true, nil
	case actuator.StatusOff:
		return cmd, false, nil
	default:
		return cmd, false, fmt.Errorf("%w: unknown status %q", ErrMalformed, *cmd.Status)
	}
}

// decodeVolume accepts a JSON integer 0..100.
func decodeVolume(raw json.RawMessage) (uint8, error) {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: volume must be a number", ErrMalformed)
	}
	if v != math.Trunc(v) || v < 0 || v > float64(actuator.MaxVolume) {
		return 0, fmt.Errorf("%w: volume %v not an integer in 0..%d", ErrMalformed, v, actuator.MaxVolume)
	}
	return uint8(v), nil
}

// decodeHeartRate accepts {"value":bpm} or a bare number.
func decodeHeartRate(payload []byte) (float64, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var sample struct {
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &sample); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if sample.Value == nil {
			return 0, fmt.Errorf("%w: missing value", ErrMalformed)
		}
		return *sample.Value, nil
	}

	bpm, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, fmt.Errorf("%w: heart rate %q: %w", ErrMalformed, trimmed, err)
	}
	return bpm, nil
}

package hardware

import (
	"errors"
	"fmt"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
)

// ErrUnsupportedMode is returned for an unknown hardware.mode.
var ErrUnsupportedMode = errors.New("hardware: unsupported mode")

// Logger is the logging interface used by the hardware drivers.
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

// Set is an opened capability set.
//
// Release order matters on real hardware: CloseSensor first, then
// CloseActuators, which also releases the platform adaptor.
type Set struct {
	Sensor     sensor.Driver
	Humidifier actuator.HumidifierDriver
	Speaker    actuator.SpeakerDriver

	closeSensor    func() error
	closeActuators []func() error
	closeAdaptor   func() error
}

// Open builds the capability set selected by cfg.Mode.
//
// Parameters:
//   - cfg: Hardware configuration from config.yaml
//   - logger: Logger for driver events (nil for none)
//
// Returns:
//   - *Set: Opened drivers
//   - error: If the platform or a driver cannot be started
func Open(cfg config.HardwareConfig, logger Logger) (*Set, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch cfg.Mode {
	case config.HardwareModeSimulated:
		return openSimulated(cfg, logger), nil
	case config.HardwareModeRaspi:
		return openRaspi(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, cfg.Mode)
	}
}

// CloseSensor releases the sensor driver.
func (s *Set) CloseSensor() error {
	if s.closeSensor == nil {
		return nil
	}
	if err := s.closeSensor(); err != nil {
		return fmt.Errorf("closing sensor: %w", err)
	}
	return nil
}

// CloseActuators switches both actuators off, releases their drivers and
// then the platform adaptor. It attempts every step and joins the errors.
func (s *Set) CloseActuators() error {
	var errs []error
	for _, closeFn := range s.closeActuators {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.closeAdaptor != nil {
		if err := s.closeAdaptor(); err != nil {
			errs = append(errs, fmt.Errorf("finalizing adaptor: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing actuators: %w", errors.Join(errs...))
	}
	return nil
}

package sensor

import (
	"context"
	"errors"
)

// Sensor faults. A Reading with one of these in Err is a normal outcome;
// the automation loop logs it and skips the tick.
var (
	// ErrDeviceAbsent is returned when the sensor does not respond on its bus.
	ErrDeviceAbsent = errors.New("sensor: device absent")

	// ErrChecksum is returned when the sensor's data fails its integrity check.
	ErrChecksum = errors.New("sensor: checksum mismatch")

	// ErrTimeout is returned when a read does not complete in time.
	ErrTimeout = errors.New("sensor: read timeout")

	// ErrOutOfRange is returned when a value falls outside the physical range.
	ErrOutOfRange = errors.New("sensor: value out of range")

	// ErrInvalidHeartRate is returned for non-finite or implausible bpm values.
	ErrInvalidHeartRate = errors.New("sensor: invalid heart rate")
)

// FaultKind returns a short label for logging a sensor error.
func FaultKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeviceAbsent):
		return "device_absent"
	case errors.Is(err, ErrChecksum):
		return "checksum"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}

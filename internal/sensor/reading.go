package sensor

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Physical ranges accepted from a humidity/temperature sensor.
const (
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
	MinTemperature = -40.0
	MaxTemperature = 80.0
)

// Driver reads one humidity/temperature sensor.
//
// Implementations need not be safe for concurrent use; the Poller never
// overlaps two reads. A Driver may ignore ctx, in which case cancellation
// only stops the Poller from waiting for it.
type Driver interface {
	// Read returns relative humidity (%) and temperature (°C).
	Read(ctx context.Context) (humidity, temperature float64, err error)

	// Type names the sensor model, e.g. "DHT11", "SHT2x" or "simulated".
	Type() string
}

// Reading is the outcome of one poll. Exactly one of the value fields or
// Err is meaningful: when Err is non-nil the values are zero.
type Reading struct {
	Humidity    float64
	Temperature float64
	TakenAt     time.Time
	SensorType  string
	Err         error
}

// OK reports whether the reading holds valid values.
func (r Reading) OK() bool {
	return r.Err == nil
}

// CheckRange validates a humidity/temperature pair against the physical ranges.
func CheckRange(humidity, temperature float64) error {
	if math.IsNaN(humidity) || humidity < MinHumidity || humidity > MaxHumidity {
		return fmt.Errorf("%w: humidity %v not in [%v, %v]", ErrOutOfRange, humidity, MinHumidity, MaxHumidity)
	}
	if math.IsNaN(temperature) || temperature < MinTemperature || temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature %v not in [%v, %v]", ErrOutOfRange, temperature, MinTemperature, MaxTemperature)
	}
	return nil
}

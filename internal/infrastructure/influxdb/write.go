package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the agent.
const (
	// MeasurementEnvironment holds humidity and temperature readings.
	MeasurementEnvironment = "sleep_environment"

	// MeasurementActuator holds humidifier and speaker status changes.
	MeasurementActuator = "actuator_status"
)

// WriteReading writes one sensor reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - sensorType: Physical sensor model (e.g., "DHT11", "SHT2x", "simulated")
//   - metric: "humidity" or "temperature"
//   - value: Reading in %RH or °C
//   - ts: Time the reading was taken
//
// Example:
//
//	client.WriteReading("DHT11", "humidity", 38.0, time.Now())
func (c *Client) WriteReading(sensorType, metric string, value float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(c.deviceID, sensorType, metric, value, ts))
}

// WriteActuatorStatus writes one actuator status change.
//
// Parameters:
//   - deviceType: "humidifier" or "speaker"
//   - on: Whether the actuator is on
//   - volume: Speaker volume 0..100, or nil when not applicable
//   - ts: Time of the change
func (c *Client) WriteActuatorStatus(deviceType string, on bool, volume *uint8, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(c.deviceID, deviceType, on, volume, ts))
}

// readingPoint builds the point for a sensor reading.
func readingPoint(deviceID, sensorType, metric string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementEnvironment,
		map[string]string{
			"device_id":   deviceID,
			"sensor_type": sensorType,
			"metric":      metric,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}

// statusPoint builds the point for an actuator status change.
func statusPoint(deviceID, deviceType string, on bool, volume *uint8, ts time.Time) *write.Point {
	fields := map[string]interface{}{
		"on": on,
	}
	if volume != nil {
		fields["volume"] = int64(*volume)
	}

	return write.NewPoint(
		MeasurementActuator,
		map[string]string{
			"device_id":   deviceID,
			"device_type": deviceType,
		},
		fields,
		ts,
	)
}

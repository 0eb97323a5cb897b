// Package sensor defines how the agent acquires environment readings.
//
// A Driver wraps one physical (or simulated) humidity/temperature sensor.
// The Poller sits in front of it and guarantees the things every caller
// relies on:
//   - reads are never closer together than the sensor's minimum interval
//     (2 s for DHT11/SHT2x class parts)
//   - a read never blocks longer than the configured timeout
//   - out-of-range values are reported as faults, not as readings
//   - faults are values (Reading.Err), never panics
//
// HeartRateTracker holds the most recent heart-rate sample received from
// a wearable, for heart-rate-aware speaker control.
package sensor

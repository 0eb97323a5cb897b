// Package influxdb provides an optional InfluxDB sink for DeepSleep telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, non-blocking batched writes and health monitoring.
//
// # Purpose
//
// The agent itself retains nothing. When enabled, this package mirrors:
//   - Humidity and temperature readings (measurement "sleep_environment")
//   - Humidifier and speaker status changes (measurement "actuator_status")
//
// so that sleep sessions can be charted without a second subscriber on
// the broker.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Device.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("SHT2x", "humidity", 38.5, time.Now())
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (SetOnError) and counted; the next HealthCheck reports them
// as ErrWriteFailed. Connection and health check errors are returned
// directly.
package influxdb

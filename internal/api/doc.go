// Package api implements the local read-only HTTP status API of the
// DeepSleep agent.
//
// This package provides:
//   - GET /api/v1/health: broker, database and InfluxDB checks
//   - GET /api/v1/status: automation settings, actuator state, last reading
//   - GET /api/v1/metrics: runtime and outbound queue statistics
//   - Middleware stack (request ID, logging, recovery)
//
// The API is disabled by default and never changes agent state; control
// stays on the MQTT command topics.
package api

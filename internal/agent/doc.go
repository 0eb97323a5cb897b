// Package agent wires the DeepSleep components together and owns their
// lifecycle.
//
// Startup order:
//
//  1. Hardware capability set (simulated or Raspberry Pi)
//  2. SQLite outbound store (when MQTT persistence is enabled)
//  3. MQTT transport
//  4. InfluxDB mirror (optional, non-fatal)
//  5. Settings, actuator controller, poller, publisher, router, loop
//
// Shutdown runs exactly once, in this order: status API, sensor driver,
// actuator drivers, transport, InfluxDB, database.
//
// A failure during startup is reported as ErrStartup; cmd/deepsleep exits
// non-zero on it.
package agent

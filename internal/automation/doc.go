// Package automation runs the DeepSleep control loop.
//
// Each tick reads the environment sensor, decides the humidifier (and,
// when heart-rate control is active, the speaker) from the current
// automation settings, and publishes telemetry and actuator status.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────┐
//	│                  Loop (loop.go)                     │
//	│                                                     │
//	│  settings.Get ──▶ disabled? ──▶ policy (pause/off)  │
//	│        │                                            │
//	│        ▼                                            │
//	│  Poller.Poll ──▶ fault? ──▶ log, skip tick          │
//	│        │                                            │
//	│        ▼                                            │
//	│  decide: humidity < threshold, bpm > threshold      │
//	│        │                                            │
//	│        ▼                                            │
//	│  Actuators ──▶ Telemetry (readings + status)        │
//	└─────────────────────────────────────────────────────┘
//
// Ticks are aligned to the wake time of the previous tick: a slow tick
// shortens the next sleep, and boundaries missed entirely are skipped
// rather than run back to back.
//
// # Thread Safety
//
// Run and Tick must not be called concurrently with each other.
// LastReading is safe to call from any goroutine.
//
// # Usage
//
//	loop := automation.NewLoop(automation.Deps{
//	    Poller:    poller,
//	    Settings:  store,
//	    Actuators: controller,
//	    Telemetry: publisher,
//	    HeartRate: tracker,
//	}, automation.Config{Interval: 10 * time.Second}, log)
//
//	go loop.Run(ctx)
package automation

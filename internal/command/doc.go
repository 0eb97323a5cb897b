// Package command decodes inbound MQTT messages and applies them.
//
// MQTT handlers run on paho's goroutines. They only copy the message into
// an Inbox; a single Router goroutine drains it, so commands are applied
// one at a time and in arrival order.
//
// Inbound topics:
//
//	control/humidifier   {"status":"on"|"off"}
//	control/speaker      {"status":"on"|"off","volume":0..100}
//	settings/automation  {"enabled":bool,"humidityThreshold":n,"heartRateThreshold":n}
//	sensors/sleep/heartrate  {"value":bpm} or a bare number
//
// A malformed message is logged and dropped. Nothing it carries is applied.
package command

package api

import (
	"net/http"
	"time"

	"github.com/nerrad567/deepsleep-agent/internal/actuator"
	"github.com/nerrad567/deepsleep-agent/internal/sensor"
	"github.com/nerrad567/deepsleep-agent/internal/settings"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	DeviceID    string            `json:"device_id"`
	Settings    settings.Settings `json:"settings"`
	Humidifier  ActuatorStatus    `json:"humidifier"`
	Speaker     ActuatorStatus    `json:"speaker"`
	LastReading *ReadingStatus    `json:"last_reading,omitempty"`
}

// ActuatorStatus is the recorded state of one actuator.
type ActuatorStatus struct {
	Status actuator.Status `json:"status"`
	Volume *uint8          `json:"volume,omitempty"`
}

// ReadingStatus is the last sensor reading. Failed reads carry Fault and
// Error instead of values.
type ReadingStatus struct {
	SensorType  string   `json:"sensor_type"`
	TakenAt     string   `json:"taken_at"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Fault       string   `json:"fault,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// handleStatus returns a snapshot of the agent's state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := s.actuators.State()
	volume := state.Volume

	writeJSON(w, http.StatusOK, StatusResponse{
		DeviceID:    s.deviceID,
		Settings:    s.settings.Get(),
		Humidifier:  ActuatorStatus{Status: actuator.StatusOf(state.HumidifierOn)},
		Speaker:     ActuatorStatus{Status: actuator.StatusOf(state.SpeakerOn), Volume: &volume},
		LastReading: readingStatus(s.readings.LastReading()),
	})
}

// readingStatus converts a Reading; nil before the first poll.
func readingStatus(r sensor.Reading) *ReadingStatus {
	if r.TakenAt.IsZero() && r.Err == nil {
		return nil
	}

	out := &ReadingStatus{SensorType: r.SensorType}
	if !r.TakenAt.IsZero() {
		out.TakenAt = r.TakenAt.UTC().Format(time.RFC3339)
	}
	if !r.OK() {
		out.Fault = sensor.FaultKind(r.Err)
		out.Error = r.Err.Error()
		return out
	}
	humidity, temperature := r.Humidity, r.Temperature
	out.Humidity = &humidity
	out.Temperature = &temperature
	return out
}

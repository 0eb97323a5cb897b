package actuator

// DeviceType identifies an actuator on the wire.
type DeviceType string

// Actuators driven by the agent.
const (
	Humidifier DeviceType = "humidifier"
	Speaker    DeviceType = "speaker"
)

// Status is the on/off state as published.
type Status string

// Status values.
const (
	StatusOn  Status = "on"
	StatusOff Status = "off"
)

// StatusOf converts a boolean to a Status.
func StatusOf(on bool) Status {
	if on {
		return StatusOn
	}
	return StatusOff
}

// Speaker volume bounds.
const (
	DefaultVolume uint8 = 50
	MaxVolume     uint8 = 100
)

// HumidifierDriver switches the humidifier.
type HumidifierDriver interface {
	SetPower(on bool) error
}

// SpeakerDriver switches the speaker and sets its volume (0..100).
type SpeakerDriver interface {
	SetOutput(on bool, volume uint8) error
}

// State is a snapshot of both actuators.
type State struct {
	HumidifierOn bool  `json:"humidifier_on"`
	SpeakerOn    bool  `json:"speaker_on"`
	Volume       uint8 `json:"volume"`
}

// DeviceStatusEvent describes an actuator's state after a command.
//
// It marshals to the device/status/{type} payload:
//
//	{"status":"on","timestamp":1729200000000,"volume":30}
type DeviceStatusEvent struct {
	DeviceType  DeviceType `json:"-"`
	Status      Status     `json:"status"`
	TimestampMs int64      `json:"timestamp"`
	// Volume is set for the speaker only.
	Volume *uint8 `json:"volume,omitempty"`

	// Changed reports whether the command altered the recorded state.
	Changed bool `json:"-"`
}

// On reports whether the event's status is on.
func (e DeviceStatusEvent) On() bool {
	return e.Status == StatusOn
}

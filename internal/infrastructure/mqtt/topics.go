package mqtt

import "fmt"

// Topic names shared with the control plane. These are a wire contract;
// the sleep-monitoring server subscribes to and publishes on them verbatim.
const (
	// TopicControlHumidifier carries on/off commands for the humidifier.
	TopicControlHumidifier = "control/humidifier"

	// TopicControlSpeaker carries on/off and volume commands for the speaker.
	TopicControlSpeaker = "control/speaker"

	// TopicSettingsAutomation carries partial automation settings updates.
	TopicSettingsAutomation = "settings/automation"

	// TopicSensorHumidity is where relative humidity readings are published.
	TopicSensorHumidity = "sensors/sleep/humidity"

	// TopicSensorTemperature is where temperature readings are published.
	TopicSensorTemperature = "sensors/sleep/temperature"

	// TopicSensorHeartRate carries heart-rate samples from a wearable.
	TopicSensorHeartRate = "sensors/sleep/heartrate"

	// TopicPrefixDeviceStatus is the base for actuator status topics.
	TopicPrefixDeviceStatus = "device/status"

	// TopicPrefixAvailability is the base for retained availability topics.
	TopicPrefixAvailability = "device/availability"
)

// Topics provides builders for DeepSleep MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.DeviceStatus("humidifier")
//	// Returns: "device/status/humidifier"
type Topics struct{}

// ControlHumidifier returns the humidifier command topic.
func (Topics) ControlHumidifier() string { return TopicControlHumidifier }

// ControlSpeaker returns the speaker command topic.
func (Topics) ControlSpeaker() string { return TopicControlSpeaker }

// SettingsAutomation returns the automation settings topic.
func (Topics) SettingsAutomation() string { return TopicSettingsAutomation }

// SensorHumidity returns the humidity telemetry topic.
func (Topics) SensorHumidity() string { return TopicSensorHumidity }

// SensorTemperature returns the temperature telemetry topic.
func (Topics) SensorTemperature() string { return TopicSensorTemperature }

// SensorHeartRate returns the heart-rate topic.
func (Topics) SensorHeartRate() string { return TopicSensorHeartRate }

// DeviceStatus returns the status topic for an actuator.
//
// Example: device/status/speaker
func (Topics) DeviceStatus(deviceType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDeviceStatus, deviceType)
}

// Availability returns the retained online/offline topic for a device.
//
// Example: device/availability/bedroom-01
func (Topics) Availability(deviceID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixAvailability, deviceID)
}

// Inbound returns every topic the agent subscribes to, given the
// configured heart-rate topic (empty to skip it).
func (t Topics) Inbound(heartRateTopic string) []string {
	topics := []string{
		t.ControlHumidifier(),
		t.ControlSpeaker(),
		t.SettingsAutomation(),
	}
	if heartRateTopic != "" {
		topics = append(topics, heartRateTopic)
	}
	return topics
}

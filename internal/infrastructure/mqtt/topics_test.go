package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"ControlHumidifier", Topics{}.ControlHumidifier(), "control/humidifier"},
		{"ControlSpeaker", Topics{}.ControlSpeaker(), "control/speaker"},
		{"SettingsAutomation", Topics{}.SettingsAutomation(), "settings/automation"},
		{"SensorHumidity", Topics{}.SensorHumidity(), "sensors/sleep/humidity"},
		{"SensorTemperature", Topics{}.SensorTemperature(), "sensors/sleep/temperature"},
		{"SensorHeartRate", Topics{}.SensorHeartRate(), "sensors/sleep/heartrate"},
		{"DeviceStatus humidifier", Topics{}.DeviceStatus("humidifier"), "device/status/humidifier"},
		{"DeviceStatus speaker", Topics{}.DeviceStatus("speaker"), "device/status/speaker"},
		{"Availability", Topics{}.Availability("bedroom-01"), "device/availability/bedroom-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestTopicsInbound(t *testing.T) {
	without := Topics{}.Inbound("")
	if len(without) != 3 {
		t.Fatalf("Inbound(\"\") = %v, want 3 topics", without)
	}

	with := Topics{}.Inbound("wearable/hr")
	if len(with) != 4 || with[3] != "wearable/hr" {
		t.Errorf("Inbound(\"wearable/hr\") = %v", with)
	}
}

package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "sensors/sleep/humidity")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Offline behaviour:
//   - Connected: waits for the broker acknowledgement (bounded by a timeout)
//   - Reconnecting: hands the message to paho's outbound store and returns
//     nil immediately; QoS 1/2 messages are sent after reconnect, QoS 0
//     messages are dropped by paho
//   - Closed: returns ErrNotConnected
//
// Returns:
//   - error: nil on success or when queued, or wrapped error describing the failure
//
// Example:
//
//	topic := mqtt.Topics{}.DeviceStatus("humidifier")
//	err := client.Publish(topic, []byte(`{"status":"on"}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	// Validate inputs
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	// Check connection state
	if !c.isUsable() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)

	// While reconnecting paho persists the packet and completes the token
	// only once the broker acks it, possibly minutes later.
	if !c.client.IsConnectionOpen() {
		return nil
	}

	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// availabilityQoS is used for the online/offline/LWT messages.
	availabilityQoS = 1

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// clientIDPrefix prefixes generated client IDs.
	clientIDPrefix = "deepsleep-"

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// ClientID returns the MQTT client ID for a device.
//
// An explicit broker.client_id wins. With persistence enabled the ID is
// derived from the device ID alone, since it must be stable across
// restarts for the broker to resume the session. Clean sessions get a
// random suffix so two agents sharing a device ID do not kick each other.
func ClientID(cfg config.MQTTConfig, deviceID string) string {
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	if cfg.Persistence.Enabled {
		return clientIDPrefix + deviceID
	}
	return clientIDPrefix + deviceID + "-" + uuid.NewString()[:8]
}

// buildClientOptions creates paho MQTT options from agent config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Outbound store and session mode
func buildClientOptions(cfg config.MQTTConfig, deviceID string, store pahomqtt.Store) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	// Client identification
	opts.SetClientID(ClientID(cfg, deviceID))

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// A durable store only pays off if the broker keeps our session too.
	if store != nil {
		opts.SetStore(store)
		opts.SetCleanSession(false)
		opts.SetResumeSubs(true)
	} else {
		opts.SetCleanSession(true)
	}

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Publishes made while reconnecting go to the store instead of blocking.
	opts.SetWriteTimeout(defaultPublishTimeout)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The LWT message is published by the broker if the agent disconnects
// unexpectedly (crash, power loss, network failure).
//
// Topic: device/availability/{deviceID}
// QoS: 1 (guaranteed delivery)
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, deviceID string) {
	willTopic := Topics{}.Availability(deviceID)
	willPayload := fmt.Sprintf(
		`{"status":"offline","device_id":"%s","reason":"unexpected_disconnect"}`,
		deviceID,
	)

	opts.SetWill(willTopic, willPayload, availabilityQoS, true)
}

// buildOnlinePayload creates the JSON payload for online availability messages.
func buildOnlinePayload(deviceID string) string {
	return fmt.Sprintf(
		`{"status":"online","device_id":"%s","timestamp":"%s"}`,
		deviceID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// buildOfflinePayload creates the JSON payload for graceful offline availability.
func buildOfflinePayload(deviceID string) string {
	return fmt.Sprintf(
		`{"status":"offline","device_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		deviceID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

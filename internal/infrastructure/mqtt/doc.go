// Package mqtt provides MQTT client connectivity for the DeepSleep agent.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Device availability and Last Will and Testament (LWT)
//   - A durable outbound queue on SQLite
//
// # Architecture
//
// The agent talks to the sleep-monitoring server only through the broker.
// Telemetry and actuator status flow out; commands, settings and heart
// rate samples flow in.
//
//	Sensors/actuators ↔ DeepSleep agent ↔ MQTT broker ↔ Control plane
//
// # Offline Behaviour
//
// While paho reconnects, publishes are accepted and parked in the paho
// Store. With SQLiteStore installed the session is persistent
// (CleanSession=false) and parked QoS 1/2 messages survive a restart.
//
// # Security Considerations
//
//   - TLS should be enabled outside the home LAN (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	store := mqtt.NewSQLiteStore(db)
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Device.ID, store)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.ControlHumidifier(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish(mqtt.Topics{}.SensorHumidity(), []byte(`{"value":41.5}`), 1, false)
package mqtt

// Package mqtt provides the outbound telemetry client for Lumen Core.
//
// The client wraps paho.mqtt.golang with connection management,
// automatic reconnection, Last Will and Testament for offline
// detection, and publish helpers. It is deliberately publish-only:
// device state observation goes through the transports, never through
// the broker, so there is no subscription support.
//
// Topic hierarchy:
//
//	lumen/system/status                      service online/offline (retained)
//	lumen/device/{id}/state                  observed device state (retained)
//	lumen/device/{id}/command                command outcome events
//	lumen/device/{id}/transport/{kind}       transport health changes
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState("living-room-lamp")
//	err = client.PublishJSON(topic, observed, true)
package mqtt

package mqtt

import "fmt"

// Topic prefixes for the Lumen MQTT hierarchy.
//
// All topics live under a single "lumen" root: lumen/{category}/...
const (
	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "lumen/device"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lumen/system"
)

// Topics provides builders for Lumen MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("living-room-lamp")
//	// Returns: "lumen/device/living-room-lamp/state"
type Topics struct{}

// DeviceState returns the topic for observed device state.
// Published retained after every successful state observation.
//
// Example: lumen/device/living-room-lamp/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, deviceID)
}

// DeviceCommand returns the topic for command outcome events.
// One message per executed command, not retained.
//
// Example: lumen/device/living-room-lamp/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevice, deviceID)
}

// DeviceTransportHealth returns the topic for transport health changes
// of one device's path.
//
// Example: lumen/device/living-room-lamp/transport/lan
func (Topics) DeviceTransportHealth(deviceID, transport string) string {
	return fmt.Sprintf("%s/%s/transport/%s", TopicPrefixDevice, deviceID, transport)
}

// SystemStatus returns the service status topic. The online message,
// the graceful offline message, and the LWT all use this topic.
//
// Example: lumen/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

package mqtt

import "fmt"

// Topic prefixes for FleetSim MQTT traffic.
//
// All topics live under one root: fleetsim/{category}/...
const (
	// TopicPrefix is the root of all FleetSim topics.
	TopicPrefix = "fleetsim"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fleetsim/system"
)

// Topics provides builders for FleetSim MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// SystemStatus returns the topic for publisher online/offline status.
//
// Example: fleetsim/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// TelemetryReadings returns the default topic for reading batches.
//
// The actual publish topic is configurable (mqtt.topic); this builder
// supplies the default.
//
// Example: fleetsim/telemetry/readings
func (Topics) TelemetryReadings() string {
	return fmt.Sprintf("%s/telemetry/readings", TopicPrefix)
}

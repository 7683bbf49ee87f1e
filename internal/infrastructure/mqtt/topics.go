package mqtt

import "fmt"

// Topic prefixes for the StageCue MQTT namespace.
//
// Commands to device bridges use the flat scheme:
// stagecue/command/{category}/{target}. Events from external producers
// arrive on stagecue/event/{source}.
const (
	// TopicPrefix is the base for all StageCue topics.
	TopicPrefix = "stagecue"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "stagecue/system"
)

// Topics provides builders for StageCue MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// Command returns the topic for commands to a device bridge.
//
// Example: stagecue/command/lighting/console
func (Topics) Command(category, target string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, category, target)
}

// Event returns the topic an external producer publishes events on.
//
// Example: stagecue/event/match-control
func (Topics) Event(source string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, source)
}

// AllEvents returns the wildcard subscription for inbound events.
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/+"
}

// FieldState returns the retained topic for a field's canonical state.
//
// Example: stagecue/state/field/1
func (Topics) FieldState(fieldID string) string {
	return fmt.Sprintf("%s/state/field/%s", TopicPrefix, fieldID)
}

// SystemStatus returns the topic for Core online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

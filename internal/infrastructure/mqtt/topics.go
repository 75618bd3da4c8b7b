package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for GridLink MQTT traffic.
const (
	// TopicPrefixCore is the base for everything Core publishes.
	TopicPrefixCore = "gridlink/core"

	// TopicPrefixCommand is the base for commands Core subscribes to.
	TopicPrefixCommand = "gridlink/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "gridlink/system"
)

// Topics provides builders for GridLink MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.StoreChanged("edev")            // gridlink/core/store/edev/changed
//	topics.ControlEvent(1, "AB12", "started") // gridlink/core/derp/1/control/AB12/started
type Topics struct{}

// StoreChanged is published by the MQTT persister after each store mutation.
func (Topics) StoreChanged(store string) string {
	return fmt.Sprintf("%s/store/%s/changed", TopicPrefixCore, sanitize(store))
}

// ControlEvent is published when a DER control starts or ends.
func (Topics) ControlEvent(program int, mrid, event string) string {
	return fmt.Sprintf("%s/derp/%d/control/%s/%s", TopicPrefixCore, program, mrid, event)
}

// MirrorReading is published when a mirror meter reading is posted.
func (Topics) MirrorReading(mup int) string {
	return fmt.Sprintf("%s/mup/%d/reading", TopicPrefixCore, mup)
}

// ControlStatusCommand is the topic a head-end uses to set a control's status.
func (Topics) ControlStatusCommand(program, control int) string {
	return fmt.Sprintf("%s/derp/%d/derc/%d/status", TopicPrefixCommand, program, control)
}

// AllControlCommands matches every ControlStatusCommand topic.
func (Topics) AllControlCommands() string {
	return TopicPrefixCommand + "/derp/+/derc/+/status"
}

// SystemStatus carries Core's retained online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ParseControlStatusCommand extracts the program and control indices from
// a ControlStatusCommand topic.
func ParseControlStatusCommand(topic string) (program, control int, err error) {
	var tail string
	n, scanErr := fmt.Sscanf(strings.TrimPrefix(topic, TopicPrefixCommand), "/derp/%d/derc/%d/%s", &program, &control, &tail)
	if scanErr != nil || n != 3 || tail != "status" || !strings.HasPrefix(topic, TopicPrefixCommand+"/") {
		return 0, 0, fmt.Errorf("%w: %q is not a control status command", ErrUnexpectedTopic, topic)
	}
	return program, control, nil
}

// sanitize replaces MQTT wildcard and separator characters in a store name.
// Store names are hrefs such as "/derp_1_derc", so the leading slash is dropped.
func sanitize(store string) string {
	store = strings.TrimPrefix(store, "/")
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(store)
}

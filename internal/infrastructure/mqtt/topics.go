package mqtt

import (
	"fmt"
	"strings"
)

// Topics builds the gateway's MQTT topics from the configured base topic
// and Home Assistant discovery prefix.
//
//	topics := mqtt.NewTopics("genius-gateway", "homeassistant/binary_sensor/genius-")
//	topics.Actions()          // "genius-gateway/actions"
//	topics.HAState(12345678)  // "homeassistant/binary_sensor/genius-12345678/state"
type Topics struct {
	base     string
	haPrefix string
}

// NewTopics returns a topic builder. A trailing slash on base is dropped.
func NewTopics(base, haPrefix string) Topics {
	return Topics{base: strings.TrimSuffix(base, "/"), haPrefix: haPrefix}
}

// Base returns the base topic.
func (t Topics) Base() string {
	return t.base
}

// Status returns the retained online/offline topic, also used as the LWT.
func (t Topics) Status() string {
	return t.base + "/status"
}

// Health returns the periodic health report topic.
func (t Topics) Health() string {
	return t.base + "/health"
}

// Event returns the topic for a named gateway event.
//
// Example: genius-gateway/events/alarm-line-action-finished
func (t Topics) Event(name string) string {
	return fmt.Sprintf("%s/events/%s", t.base, name)
}

// AllEvents matches every gateway event.
func (t Topics) AllEvents() string {
	return t.base + "/events/#"
}

// Actions returns the topic action requests arrive on.
func (t Topics) Actions() string {
	return t.base + "/actions"
}

// ActionResult returns the topic action responses are published on.
func (t Topics) ActionResult() string {
	return t.base + "/actions/result"
}

// Blocker returns the topic alarm blocker requests arrive on.
func (t Topics) Blocker() string {
	return t.base + "/blocker"
}

// HABase returns the Home Assistant "~" abbreviation for a detector.
func (t Topics) HABase(sn uint32) string {
	return fmt.Sprintf("%s%d", t.haPrefix, sn)
}

// HAConfig returns the retained Home Assistant discovery topic for a detector.
func (t Topics) HAConfig(sn uint32) string {
	return t.HABase(sn) + "/config"
}

// HAState returns the Home Assistant state topic for a detector.
func (t Topics) HAState(sn uint32) string {
	return t.HABase(sn) + "/state"
}

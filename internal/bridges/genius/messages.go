package genius

import (
	"strconv"
	"time"
)

// MQTT message types exchanged with home automation systems.

// ActionRequest asks the gateway to transmit on an alarm line.
// Topic: {base}/actions
type ActionRequest struct {
	// LineID is the target alarm line.
	LineID uint32 `json:"lineId"`

	// Action is one of line-test-start, line-test-stop, fire-alarm-start,
	// fire-alarm-stop or reset-alarms.
	Action string `json:"action"`
}

// ActionResetAlarms closes every active alarm. It is handled locally and
// never transmitted.
const ActionResetAlarms = "reset-alarms"

// ActionStatus is the outcome of an action request.
type ActionStatus string

const (
	// StatusOK indicates the request was accepted.
	StatusOK ActionStatus = "ok"

	// StatusBusy indicates a transmission is already in progress.
	StatusBusy ActionStatus = "busy"

	// StatusMalformedInput indicates the request could not be decoded.
	StatusMalformedInput ActionStatus = "malformed-input"

	// StatusUnknownAction indicates an unsupported action name.
	StatusUnknownAction ActionStatus = "unknown-action"

	// StatusBlocked indicates alarm actions are currently blocked.
	StatusBlocked ActionStatus = "blocked"

	// StatusError indicates the gateway could not take the request.
	StatusError ActionStatus = "error"
)

// ActionResult answers an ActionRequest.
// Topic: {base}/actions/result
type ActionResult struct {
	Status ActionStatus `json:"status"`
	Action string       `json:"action,omitempty"`
	LineID uint32       `json:"lineId,omitempty"`

	// TransmissionID matches the completion event of an accepted burst.
	TransmissionID string `json:"transmissionId,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// BlockRequest starts or ends the alarm blocker. Zero seconds ends it.
// Topic: {base}/blocker
type BlockRequest struct {
	Seconds uint32 `json:"seconds"`
}

// AlarmStateMessage summarises the alarm state.
// Topic: configured alarm topic.
type AlarmStateMessage struct {
	IsAlarming      bool     `json:"isAlarming"`
	NumAlarming     int      `json:"numAlarming"`
	AlarmingDevices []uint32 `json:"alarmingDevices"`
}

// HADevice is the device block of a Home Assistant discovery payload.
type HADevice struct {
	Identifiers   string `json:"identifiers"`
	Manufacturer  string `json:"manufacturer"`
	Model         string `json:"model"`
	Name          string `json:"name"`
	SerialNumber  string `json:"serial_number"`
	SuggestedArea string `json:"suggested_area,omitempty"`
}

// HAConfig is the retained Home Assistant discovery payload of a detector.
type HAConfig struct {
	Base          string   `json:"~"`
	Name          string   `json:"name"`
	UniqueID      string   `json:"unique_id"`
	DeviceClass   string   `json:"device_class"`
	StateTopic    string   `json:"state_topic"`
	ValueTemplate string   `json:"value_template"`
	Device        HADevice `json:"device"`
}

// HAState is the Home Assistant state payload of a detector.
type HAState struct {
	State string `json:"state"`
}

// Home Assistant constants.
const (
	haManufacturer = "Hekatron Vertriebs GmbH"
	haModel        = "Genius Plus X"
	haDeviceName   = "Smoke detector"
	haStateOn      = "ON"
	haStateOff     = "OFF"
)

// NewHAConfig builds the discovery payload for a detector.
func NewHAConfig(base string, sn uint32, location string) HAConfig {
	id := strconv.FormatUint(uint64(sn), 10)
	return HAConfig{
		Base:          base,
		Name:          haModel,
		UniqueID:      id,
		DeviceClass:   "smoke",
		StateTopic:    "~/state",
		ValueTemplate: "{{value_json.state}}",
		Device: HADevice{
			Identifiers:   id,
			Manufacturer:  haManufacturer,
			Model:         haModel,
			Name:          haDeviceName,
			SerialNumber:  id,
			SuggestedArea: location,
		},
	}
}

// NewHAState builds the state payload for a detector.
func NewHAState(alarming bool) HAState {
	if alarming {
		return HAState{State: haStateOn}
	}
	return HAState{State: haStateOff}
}

// HealthStatus represents the health status of the gateway.
type HealthStatus string

const (
	// HealthHealthy indicates the radio and MQTT are working.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates partial functionality.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the gateway is initialising.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the gateway is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the periodic gateway health report.
// Topic: {base}/health, QoS 1, retained.
type HealthMessage struct {
	GatewayID     string       `json:"gateway_id"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	Radio *RadioHealth `json:"radio,omitempty"`

	// Dependencies maps a dependency name (mqtt, influxdb, database) to
	// its reachability at report time.
	Dependencies map[string]DependencyHealth `json:"dependencies,omitempty"`

	Devices     int  `json:"devices"`
	NumAlarming int  `json:"num_alarming"`
	AlarmLines  int  `json:"alarm_lines"`
	Blocked     bool `json:"blocked"`
}

// RadioHealth reports the transceiver state.
type RadioHealth struct {
	OK           bool   `json:"ok"`
	State        string `json:"state"`
	Recoveries   uint64 `json:"recoveries"`
	Received     uint64 `json:"received"`
	Duplicates   uint64 `json:"duplicates"`
	Transmitting bool   `json:"transmitting"`
}

// DependencyHealth reports whether the gateway reached a dependency.
type DependencyHealth struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

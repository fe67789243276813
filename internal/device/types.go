package device

import "time"

// Limits and defaults for the device registry.
const (
	// MaxDevices is the maximum number of devices the registry holds.
	MaxDevices = 50

	// MaxAlarms is the maximum number of alarm records kept per device.
	// When exceeded the oldest closed record is dropped.
	MaxAlarms = 100

	// DefaultLocation is assigned to devices registered from a packet.
	DefaultLocation = "Unknown location"
)

// Origin tags carried by change notifications.
const (
	OriginAlarmStateChange = "alarm-state-change"
	OriginAddedFromPacket  = "genius-device-added-from-packet"
	OriginAdministration   = "devices-admin"
)

// SmokeDetectorModel identifies the smoke detector hardware.
type SmokeDetectorModel int8

// Smoke detector models.
const (
	SmokeDetectorUnknown     SmokeDetectorModel = -1
	SmokeDetectorGeniusPlusX SmokeDetectorModel = 0
)

// String returns the product name of the model.
func (m SmokeDetectorModel) String() string {
	if m == SmokeDetectorGeniusPlusX {
		return "Genius Plus X"
	}
	return "unknown"
}

// RadioModuleModel identifies the radio module hardware.
type RadioModuleModel int8

// Radio module models.
const (
	RadioModuleUnknown  RadioModuleModel = -1
	RadioModuleFMBasisX RadioModuleModel = 0
)

// String returns the product name of the model.
func (m RadioModuleModel) String() string {
	if m == RadioModuleFMBasisX {
		return "FM Basis X"
	}
	return "unknown"
}

// Registration records how a device entered the registry.
type Registration int8

// Registration methods.
const (
	RegistrationBuiltIn      Registration = 0
	RegistrationGeniusPacket Registration = 1
	RegistrationManual       Registration = 2
)

// Valid reports whether r is a known registration method.
func (r Registration) Valid() bool {
	return r >= RegistrationBuiltIn && r <= RegistrationManual
}

// AlarmEnding records why an alarm ended.
type AlarmEnding int8

// Alarm endings.
const (
	EndingActive          AlarmEnding = -1
	EndingBySmokeDetector AlarmEnding = 0
	EndingManual          AlarmEnding = 1
)

// SmokeDetector is the detector half of a Genius device.
type SmokeDetector struct {
	Model          SmokeDetectorModel `json:"model"`
	SN             uint32             `json:"sn"`
	ProductionDate time.Time          `json:"productionDate,omitzero"`
}

// RadioModule is the radio half of a Genius device.
type RadioModule struct {
	Model          RadioModuleModel `json:"model"`
	SN             uint32           `json:"sn"`
	ProductionDate time.Time        `json:"productionDate,omitzero"`
}

// Alarm is one entry in a device's alarm history.
// End is the zero time while the alarm is active.
type Alarm struct {
	Start  time.Time   `json:"startTime"`
	End    time.Time   `json:"endTime,omitzero"`
	Ending AlarmEnding `json:"endingReason"`
}

// Active reports whether the alarm has not ended yet.
func (a Alarm) Active() bool {
	return a.Ending == EndingActive
}

// Device is a smoke detector with its radio module.
// SmokeDetector.SN is the registry key.
type Device struct {
	ID            uint32        `json:"id"`
	SmokeDetector SmokeDetector `json:"smokeDetector"`
	RadioModule   RadioModule   `json:"radioModule"`
	Location      string        `json:"location"`
	Registration  Registration  `json:"registration"`
	Alarms        []Alarm       `json:"alarms"`
	IsAlarming    bool          `json:"isAlarming"`

	// Published is false while the current state has not been propagated
	// to the Home Assistant integration.
	Published bool `json:"-"`
}

// SN returns the smoke detector serial number.
func (d *Device) SN() uint32 {
	return d.SmokeDetector.SN
}

// DeepCopy creates an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Alarms != nil {
		cp.Alarms = make([]Alarm, len(d.Alarms))
		copy(cp.Alarms, d.Alarms)
	}
	return &cp
}

// Projection is the minimal view of a device needed by the MQTT publisher.
type Projection struct {
	SmokeDetectorSN uint32
	Location        string
	IsAlarming      bool
}

// ChangeHandler is invoked after the registry changed externally visible state.
// The origin tag names what caused the change.
type ChangeHandler func(origin string)

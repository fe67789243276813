package genius

import (
	"errors"
	"fmt"

	"github.com/nerrad567/genius-gateway/internal/alarmline"
	"github.com/nerrad567/genius-gateway/internal/device"
)

// DeviceRegistry is the part of the device registry the dispatcher mutates.
// It is satisfied by *device.Registry.
type DeviceRegistry interface {
	IsKnown(sn uint32) bool
	AddFromPacket(radioModuleSN, smokeDetectorSN uint32) (device.Device, error)
	SetAlarm(sn uint32) bool
	ResetAlarm(sn uint32, ending device.AlarmEnding) bool
}

// LineRegistry is the part of the alarm line registry the dispatcher uses.
// It is satisfied by *alarmline.Registry.
type LineRegistry interface {
	AddDiscovered(id uint32) (bool, error)
}

// AlarmRecorder stores alarm transitions in the time-series log.
// It is satisfied by *influxdb.Client.
type AlarmRecorder interface {
	WriteAlarm(detectorSN uint32, alarming bool, origin string)
}

// Features are the behaviour switches that decide which packets mutate
// the registries.
type Features struct {
	// AlertOnUnknownDetectors registers unknown detectors found in alarm
	// start packets before raising their alarm.
	AlertOnUnknownDetectors bool

	// LinesFromCommissioning, LinesFromAlarm and LinesFromLineTest add the
	// line id carried by the respective packets to the line registry.
	LinesFromCommissioning bool
	LinesFromAlarm         bool
	LinesFromLineTest      bool
}

// Dispatcher applies decoded packets to the registries.
type Dispatcher struct {
	devices  DeviceRegistry
	lines    LineRegistry
	alarms   AlarmRecorder
	features Features
	logger   Logger
}

// NewDispatcher creates a dispatcher. alarms may be nil.
func NewDispatcher(devices DeviceRegistry, lines LineRegistry, alarms AlarmRecorder, features Features) *Dispatcher {
	return &Dispatcher{
		devices:  devices,
		lines:    lines,
		alarms:   alarms,
		features: features,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Dispatch applies one non-duplicate, decoded packet. Unknown and
// discovery packets change nothing.
func (d *Dispatcher) Dispatch(ev Event) {
	switch ev.Kind {
	case KindCommissioning:
		if d.features.LinesFromCommissioning {
			d.registerLine(ev.NewLineID, ev.Kind)
		}

	case KindAlarmStart, KindAlarmStop:
		if ev.SourceDetector == GatewayID || ev.OriginID == GatewayID {
			d.logger.Debug("ignoring own alarm packet", "line_id", hex32(ev.LineID))
			return
		}
		if ev.Kind == KindAlarmStart {
			d.alarmStart(ev)
		} else {
			d.alarmStop(ev)
		}
		if d.features.LinesFromAlarm {
			d.registerLine(ev.LineID, ev.Kind)
		}

	case KindLineTestStart, KindLineTestStop:
		if d.features.LinesFromLineTest {
			d.registerLine(ev.LineID, ev.Kind)
		}

	case KindDiscoveryRequest, KindDiscoveryResponse, KindUnknown:
	}
}

func (d *Dispatcher) alarmStart(ev Event) {
	sn := ev.SourceDetector
	if !d.devices.IsKnown(sn) {
		if !d.features.AlertOnUnknownDetectors {
			d.logger.Info("alarm from unknown smoke detector ignored", "smoke_detector_sn", sn)
			return
		}
		if _, err := d.devices.AddFromPacket(ev.OriginID, sn); err != nil {
			d.logger.Warn("registering smoke detector from alarm failed", "smoke_detector_sn", sn, "error", err)
			return
		}
	}
	if d.devices.SetAlarm(sn) && d.alarms != nil {
		d.alarms.WriteAlarm(sn, true, device.OriginAlarmStateChange)
	}
}

func (d *Dispatcher) alarmStop(ev Event) {
	sn := ev.SourceDetector
	if d.devices.ResetAlarm(sn, device.EndingBySmokeDetector) && d.alarms != nil {
		d.alarms.WriteAlarm(sn, false, device.OriginAlarmStateChange)
	}
}

func (d *Dispatcher) registerLine(id uint32, kind Kind) {
	added, err := d.lines.AddDiscovered(id)
	switch {
	case errors.Is(err, alarmline.ErrInvalidArgument):
		d.logger.Debug("packet carries no usable line id", "kind", kind, "line_id", hex32(id))
	case err != nil:
		d.logger.Warn("registering alarm line failed", "kind", kind, "line_id", hex32(id), "error", err)
	case added:
		d.logger.Info("alarm line discovered", "kind", kind, "line_id", hex32(id))
	}
}

func hex32(v uint32) string {
	return fmt.Sprintf("%08X", v)
}

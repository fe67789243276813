package genius

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Action names accepted by the sequencer.
const (
	ActionLineTestStart  = "line-test-start"
	ActionLineTestStop   = "line-test-stop"
	ActionFireAlarmStart = "fire-alarm-start"
	ActionFireAlarmStop  = "fire-alarm-stop"
)

// Burst parameters. Periods are the on-air spacing of the original
// Hekatron equipment.
const (
	lineTestRepeats  = 370
	lineTestPeriod   = 8395 * time.Microsecond
	fireAlarmRepeats = 315
	fireAlarmPeriod  = 9855 * time.Microsecond

	counterFirst          uint16 = 0x18CC
	lineTestCounterLast   uint16 = 0x0002
	fireAlarmCounterLast  uint16 = 0x000A
	posFireAlarmStartFlag        = 28
	posFireAlarmStopFlag         = 30
)

var templateLineTestStart = [LenLineTest]byte{
	0x02,
	0xCC, 0x18, // counter
	0x00,
	0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE, // origin: gateway
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE, // sender: gateway
	0x00, 0x00, 0x00, 0x00, // line id
	0x0F, // hops
	0x00, // sequence number
	0x48, 0x00, 0x66, 0x04,
	0x06, // start
}

var templateLineTestStop = [LenLineTest]byte{
	0x02,
	0xCC, 0x18,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE,
	0x00, 0x00, 0x00, 0x00,
	0x0F,
	0x00,
	0x48, 0x00, 0x66, 0x04,
	0x00, // stop
}

var templateFireAlarm = [LenAlarm]byte{
	0x02,
	0xCC, 0x18,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFF,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE,
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE,
	0x00, 0x00, 0x00, 0x00,
	0x0F,
	0x00,
	0x48, 0x00, 0x00, 0x00,
	0x00, // start flag
	0x00,
	0x00, // stop flag
	0x00,
	0xFF, 0xFF, 0xFF, 0xFE, // source detector: gateway
}

// Plan is a prepared transmission burst.
type Plan struct {
	Action  string
	LineID  uint32
	Frame   []byte
	Repeats int
	Period  time.Duration

	counterLast uint16
}

// IsAlarm reports whether the plan transmits a fire alarm packet.
func (p Plan) IsAlarm() bool {
	return p.Action == ActionFireAlarmStart || p.Action == ActionFireAlarmStop
}

// NewPlan copies the template for action, writes the line id (big-endian)
// and the sequence number, and sets the repeat count and period.
func NewPlan(action string, lineID uint32, seq uint8) (Plan, error) {
	p := Plan{Action: action, LineID: lineID}
	switch action {
	case ActionLineTestStart:
		p.Frame = append([]byte(nil), templateLineTestStart[:]...)
		p.Repeats, p.Period, p.counterLast = lineTestRepeats, lineTestPeriod, lineTestCounterLast
	case ActionLineTestStop:
		p.Frame = append([]byte(nil), templateLineTestStop[:]...)
		p.Repeats, p.Period, p.counterLast = lineTestRepeats, lineTestPeriod, lineTestCounterLast
	case ActionFireAlarmStart:
		p.Frame = append([]byte(nil), templateFireAlarm[:]...)
		p.Frame[posFireAlarmStartFlag] = 0x01
		p.Repeats, p.Period, p.counterLast = fireAlarmRepeats, fireAlarmPeriod, fireAlarmCounterLast
	case ActionFireAlarmStop:
		p.Frame = append([]byte(nil), templateFireAlarm[:]...)
		p.Frame[posFireAlarmStopFlag] = 0x01
		p.Repeats, p.Period, p.counterLast = fireAlarmRepeats, fireAlarmPeriod, fireAlarmCounterLast
	default:
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	binary.BigEndian.PutUint32(p.Frame[posLineID:posLineID+4], lineID)
	p.Frame[posSequence] = seq
	return p, nil
}

// Counter returns the rolling counter for iteration i (0-based). It falls
// linearly from 0x18CC on the first packet to the action's last value on
// the final packet, as the detectors do.
func (p Plan) Counter(i int) uint16 {
	if p.Repeats <= 1 || i <= 0 {
		return counterFirst
	}
	if i >= p.Repeats-1 {
		return p.counterLast
	}
	span := int(counterFirst - p.counterLast)
	return counterFirst - uint16(span*i/(p.Repeats-1)) //nolint:gosec // bounded by span
}

// FrameAt writes the counter for iteration i into the frame and returns it.
// The returned slice is reused between calls.
func (p Plan) FrameAt(i int) []byte {
	binary.LittleEndian.PutUint16(p.Frame[posCounter:posCounter+2], p.Counter(i))
	return p.Frame
}

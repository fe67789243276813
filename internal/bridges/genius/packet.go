package genius

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Packet lengths. The Genius protocol identifies a packet type by its
// payload length alone.
const (
	LenDiscoveryRequest  = 28
	LenLineTest          = 29
	LenDiscoveryResponse = 32
	LenAlarm             = 36
	LenCommissioning     = 37
)

// Field offsets inside a Genius payload (length prefix already stripped).
//
//	Byte 0:      framing marker, always 0x02
//	Byte 1-2:    rolling counter (little-endian), not semantic
//	Byte 9-12:   origin radio module id (big-endian)
//	Byte 14-17:  sender radio module id (big-endian)
//	Byte 18-21:  alarm line id (big-endian)
//	Byte 22:     hops remaining, counting down from 0xF
//	Byte 23:     sequence number
//	Byte 28+:    type specific data
const (
	posMarker        = 0
	posCounter       = 1
	posOrigin        = 9
	posSender        = 14
	posLineID        = 18
	posHops          = 22
	posSequence      = 23
	posNewLineID     = 28 // commissioning
	posAlarmActive   = 28 // alarm
	posAlarmSilence  = 30 // alarm
	posAlarmSource   = 32 // alarm, little-endian
	posLineTestStart = 28 // line test
)

// Protocol constants.
const (
	// Marker is the first byte of every Genius payload.
	Marker byte = 0x02

	// GatewayID is the radio module id the gateway transmits as. Alarm
	// packets naming it as source are the gateway's own and are ignored.
	GatewayID uint32 = 0xFFFFFFFE

	// hopsFirst is the hop counter value of a packet that has not been
	// repeated yet.
	hopsFirst = 0x0F

	// dedupSkip is the number of leading bytes excluded from the duplicate
	// checksum (marker and rolling counter).
	dedupSkip = 3
)

// Kind is the decoded type of a Genius packet.
type Kind int

// Packet kinds.
const (
	KindUnknown Kind = iota
	KindCommissioning
	KindDiscoveryRequest
	KindDiscoveryResponse
	KindAlarmStart
	KindAlarmStop
	KindLineTestStart
	KindLineTestStop
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindCommissioning:     "commissioning",
	KindDiscoveryRequest:  "discovery-request",
	KindDiscoveryResponse: "discovery-response",
	KindAlarmStart:        "alarm-start",
	KindAlarmStop:         "alarm-stop",
	KindLineTestStart:     "line-test-start",
	KindLineTestStop:      "line-test-stop",
}

// String returns the kind name used in logs and the packet log.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsAlarm reports whether k is an alarm start or stop.
func (k Kind) IsAlarm() bool {
	return k == KindAlarmStart || k == KindAlarmStop
}

// IsLineTest reports whether k is a line test start or stop.
func (k Kind) IsLineTest() bool {
	return k == KindLineTestStart || k == KindLineTestStop
}

// Packet is a bounds-checked view of a received Genius payload.
// Accessors return ErrShortPacket instead of reading past the end.
type Packet []byte

func (p Packet) byteAt(pos int) (byte, error) {
	if pos >= len(p) {
		return 0, fmt.Errorf("%w: need byte %d, have %d", ErrShortPacket, pos, len(p))
	}
	return p[pos], nil
}

func (p Packet) uint32BE(pos int) (uint32, error) {
	if pos+4 > len(p) {
		return 0, fmt.Errorf("%w: need bytes %d-%d, have %d", ErrShortPacket, pos, pos+3, len(p))
	}
	return binary.BigEndian.Uint32(p[pos : pos+4]), nil
}

// Counter returns the rolling counter in bytes 1-2.
func (p Packet) Counter() (uint16, error) {
	if posCounter+2 > len(p) {
		return 0, fmt.Errorf("%w: need bytes 1-2, have %d", ErrShortPacket, len(p))
	}
	return binary.LittleEndian.Uint16(p[posCounter : posCounter+2]), nil
}

// OriginID returns the radio module id that originated the packet.
func (p Packet) OriginID() (uint32, error) { return p.uint32BE(posOrigin) }

// SenderID returns the radio module id that sent (or repeated) the packet.
func (p Packet) SenderID() (uint32, error) { return p.uint32BE(posSender) }

// LineID returns the alarm line id.
func (p Packet) LineID() (uint32, error) { return p.uint32BE(posLineID) }

// Hops returns how many times the packet has been repeated.
func (p Packet) Hops() (uint8, error) {
	b, err := p.byteAt(posHops)
	if err != nil {
		return 0, err
	}
	return hopsFirst - b, nil
}

// Sequence returns the packet sequence number.
func (p Packet) Sequence() (uint8, error) { return p.byteAt(posSequence) }

// NewLineID returns the line id assigned by a commissioning packet.
func (p Packet) NewLineID() (uint32, error) { return p.uint32BE(posNewLineID) }

// AlarmSource returns the smoke detector serial number of an alarm packet.
// Unlike the other ids it is stored little-endian.
func (p Packet) AlarmSource() (uint32, error) {
	if posAlarmSource+4 > len(p) {
		return 0, fmt.Errorf("%w: need bytes 32-35, have %d", ErrShortPacket, len(p))
	}
	return binary.LittleEndian.Uint32(p[posAlarmSource : posAlarmSource+4]), nil
}

// Classify returns the packet kind. It is a total function of the length
// and the flag bytes; anything not matching a known pattern is KindUnknown.
func Classify(p Packet) Kind {
	switch len(p) {
	case LenCommissioning:
		return KindCommissioning
	case LenDiscoveryRequest:
		return KindDiscoveryRequest
	case LenDiscoveryResponse:
		return KindDiscoveryResponse
	case LenAlarm:
		switch {
		case p[posAlarmActive] == 1:
			return KindAlarmStart
		case p[posAlarmSilence] == 1:
			return KindAlarmStop
		}
		return KindUnknown
	case LenLineTest:
		if p[posLineTestStart] != 0 {
			return KindLineTestStart
		}
		return KindLineTestStop
	}
	return KindUnknown
}

// Event is a decoded Genius packet.
type Event struct {
	Kind     Kind
	OriginID uint32
	SenderID uint32
	LineID   uint32
	Hops     uint8
	Sequence uint8

	// NewLineID is set for commissioning packets.
	NewLineID uint32

	// SourceDetector is set for alarm packets.
	SourceDetector uint32

	Captured time.Time
}

// Decode classifies p and extracts the common and type specific fields.
// Unknown packets return an Event with only Kind and Captured set.
func Decode(p Packet, captured time.Time) (Event, error) {
	ev := Event{Kind: Classify(p), Captured: captured}
	if ev.Kind == KindUnknown {
		return ev, nil
	}

	var err error
	if ev.OriginID, err = p.OriginID(); err != nil {
		return ev, err
	}
	if ev.SenderID, err = p.SenderID(); err != nil {
		return ev, err
	}
	if ev.LineID, err = p.LineID(); err != nil {
		return ev, err
	}
	if ev.Hops, err = p.Hops(); err != nil {
		return ev, err
	}
	if ev.Sequence, err = p.Sequence(); err != nil {
		return ev, err
	}

	switch {
	case ev.Kind == KindCommissioning:
		ev.NewLineID, err = p.NewLineID()
	case ev.Kind.IsAlarm():
		ev.SourceDetector, err = p.AlarmSource()
	}
	return ev, err
}

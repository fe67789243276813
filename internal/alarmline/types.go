package alarmline

import (
	"fmt"
	"time"
)

// Reserved line ids and limits.
const (
	// BroadcastID addresses every detector regardless of its line.
	BroadcastID uint32 = 0xFFFFFFFF

	// NoneID is never a valid line id.
	NoneID uint32 = 0x00000000

	// BroadcastName is the name of the built-in broadcast line.
	BroadcastName = "Broadcast"

	// MaxLines is the maximum number of alarm lines in the registry.
	MaxLines = 100

	// MaxNameLength is the maximum line name length in characters.
	MaxNameLength = 100

	// Origin tags change notifications raised by this package.
	Origin = "alarm-lines"
)

// Acquisition records how a line entered the registry.
type Acquisition int8

// Acquisition methods.
const (
	AcquisitionBuiltIn      Acquisition = 0
	AcquisitionGeniusPacket Acquisition = 1
	AcquisitionManual       Acquisition = 2
)

// Valid reports whether a is a known acquisition method.
func (a Acquisition) Valid() bool {
	return a >= AcquisitionBuiltIn && a <= AcquisitionManual
}

// String returns a readable acquisition name.
func (a Acquisition) String() string {
	switch a {
	case AcquisitionBuiltIn:
		return "built-in"
	case AcquisitionGeniusPacket:
		return "genius-packet"
	case AcquisitionManual:
		return "manual"
	default:
		return fmt.Sprintf("acquisition(%d)", int8(a))
	}
}

// Line is an alarm line, the logical group a detector transmits on.
type Line struct {
	ID          uint32      `json:"id"`
	Name        string      `json:"name"`
	Created     time.Time   `json:"created"`
	Acquisition Acquisition `json:"acquisition"`
}

// DiscoveredName is the name given to a line learned from a packet.
func DiscoveredName(id uint32) string {
	return fmt.Sprintf("Alarm line %08X", id)
}

package cc1101

import "errors"

// Sentinel errors for transceiver operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrHardwareFault is returned when the reset sequence fails on the bus.
	ErrHardwareFault = errors.New("cc1101: hardware fault")

	// ErrBusError is returned when an SPI transaction or strobe fails.
	ErrBusError = errors.New("cc1101: bus error")

	// ErrConfigurationFailed is returned when the register table cannot be written.
	ErrConfigurationFailed = errors.New("cc1101: configuration failed")

	// ErrUnsupportedDevice is returned when PARTNUM/VERSION do not match a CC1101.
	ErrUnsupportedDevice = errors.New("cc1101: unsupported device")

	// ErrNoData is returned when the RX FIFO is empty.
	ErrNoData = errors.New("cc1101: no data")

	// ErrFIFOOverflow is returned when the RX FIFO overflowed. Flush before reuse.
	ErrFIFOOverflow = errors.New("cc1101: rx fifo overflow")

	// ErrLengthMismatch is returned when the length prefix disagrees with RXBYTES.
	ErrLengthMismatch = errors.New("cc1101: packet length mismatch")

	// ErrCRCInvalid is returned when the chip flagged the packet CRC as bad.
	ErrCRCInvalid = errors.New("cc1101: crc invalid")

	// ErrPacketTooLong is returned by SendPacket for payloads over MaxPacketLength.
	ErrPacketTooLong = errors.New("cc1101: packet too long")
)

package cc1101

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Reset timing from the datasheet's manual power-up sequence.
const (
	resetDeselectHold = 5 * time.Microsecond
	resetSelectHold   = 10 * time.Microsecond
	resetSettle       = 41 * time.Microsecond
)

// Bus is a full-duplex SPI connection. periph.io's spi.Conn satisfies it.
type Bus interface {
	Tx(w, r []byte) error
}

// ChipSelect drives the CSn line, active low. periph.io's gpio.PinOut
// satisfies it.
type ChipSelect interface {
	Out(l gpio.Level) error
}

// Packet is one frame read from the RX FIFO.
type Packet struct {
	// Data is the payload without the length prefix and status bytes.
	Data []byte

	// RSSI is the received signal strength in dBm.
	RSSI int

	// LQI is the link quality indicator (lower is better).
	LQI uint8

	// Timestamp is the capture time.
	Timestamp time.Time
}

// Driver controls a CC1101 over SPI with a manually driven chip select.
//
// The driver is not safe for concurrent use. Callers serialise access to it,
// in this gateway through the radio supervisor's claim.
type Driver struct {
	bus Bus
	cs  ChipSelect

	sleep func(time.Duration)
	now   func() time.Time
}

// New returns a driver for the chip on bus with chip select cs.
func New(bus Bus, cs ChipSelect) *Driver {
	return &Driver{
		bus:   bus,
		cs:    cs,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// Reset runs the manual power-up sequence followed by an SRES strobe.
func (d *Driver) Reset() error {
	steps := []struct {
		level gpio.Level
		hold  time.Duration
	}{
		{gpio.High, resetDeselectHold},
		{gpio.Low, resetSelectHold},
		{gpio.High, resetSettle},
	}
	for _, s := range steps {
		if err := d.cs.Out(s.level); err != nil {
			return fmt.Errorf("%w: %w", ErrHardwareFault, err)
		}
		d.sleep(s.hold)
	}

	if err := d.transfer([]byte{SRES}, nil); err != nil {
		return fmt.Errorf("%w: reset strobe: %w", ErrHardwareFault, err)
	}
	return nil
}

// Init resets, identifies and configures the chip, then enters RX.
// An ErrUnsupportedDevice here means the radio subsystem must not start.
func (d *Driver) Init(table []byte) error {
	if err := d.Reset(); err != nil {
		return err
	}
	if err := d.Identify(); err != nil {
		return err
	}
	if err := d.Configure(table); err != nil {
		return err
	}
	if err := d.SetPower(DefaultPower); err != nil {
		return err
	}
	return d.SetReceiveMode()
}

// Configure burst-writes a register table starting at IOCFG2.
func (d *Driver) Configure(table []byte) error {
	if len(table) == 0 || len(table) > NumConfigRegisters {
		return fmt.Errorf("%w: table has %d registers", ErrConfigurationFailed, len(table))
	}
	if err := d.writeBurst(IOCFG2, table); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigurationFailed, err)
	}
	return nil
}

// SetPower writes the first PATABLE entry.
func (d *Driver) SetPower(pa byte) error {
	if err := d.writeBurst(PATABLE, []byte{pa}); err != nil {
		return fmt.Errorf("%w: patable: %w", ErrConfigurationFailed, err)
	}
	return nil
}

// Identify checks the PARTNUM and VERSION status registers.
func (d *Driver) Identify() error {
	partnum, err := d.readStatus(PARTNUM)
	if err != nil {
		return err
	}
	version, err := d.readStatus(VERSION)
	if err != nil {
		return err
	}
	if partnum != ExpectedPartNum || version != ExpectedVersion {
		return fmt.Errorf("%w: partnum 0x%02X version 0x%02X", ErrUnsupportedDevice, partnum, version)
	}
	return nil
}

// SetReceiveMode strobes SRX.
func (d *Driver) SetReceiveMode() error {
	return d.strobe(SRX)
}

// SetTransmitMode strobes STX.
func (d *Driver) SetTransmitMode() error {
	return d.strobe(STX)
}

// Idle strobes SIDLE.
func (d *Driver) Idle() error {
	return d.strobe(SIDLE)
}

// FlushReceiveFIFO idles the radio and flushes the RX FIFO.
func (d *Driver) FlushReceiveFIFO() error {
	if err := d.strobe(SIDLE); err != nil {
		return err
	}
	return d.strobe(SFRX)
}

// FlushTransmitFIFO idles the radio and flushes the TX FIFO.
func (d *Driver) FlushTransmitFIFO() error {
	if err := d.strobe(SIDLE); err != nil {
		return err
	}
	return d.strobe(SFTX)
}

// State reads MARCSTATE.
func (d *Driver) State() (State, error) {
	v, err := d.readStatus(MARCSTATE)
	if err != nil {
		return StateUnknown, err
	}
	return State(v & marcStateMask), nil
}

// RxBytes reports the RX FIFO fill level and the overflow flag.
func (d *Driver) RxBytes() (count int, overflow bool, err error) {
	v, err := d.readStatus(RXBYTES)
	if err != nil {
		return 0, false, err
	}
	return int(v & fifoCountMask), v&fifoOverflowFlag != 0, nil
}

// ReadPacket reads one frame from the RX FIFO.
//
// The FIFO must hold exactly one frame: a length byte, the payload and the
// two appended status bytes. Anything else is reported as ErrLengthMismatch
// and the caller flushes the FIFO.
func (d *Driver) ReadPacket() (Packet, error) {
	count, overflow, err := d.RxBytes()
	if err != nil {
		return Packet{}, err
	}
	if overflow {
		return Packet{}, ErrFIFOOverflow
	}
	if count == 0 {
		return Packet{}, ErrNoData
	}
	if count < statusBytes {
		return Packet{}, fmt.Errorf("%w: %d bytes in fifo", ErrLengthMismatch, count)
	}

	buf, err := d.readBurst(FIFO, count)
	if err != nil {
		return Packet{}, err
	}

	length := int(buf[0])
	if length > MaxPacketLength || length != count-statusBytes {
		return Packet{}, fmt.Errorf("%w: length byte %d, fifo %d", ErrLengthMismatch, length, count)
	}

	rssi, status := buf[length+1], buf[length+2]
	if status&crcOKFlag == 0 {
		return Packet{}, ErrCRCInvalid
	}

	data := make([]byte, length)
	copy(data, buf[1:length+1])

	return Packet{
		Data:      data,
		RSSI:      rssiDBm(rssi),
		LQI:       status & lqiMask,
		Timestamp: d.now(),
	}, nil
}

// SendPacket writes the length-prefixed payload to the TX FIFO and strobes
// STX. Completion is not verified; the caller paces repeats itself.
func (d *Driver) SendPacket(data []byte) error {
	if len(data) > MaxPacketLength {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLong, len(data))
	}

	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, byte(len(data)))
	frame = append(frame, data...)

	if err := d.writeBurst(FIFO, frame); err != nil {
		return err
	}
	return d.strobe(STX)
}

// rssiDBm converts the raw two's complement RSSI byte to dBm.
func rssiDBm(raw byte) int {
	return int(int8(raw))/2 - rssiOffset
}

func (d *Driver) strobe(cmd byte) error {
	if err := d.transfer([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("%w: strobe 0x%02X: %w", ErrBusError, cmd, err)
	}
	return nil
}

func (d *Driver) readStatus(addr byte) (byte, error) {
	w := []byte{addr | ReadBurst, 0}
	r := make([]byte, len(w))
	if err := d.transfer(w, r); err != nil {
		return 0, fmt.Errorf("%w: read status 0x%02X: %w", ErrBusError, addr, err)
	}
	return r[1], nil
}

func (d *Driver) writeBurst(addr byte, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, addr|WriteBurst)
	w = append(w, data...)
	if err := d.transfer(w, nil); err != nil {
		return fmt.Errorf("%w: burst write 0x%02X: %w", ErrBusError, addr, err)
	}
	return nil
}

func (d *Driver) readBurst(addr byte, n int) ([]byte, error) {
	w := make([]byte, n+1)
	w[0] = addr | ReadBurst
	r := make([]byte, n+1)
	if err := d.transfer(w, r); err != nil {
		return nil, fmt.Errorf("%w: burst read 0x%02X: %w", ErrBusError, addr, err)
	}
	return r[1:], nil
}

// transfer runs one SPI transaction framed by chip select.
func (d *Driver) transfer(w, r []byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return err
	}
	err := d.bus.Tx(w, r)
	if csErr := d.cs.Out(gpio.High); err == nil {
		err = csErr
	}
	return err
}

package cc1101

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// HostConfig names the Linux SPI port and GPIO lines the chip is wired to.
type HostConfig struct {
	SPIPort       string // e.g. "/dev/spidev0.0"; empty selects the first port
	SPISpeedHz    int
	ChipSelectPin string // e.g. "GPIO8"
	GDO0Pin       string // e.g. "GPIO25"
}

// Hardware bundles a driver with the GDO0 interrupt line and the open port.
type Hardware struct {
	Driver *Driver
	GDO0   gpio.PinIn

	port spi.PortCloser
}

// OpenHost initialises periph.io's host drivers and opens the SPI port and
// pins. The kernel's chip select is disabled because the reset sequence needs
// direct control of CSn.
func OpenHost(cfg HostConfig) (*Hardware, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: host init: %w", ErrHardwareFault, err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("%w: opening spi port %q: %w", ErrHardwareFault, cfg.SPIPort, err)
	}

	conn, err := port.Connect(physic.Frequency(cfg.SPISpeedHz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
	if err != nil {
		port.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("%w: connecting spi: %w", ErrHardwareFault, err)
	}

	cs := gpioreg.ByName(cfg.ChipSelectPin)
	if cs == nil {
		port.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("%w: unknown chip select pin %q", ErrHardwareFault, cfg.ChipSelectPin)
	}
	if err := cs.Out(gpio.High); err != nil {
		port.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("%w: chip select: %w", ErrHardwareFault, err)
	}

	gdo0 := gpioreg.ByName(cfg.GDO0Pin)
	if gdo0 == nil {
		port.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("%w: unknown GDO0 pin %q", ErrHardwareFault, cfg.GDO0Pin)
	}
	if err := gdo0.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		port.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("%w: GDO0 edge detection: %w", ErrHardwareFault, err)
	}

	return &Hardware{
		Driver: New(conn, cs),
		GDO0:   gdo0,
		port:   port,
	}, nil
}

// Close stops edge detection and releases the SPI port.
func (h *Hardware) Close() error {
	var errs []error
	if h.GDO0 != nil {
		errs = append(errs, h.GDO0.Halt())
	}
	if h.port != nil {
		errs = append(errs, h.port.Close())
	}
	return errors.Join(errs...)
}

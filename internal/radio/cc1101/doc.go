// Package cc1101 drives a TI CC1101 sub-GHz transceiver over SPI.
//
// The driver covers what the Genius gateway needs: the manual reset
// sequence, chip identification, register configuration, command strobes,
// reading one variable-length frame from the RX FIFO with CRC and length
// validation, and writing a frame to the TX FIFO.
//
// Hardware access goes through two small interfaces, Bus and ChipSelect,
// which periph.io's spi.Conn and gpio.PinOut satisfy. OpenHost wires them to
// a Linux SPI port and GPIO lines.
//
//	hw, err := cc1101.OpenHost(cc1101.HostConfig{SPIPort: "/dev/spidev0.0", SPISpeedHz: 5_000_000,
//	    ChipSelectPin: "GPIO8", GDO0Pin: "GPIO25"})
//	if err != nil {
//	    return err
//	}
//	defer hw.Close()
//
//	if err := hw.Driver.Init(cc1101.DefaultConfig[:]); err != nil {
//	    return err
//	}
package cc1101

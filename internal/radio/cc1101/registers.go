package cc1101

// SPI header bits
const (
	ReadSingle = 0x80
	WriteBurst = 0x40
	ReadBurst  = 0xC0
)

// Configuration registers
const (
	IOCFG2   = 0x00 // GDO2 output pin configuration
	IOCFG1   = 0x01 // GDO1 output pin configuration
	IOCFG0   = 0x02 // GDO0 output pin configuration
	FIFOTHR  = 0x03 // RX FIFO and TX FIFO thresholds
	SYNC1    = 0x04 // Sync word, high byte
	SYNC0    = 0x05 // Sync word, low byte
	PKTLEN   = 0x06 // Packet length
	PKTCTRL1 = 0x07 // Packet automation control
	PKTCTRL0 = 0x08 // Packet automation control
	ADDR     = 0x09 // Device address
	CHANNR   = 0x0A // Channel number
	FSCTRL1  = 0x0B // Frequency synthesizer control
	FSCTRL0  = 0x0C // Frequency synthesizer control
	FREQ2    = 0x0D // Frequency control word, high byte
	FREQ1    = 0x0E // Frequency control word, middle byte
	FREQ0    = 0x0F // Frequency control word, low byte
	MDMCFG4  = 0x10 // Modem configuration
	MDMCFG3  = 0x11 // Modem configuration
	MDMCFG2  = 0x12 // Modem configuration
	MDMCFG1  = 0x13 // Modem configuration
	MDMCFG0  = 0x14 // Modem configuration
	DEVIATN  = 0x15 // Modem deviation setting
	MCSM2    = 0x16 // Main Radio Control State Machine configuration
	MCSM1    = 0x17 // Main Radio Control State Machine configuration
	MCSM0    = 0x18 // Main Radio Control State Machine configuration
	FOCCFG   = 0x19 // Frequency Offset Compensation configuration
	BSCFG    = 0x1A // Bit Synchronization configuration
	AGCCTRL2 = 0x1B // AGC control
	AGCCTRL1 = 0x1C // AGC control
	AGCCTRL0 = 0x1D // AGC control
	WOREVT1  = 0x1E // High byte Event 0 timeout
	WOREVT0  = 0x1F // Low byte Event 0 timeout
	WORCTRL  = 0x20 // Wake On Radio control
	FREND1   = 0x21 // Front end RX configuration
	FREND0   = 0x22 // Front end TX configuration
	FSCAL3   = 0x23 // Frequency synthesizer calibration
	FSCAL2   = 0x24 // Frequency synthesizer calibration
	FSCAL1   = 0x25 // Frequency synthesizer calibration
	FSCAL0   = 0x26 // Frequency synthesizer calibration
	RCCTRL1  = 0x27 // RC oscillator configuration
	RCCTRL0  = 0x28 // RC oscillator configuration
	FSTEST   = 0x29 // Frequency synthesizer calibration control
	PTEST    = 0x2A // Production test
	AGCTEST  = 0x2B // AGC test
	TEST2    = 0x2C // Various test settings
	TEST1    = 0x2D // Various test settings
	TEST0    = 0x2E // Various test settings

	NumConfigRegisters = TEST0 + 1
)

// Command strobes
const (
	SRES    = 0x30 // Reset chip
	SFSTXON = 0x31 // Enable and calibrate frequency synthesizer
	SXOFF   = 0x32 // Turn off crystal oscillator
	SCAL    = 0x33 // Calibrate frequency synthesizer and turn it off
	SRX     = 0x34 // Enable RX
	STX     = 0x35 // Enable TX
	SIDLE   = 0x36 // Exit RX / TX
	SWOR    = 0x38 // Start automatic RX polling sequence
	SPWD    = 0x39 // Enter power down mode when CSn goes high
	SFRX    = 0x3A // Flush the RX FIFO buffer
	SFTX    = 0x3B // Flush the TX FIFO buffer
	SWORRST = 0x3C // Reset real time clock
	SNOP    = 0x3D // No operation
)

// Status registers, read with ReadBurst set
const (
	PARTNUM    = 0x30
	VERSION    = 0x31
	FREQEST    = 0x32
	LQI        = 0x33
	RSSI       = 0x34
	MARCSTATE  = 0x35
	WORTIME1   = 0x36
	WORTIME0   = 0x37
	PKTSTATUS  = 0x38
	VCO_VC_DAC = 0x39 //nolint:revive // datasheet name
	TXBYTES    = 0x3A
	RXBYTES    = 0x3B
)

// Multi-byte access
const (
	PATABLE = 0x3E
	FIFO    = 0x3F
)

// Chip signature checked by Identify.
const (
	ExpectedPartNum = 0x00
	ExpectedVersion = 0x14
)

// Packet framing
const (
	// MaxPacketLength is the longest payload accepted from the RX FIFO
	// (PKTLEN). The FIFO holds 64 bytes: length, payload, two status bytes.
	MaxPacketLength = 61

	// statusBytes is the length prefix plus the appended RSSI and LQI/CRC bytes.
	statusBytes = 3

	fifoCountMask    = 0x7F
	fifoOverflowFlag = 0x80
	crcOKFlag        = 0x80
	lqiMask          = 0x7F
	marcStateMask    = 0x1F

	rssiOffset = 74 // dB, datasheet table for 868 MHz
)

// DefaultConfig is the register table written by Configure at startup:
// 868.3 MHz, 2-FSK, variable packet length with CRC and appended status, GDO0
// asserted on sync word and de-asserted at end of packet.
var DefaultConfig = [NumConfigRegisters]byte{
	IOCFG2:   0x29,
	IOCFG1:   0x2E,
	IOCFG0:   0x06,
	FIFOTHR:  0x47,
	SYNC1:    0xD3,
	SYNC0:    0x91,
	PKTLEN:   MaxPacketLength,
	PKTCTRL1: 0x04,
	PKTCTRL0: 0x05,
	ADDR:     0x00,
	CHANNR:   0x00,
	FSCTRL1:  0x06,
	FSCTRL0:  0x00,
	FREQ2:    0x21,
	FREQ1:    0x65,
	FREQ0:    0x6A,
	MDMCFG4:  0xCA,
	MDMCFG3:  0x83,
	MDMCFG2:  0x13,
	MDMCFG1:  0x22,
	MDMCFG0:  0xF8,
	DEVIATN:  0x35,
	MCSM2:    0x07,
	MCSM1:    0x30,
	MCSM0:    0x18,
	FOCCFG:   0x16,
	BSCFG:    0x6C,
	AGCCTRL2: 0x43,
	AGCCTRL1: 0x40,
	AGCCTRL0: 0x91,
	WOREVT1:  0x87,
	WOREVT0:  0x6B,
	WORCTRL:  0xFB,
	FREND1:   0x56,
	FREND0:   0x10,
	FSCAL3:   0xE9,
	FSCAL2:   0x2A,
	FSCAL1:   0x00,
	FSCAL0:   0x1F,
	RCCTRL1:  0x41,
	RCCTRL0:  0x00,
	FSTEST:   0x59,
	PTEST:    0x7F,
	AGCTEST:  0x3F,
	TEST2:    0x81,
	TEST1:    0x35,
	TEST0:    0x09,
}

// DefaultPower is the PATABLE entry for roughly +10 dBm at 868 MHz.
const DefaultPower = 0xC0

// State is the main radio control state machine state (MARCSTATE).
type State uint8

// MARCSTATE values
const (
	StateSleep           State = 0x00
	StateIdle            State = 0x01
	StateXOff            State = 0x02
	StateVCOOn           State = 0x03
	StateRegOn           State = 0x04
	StateManCal          State = 0x05
	StateVCOOnFS         State = 0x06
	StateRegOnFS         State = 0x07
	StateStartCal        State = 0x08
	StateBWBoost         State = 0x09
	StateFSLock          State = 0x0A
	StateIFADCOn         State = 0x0B
	StateEndCal          State = 0x0C
	StateRX              State = 0x0D
	StateRXEnd           State = 0x0E
	StateRXRst           State = 0x0F
	StateTXRXSwitch      State = 0x10
	StateRXFIFOOverflow  State = 0x11
	StateFSTXOn          State = 0x12
	StateTX              State = 0x13
	StateTXEnd           State = 0x14
	StateRXTXSwitch      State = 0x15
	StateTXFIFOUnderflow State = 0x16
	StateUnknown         State = 0xFF
)

var stateNames = map[State]string{
	StateSleep:           "sleep",
	StateIdle:            "idle",
	StateXOff:            "xoff",
	StateVCOOn:           "vcoon_mc",
	StateRegOn:           "regon_mc",
	StateManCal:          "mancal",
	StateVCOOnFS:         "vcoon",
	StateRegOnFS:         "regon",
	StateStartCal:        "startcal",
	StateBWBoost:         "bwboost",
	StateFSLock:          "fs_lock",
	StateIFADCOn:         "ifadcon",
	StateEndCal:          "endcal",
	StateRX:              "rx",
	StateRXEnd:           "rx_end",
	StateRXRst:           "rx_rst",
	StateTXRXSwitch:      "txrx_switch",
	StateRXFIFOOverflow:  "rxfifo_overflow",
	StateFSTXOn:          "fstxon",
	StateTX:              "tx",
	StateTXEnd:           "tx_end",
	StateRXTXSwitch:      "rxtx_switch",
	StateTXFIFOUnderflow: "txfifo_underflow",
	StateUnknown:         "unknown",
}

// String returns the datasheet name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "invalid"
}

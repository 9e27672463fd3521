package bridge

import "strings"

// Bank selects which register set a logical address belongs to.
type Bank int

// Register banks.
const (
	// BankGeneral is always accessible.
	BankGeneral Bank = iota
	// BankSpecial is accessible when LCR bit 7 (divisor latch) is set.
	BankSpecial
	// BankEnhanced is accessible when LCR == 0xBF.
	BankEnhanced
)

// String implements fmt.Stringer.
func (b Bank) String() string {
	switch b {
	case BankGeneral:
		return "general"
	case BankSpecial:
		return "special"
	case BankEnhanced:
		return "enhanced"
	}
	return "unknown"
}

// Register is a logical register of the bridge chip.
type Register struct {
	Name string
	Addr byte
	Bank Bank
}

// regShift is the position of the register address inside
// the sub-address byte; bits 2:1 select the channel (always 0).
const regShift = 3

// Physical converts the logical address to the sub-address sent on the bus.
func (r Register) Physical() byte {
	return (r.Addr & 0x0f) << regShift
}

// String implements fmt.Stringer.
func (r Register) String() string {
	return r.Name
}

// General registers.
var (
	RegRHR       = Register{Name: "RHR", Addr: 0x00}       // Receive Holding (R)
	RegTHR       = Register{Name: "THR", Addr: 0x00}       // Transmit Holding (W)
	RegIER       = Register{Name: "IER", Addr: 0x01}       // Interrupt Enable (R/W)
	RegIIR       = Register{Name: "IIR", Addr: 0x02}       // Interrupt Identification (R)
	RegFCR       = Register{Name: "FCR", Addr: 0x02}       // FIFO Control (W)
	RegLCR       = Register{Name: "LCR", Addr: 0x03}       // Line Control (R/W)
	RegMCR       = Register{Name: "MCR", Addr: 0x04}       // Modem Control (R/W)
	RegLSR       = Register{Name: "LSR", Addr: 0x05}       // Line Status (R)
	RegMSR       = Register{Name: "MSR", Addr: 0x06}       // Modem Status (R)
	RegSPR       = Register{Name: "SPR", Addr: 0x07}       // Scratchpad (R/W)
	RegTCR       = Register{Name: "TCR", Addr: 0x06}       // Transmission Control (R/W)
	RegTLR       = Register{Name: "TLR", Addr: 0x07}       // Trigger Level (R/W)
	RegTXLVL     = Register{Name: "TXLVL", Addr: 0x08}     // TX FIFO Level (R)
	RegRXLVL     = Register{Name: "RXLVL", Addr: 0x09}     // RX FIFO Level (R)
	RegIODIR     = Register{Name: "IODIR", Addr: 0x0A}     // I/O Pin Direction (R/W)
	RegIOSTATE   = Register{Name: "IOSTATE", Addr: 0x0B}   // I/O Pin States (R)
	RegIOINTENA  = Register{Name: "IOINTENA", Addr: 0x0C}  // I/O Interrupt Enable (R/W)
	RegIOCONTROL = Register{Name: "IOCONTROL", Addr: 0x0E} // I/O Pin Control (R/W)
	RegEFCR      = Register{Name: "EFCR", Addr: 0x0F}      // Extra Features (R/W)
)

// Special registers.
var (
	RegDLL = Register{Name: "DLL", Addr: 0x00, Bank: BankSpecial} // Divisor Latch LSB
	RegDLH = Register{Name: "DLH", Addr: 0x01, Bank: BankSpecial} // Divisor Latch MSB
)

// Enhanced registers.
var (
	RegEFR   = Register{Name: "EFR", Addr: 0x02, Bank: BankEnhanced}
	RegXON1  = Register{Name: "XON1", Addr: 0x04, Bank: BankEnhanced}
	RegXON2  = Register{Name: "XON2", Addr: 0x05, Bank: BankEnhanced}
	RegXOFF1 = Register{Name: "XOFF1", Addr: 0x06, Bank: BankEnhanced}
	RegXOFF2 = Register{Name: "XOFF2", Addr: 0x07, Bank: BankEnhanced}
)

// Registers lists all known registers.
var Registers = []Register{
	RegRHR, RegTHR, RegIER, RegIIR, RegFCR, RegLCR, RegMCR, RegLSR,
	RegMSR, RegSPR, RegTCR, RegTLR, RegTXLVL, RegRXLVL, RegIODIR,
	RegIOSTATE, RegIOINTENA, RegIOCONTROL, RegEFCR,
	RegDLL, RegDLH,
	RegEFR, RegXON1, RegXON2, RegXOFF1, RegXOFF2,
}

// RegisterByName looks up a register by name, case insensitive.
func RegisterByName(name string) (Register, bool) {
	for _, r := range Registers {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Register{}, false
}

// IER bits.
const (
	IERRxReady byte = 0x01
	IERTxReady byte = 0x02
	IERRxError byte = 0x04
	IERModem   byte = 0x08
	IERSleep   byte = 0x10
	IERXoff    byte = 0x20
	IERRTS     byte = 0x40
	IERCTS     byte = 0x80
)

// IIR values, after masking with IIRMask.
const (
	IIRMask      byte = 0x3f
	IIRNone      byte = 0x01
	IIRRxError   byte = 0x06
	IIRRxTimeout byte = 0x0c
	IIRRxReady   byte = 0x04
	IIRTxReady   byte = 0x02
	IIRModem     byte = 0x00
	IIRGPIO      byte = 0x30
	IIRXoff      byte = 0x10
	IIRCTSRTS    byte = 0x20

	// IIRFIFOsEnabled is reported in bits 7:6 while FIFOs are enabled.
	IIRFIFOsEnabled byte = 0xc0
)

// FCR bits.
const (
	FCRFIFOEnable  byte = 0x01
	FCRRxFIFOReset byte = 0x02
	FCRTxFIFOReset byte = 0x04
)

// LCR bits.
const (
	LCRStopBits       byte = 0x04
	LCRBreak          byte = 0x40
	LCRDivisorLatch   byte = 0x80
	LCREnhancedAccess byte = 0xbf
)

// LSR bits.
const (
	LSRDataReady     byte = 0x01
	LSROverrunError  byte = 0x02
	LSRParityError   byte = 0x04
	LSRFramingError  byte = 0x08
	LSRBreak         byte = 0x10
	LSRTHREmpty      byte = 0x20
	LSRTHRTSREmpty   byte = 0x40
	LSRFIFODataError byte = 0x80
)

// MCR, EFR and IOCONTROL bits.
const (
	MCRClockDivisor4   byte = 0x80
	EFREnhancedEnable  byte = 0x10
	IOControlSoftReset byte = 0x08
)

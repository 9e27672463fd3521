package capture

import (
	"fmt"

	"github.com/robotalks/ccdr.go/pkg/bridge"
)

// WordSize is the width of one sample word in bytes.
const WordSize = 4

// Cause identifies why a record was captured. Values below 0x40 are
// interrupt identifications read from the chip.
type Cause byte

// Causes.
const (
	CauseNone      = Cause(bridge.IIRNone)
	CauseRxError   = Cause(bridge.IIRRxError)
	CauseRxTimeout = Cause(bridge.IIRRxTimeout)
	CauseRxReady   = Cause(bridge.IIRRxReady)
	CauseTxReady   = Cause(bridge.IIRTxReady)
	CauseModem     = Cause(bridge.IIRModem)
	CauseGPIO      = Cause(bridge.IIRGPIO)
	CauseXoff      = Cause(bridge.IIRXoff)
	CauseCTSRTS    = Cause(bridge.IIRCTSRTS)

	// CauseWatchdog is synthesized when no interrupt arrived in time.
	CauseWatchdog Cause = 0xff
)

var causeNames = map[Cause]string{
	CauseNone:      "No Interrupt",
	CauseRxError:   "RX Error",
	CauseRxTimeout: "RX Timeout",
	CauseRxReady:   "RX Ready",
	CauseTxReady:   "TX Ready",
	CauseModem:     "Modem State Change",
	CauseGPIO:      "IO Pins State Change",
	CauseXoff:      "Xoff Character Received",
	CauseCTSRTS:    "CTS or RTS State Change",
	CauseWatchdog:  "Watchdog Timeout",
}

// String implements fmt.Stringer.
func (c Cause) String() string {
	if name, ok := causeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Unknown 0x%02X", byte(c))
}

// IsData reports whether records of this cause normally carry samples.
func (c Cause) IsData() bool {
	return c == CauseRxReady || c == CauseRxTimeout || c == CauseNone
}

// Record is one drain of the RX FIFO, or an anomaly when Words is empty.
type Record struct {
	// Tick is the hardware microsecond tick, wrapping at 2^32.
	Tick  uint32
	Cause Cause
	// Status is the line status register, valid if HasStatus.
	Status    byte
	HasStatus bool
	// DeclaredCount is the RX FIFO level in bytes observed before draining.
	DeclaredCount int
	Words         []uint32
}

// IsAnomaly reports whether the record marks a resynchronization gap.
func (r *Record) IsAnomaly() bool {
	return len(r.Words) == 0
}

// Overflow reports whether the line status flags an RX overrun.
func (r *Record) Overflow() bool {
	return r.HasStatus && r.Status&bridge.LSROverrunError != 0
}

// String implements fmt.Stringer.
func (r *Record) String() string {
	status := "--"
	if r.HasStatus {
		status = fmt.Sprintf("%02X", r.Status)
	}
	return fmt.Sprintf("[%08X] %s (0x%02X) LSR=%s bytes=%d words=%d",
		r.Tick, r.Cause, byte(r.Cause), status, r.DeclaredCount, len(r.Words))
}

// AssembleWords assembles big-endian 32-bit words from p. Trailing bytes that
// do not fill a word are ignored.
func AssembleWords(p []byte) []uint32 {
	words := make([]uint32, 0, len(p)/WordSize)
	for i := 0; i+WordSize <= len(p); i += WordSize {
		words = append(words, uint32(p[i])<<24|uint32(p[i+1])<<16|uint32(p[i+2])<<8|uint32(p[i+3]))
	}
	return words
}

// TickDiff returns the ticks elapsed from start to tick, across a wrap.
func TickDiff(start, tick uint32) uint32 {
	return tick - start
}

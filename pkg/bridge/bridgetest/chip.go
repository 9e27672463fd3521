// Package bridgetest provides a simulated bridge chip behind the
// bridge.Bus contract for tests.
package bridgetest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/robotalks/ccdr.go/pkg/bridge"
)

// FIFODepth is the depth of the simulated RX and TX FIFOs.
const FIFODepth = 64

// ErrNACK is returned for injected transport failures.
var ErrNACK = errors.New("nack")

// Chip simulates the register file of the bridge.
type Chip struct {
	// NackReset makes the software reset write fail like the real part does.
	NackReset bool
	// Stuck forces reads of named registers to return a fixed value.
	Stuck map[string]byte
	// Fail makes accesses to named registers fail with ErrNACK.
	Fail map[string]bool
	// FailReads makes the next FailReads register reads fail with ErrNACK.
	FailReads int
	// ShortBlocks makes block reads return one byte less than requested.
	ShortBlocks bool

	lock       sync.Mutex
	general    [16]byte
	special    [2]byte
	enhanced   [8]byte
	rx         []byte
	tx         []byte
	overrun    bool
	rxTimeout  bool
	fcrWrites  []byte
	fifoResets int
	blockReads []int
	closed     bool
}

// New creates a simulated chip in its power-on state.
func New() *Chip {
	c := &Chip{}
	c.powerOn()
	return c
}

func (c *Chip) powerOn() {
	c.general = [16]byte{}
	c.special = [2]byte{}
	c.enhanced = [8]byte{}
	c.general[bridge.RegLCR.Addr] = 0x1d
	c.rx, c.overrun, c.rxTimeout = nil, false, false
}

func (c *Chip) bank(addr byte) bridge.Bank {
	lcr := c.general[bridge.RegLCR.Addr]
	if lcr == bridge.LCREnhancedAccess {
		switch addr {
		case 2, 4, 5, 6, 7:
			return bridge.BankEnhanced
		}
	}
	if lcr&bridge.LCRDivisorLatch != 0 && addr < 2 {
		return bridge.BankSpecial
	}
	return bridge.BankGeneral
}

func (c *Chip) name(addr byte, write bool) string {
	bank := c.bank(addr)
	for _, r := range bridge.Registers {
		if r.Addr != addr || r.Bank != bank {
			continue
		}
		switch r.Name {
		case "RHR", "IIR":
			if write {
				continue
			}
		case "THR", "FCR":
			if !write {
				continue
			}
		case "MSR", "SPR":
			// TCR/TLR are not modelled.
		case "TCR", "TLR":
			continue
		}
		return r.Name
	}
	return fmt.Sprintf("0x%02X", addr)
}

func decode(phys byte) (byte, error) {
	if phys&0x07 != 0 {
		return 0, fmt.Errorf("invalid sub-address 0x%02X", phys)
	}
	return phys >> 3, nil
}

// ReadReg implements bridge.Bus.
func (c *Chip) ReadReg(phys byte) (byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	addr, err := decode(phys)
	if err != nil {
		return 0, err
	}
	name := c.name(addr, false)
	if c.Fail[name] {
		return 0, ErrNACK
	}
	if c.FailReads > 0 {
		c.FailReads--
		return 0, ErrNACK
	}
	if v, ok := c.Stuck[name]; ok {
		return v, nil
	}
	return c.read(addr), nil
}

func (c *Chip) read(addr byte) byte {
	switch c.bank(addr) {
	case bridge.BankSpecial:
		return c.special[addr]
	case bridge.BankEnhanced:
		return c.enhanced[addr]
	}
	switch addr {
	case bridge.RegRHR.Addr:
		if len(c.rx) == 0 {
			return 0
		}
		b := c.rx[0]
		c.rx = c.rx[1:]
		return b
	case bridge.RegIIR.Addr:
		return c.iir()
	case bridge.RegLSR.Addr:
		lsr := bridge.LSRTHREmpty | bridge.LSRTHRTSREmpty
		if len(c.rx) > 0 {
			lsr |= bridge.LSRDataReady
		}
		if c.overrun {
			lsr |= bridge.LSROverrunError
		}
		return lsr
	case bridge.RegRXLVL.Addr:
		return byte(len(c.rx))
	case bridge.RegTXLVL.Addr:
		return FIFODepth
	}
	return c.general[addr]
}

func (c *Chip) fifoEnabled() bool {
	return c.general[bridge.RegFCR.Addr]&bridge.FCRFIFOEnable != 0
}

func (c *Chip) trigger() int {
	return bridge.TriggerLevel(c.general[bridge.RegFCR.Addr] & 0xc0).Bytes()
}

func (c *Chip) iir() byte {
	var fifo byte
	if c.fifoEnabled() {
		fifo = bridge.IIRFIFOsEnabled
	}
	ier := c.general[bridge.RegIER.Addr]
	switch {
	case c.overrun && ier&bridge.IERRxError != 0:
		return fifo | bridge.IIRRxError
	case c.rxTimeout && len(c.rx) > 0 && ier&bridge.IERRxReady != 0:
		return fifo | bridge.IIRRxTimeout
	case len(c.rx) >= c.trigger() && ier&bridge.IERRxReady != 0:
		return fifo | bridge.IIRRxReady
	}
	return fifo | bridge.IIRNone
}

// WriteReg implements bridge.Bus.
func (c *Chip) WriteReg(phys, val byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	addr, err := decode(phys)
	if err != nil {
		return err
	}
	name := c.name(addr, true)
	if c.Fail[name] {
		return ErrNACK
	}
	switch c.bank(addr) {
	case bridge.BankSpecial:
		c.special[addr] = val
		return nil
	case bridge.BankEnhanced:
		c.enhanced[addr] = val
		return nil
	}
	switch addr {
	case bridge.RegTHR.Addr:
		c.tx = append(c.tx, val)
	case bridge.RegFCR.Addr:
		c.fcrWrites = append(c.fcrWrites, val)
		if val&bridge.FCRRxFIFOReset != 0 {
			c.rx, c.overrun, c.rxTimeout = nil, false, false
			c.fifoResets++
		}
		// reset bits are self-clearing.
		c.general[addr] = val &^ (bridge.FCRRxFIFOReset | bridge.FCRTxFIFOReset)
	case bridge.RegIOCONTROL.Addr:
		if val&bridge.IOControlSoftReset != 0 {
			c.powerOn()
			if c.NackReset {
				return ErrNACK
			}
			return nil
		}
		c.general[addr] = val
	case bridge.RegIIR.Addr, bridge.RegLSR.Addr, bridge.RegTXLVL.Addr, bridge.RegRXLVL.Addr:
		// read-only
	default:
		c.general[addr] = val
	}
	return nil
}

// ReadBlock implements bridge.Bus.
func (c *Chip) ReadBlock(phys byte, n int) ([]byte, error) {
	if n > bridge.MaxBlockSize {
		return nil, bridge.ErrBlockTooLarge
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	addr, err := decode(phys)
	if err != nil {
		return nil, err
	}
	if c.Fail[c.name(addr, false)] {
		return nil, ErrNACK
	}
	c.blockReads = append(c.blockReads, n)
	if c.ShortBlocks {
		n--
	}
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		if addr == bridge.RegRHR.Addr && c.bank(addr) == bridge.BankGeneral && len(c.rx) == 0 {
			break
		}
		out = append(out, c.read(addr))
	}
	return out, nil
}

// WriteBlock implements bridge.Bus.
func (c *Chip) WriteBlock(phys byte, p []byte) error {
	if len(p) > bridge.MaxBlockSize {
		return bridge.ErrBlockTooLarge
	}
	for _, b := range p {
		if err := c.WriteReg(phys, b); err != nil {
			return err
		}
	}
	return nil
}

// Close implements bridge.Bus.
func (c *Chip) Close() error {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	return nil
}

// Receive pushes bytes into the RX FIFO as if they arrived on the line.
// Bytes beyond the FIFO depth are lost and flag an overrun.
func (c *Chip) Receive(p ...byte) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, b := range p {
		if len(c.rx) >= FIFODepth {
			c.overrun = true
			continue
		}
		c.rx = append(c.rx, b)
	}
}

// ReceiveWords pushes 32-bit words big-endian.
func (c *Chip) ReceiveWords(words ...uint32) {
	p := make([]byte, 0, len(words)*4)
	for _, w := range words {
		p = append(p, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}
	c.Receive(p...)
}

// SetRxTimeout flags that the line went idle with data in the FIFO.
func (c *Chip) SetRxTimeout(on bool) {
	c.lock.Lock()
	c.rxTimeout = on
	c.lock.Unlock()
}

// Overrun reports whether the RX FIFO overflowed since the last reset.
func (c *Chip) Overrun() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.overrun
}

// RxLevel returns the number of bytes in the RX FIFO.
func (c *Chip) RxLevel() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.rx)
}

// Sent returns the bytes written to THR.
func (c *Chip) Sent() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]byte(nil), c.tx...)
}

// FCRWrites returns all values written to FCR in order.
func (c *Chip) FCRWrites() []byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]byte(nil), c.fcrWrites...)
}

// FIFOResets counts FCR writes with the RX reset bit.
func (c *Chip) FIFOResets() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.fifoResets
}

// FIFOState returns the FIFO enable flag and the RX trigger level in bytes.
func (c *Chip) FIFOState() (enabled bool, trigger int) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.fifoEnabled(), c.trigger()
}

// BlockReads returns the size of every block transfer issued.
func (c *Chip) BlockReads() []int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]int(nil), c.blockReads...)
}

// Reg returns the raw stored value of a register without side effects.
func (c *Chip) Reg(r bridge.Register) byte {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch r.Bank {
	case bridge.BankSpecial:
		return c.special[r.Addr]
	case bridge.BankEnhanced:
		return c.enhanced[r.Addr]
	}
	return c.general[r.Addr]
}

// Closed reports whether Close was called.
func (c *Chip) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

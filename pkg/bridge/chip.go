package bridge

import (
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
)

// MaxBlockSize is the largest single block transfer the bus supports.
const MaxBlockSize = 32

// Bus is the narrow transport contract of the bridge chip.
// Addresses are physical sub-addresses (see Register.Physical).
type Bus interface {
	io.Closer
	ReadReg(addr byte) (byte, error)
	WriteReg(addr, val byte) error
	// ReadBlock reads n (<= MaxBlockSize) bytes starting at addr.
	ReadBlock(addr byte, n int) ([]byte, error)
	// WriteBlock writes len(p) (<= MaxBlockSize) bytes to addr.
	WriteBlock(addr byte, p []byte) error
}

// Chip is the register interface of one bridge chip.
type Chip struct {
	Bus Bus
	// XtalFreq is the crystal frequency in Hz, used for settling delays.
	XtalFreq uint32
	// Sleep is used for settling delays, defaults to time.Sleep.
	Sleep func(time.Duration)
}

// NewChip creates a Chip on the bus.
func NewChip(bus Bus, xtalFreq uint32) *Chip {
	return &Chip{Bus: bus, XtalFreq: xtalFreq, Sleep: time.Sleep}
}

// SettleDelay is two crystal periods, the time the chip needs
// before a written value is latched.
func (c *Chip) SettleDelay() time.Duration {
	if c.XtalFreq == 0 {
		return 0
	}
	d := time.Duration(2 * int64(time.Second) / int64(c.XtalFreq))
	if d == 0 {
		d = time.Nanosecond
	}
	return d
}

func (c *Chip) settle() {
	c.sleep(c.SettleDelay())
}

func (c *Chip) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
	} else {
		time.Sleep(d)
	}
}

// ReadRegister reads a single register.
func (c *Chip) ReadRegister(reg Register) (byte, error) {
	v, err := c.Bus.ReadReg(reg.Physical())
	if err != nil {
		return 0, &BusError{Reg: reg, Op: OpRead, Err: err}
	}
	if glog.V(2) {
		glog.Infof("RD %s = 0x%02X", reg.Name, v)
	}
	return v, nil
}

// WriteRegister writes a single register and waits for it to latch.
func (c *Chip) WriteRegister(reg Register, val byte) error {
	if err := c.Bus.WriteReg(reg.Physical(), val); err != nil {
		return &BusError{Reg: reg, Op: OpWrite, Err: err}
	}
	glog.V(2).Infof("WR %s = 0x%02X", reg.Name, val)
	c.settle()
	return nil
}

// WriteVerify writes a register and reads it back.
// ok is false when the observed value differs from val; callers
// must treat that as a setup failure.
func (c *Chip) WriteVerify(reg Register, val byte) (ok bool, observed byte, err error) {
	if err = c.WriteRegister(reg, val); err != nil {
		return
	}
	if observed, err = c.ReadRegister(reg); err != nil {
		return
	}
	return observed == val, observed, nil
}

// MustWriteVerify is WriteVerify returning a *ConfigurationFault on mismatch.
func (c *Chip) MustWriteVerify(reg Register, val byte) error {
	ok, observed, err := c.WriteVerify(reg, val)
	if err != nil {
		return err
	}
	if !ok {
		return &ConfigurationFault{Reg: reg, Wrote: val, Read: observed}
	}
	return nil
}

// BlockRead reads exactly count bytes from reg in chunks of at most
// MaxBlockSize, in order.
func (c *Chip) BlockRead(reg Register, count int) ([]byte, error) {
	if count <= 0 {
		return nil, nil
	}
	out := make([]byte, 0, count)
	for len(out) < count {
		n := count - len(out)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		chunk, err := c.Bus.ReadBlock(reg.Physical(), n)
		if err != nil {
			return nil, &BusError{Reg: reg, Op: OpBlockRead, Err: err}
		}
		if len(chunk) < n {
			return nil, &BusError{
				Reg: reg,
				Op:  OpBlockRead,
				Err: fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, len(out)+len(chunk), count),
			}
		}
		out = append(out, chunk[:n]...)
	}
	glog.V(2).Infof("RD %s block %d bytes", reg.Name, count)
	return out, nil
}

// BlockWrite writes p to reg in chunks of at most MaxBlockSize.
func (c *Chip) BlockWrite(reg Register, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		if err := c.Bus.WriteBlock(reg.Physical(), p[:n]); err != nil {
			return &BusError{Reg: reg, Op: OpBlockWrite, Err: err}
		}
		p = p[n:]
	}
	c.settle()
	return nil
}

// Close releases the bus handle.
func (c *Chip) Close() error {
	return c.Bus.Close()
}

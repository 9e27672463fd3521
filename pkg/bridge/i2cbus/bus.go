// Package i2cbus provides bridge.Bus on a Linux I2C adapter.
package i2cbus

import (
	"fmt"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/robotalks/ccdr.go/pkg/bridge"
)

// Bus is a bridge chip at a fixed address on an I2C adapter.
type Bus struct {
	addr uint16
	bus  i2c.BusCloser
	dev  *i2c.Dev
}

// Open opens the named I2C adapter (e.g. "1" or "/dev/i2c-1", empty
// for the first one) and addresses the chip at addr.
func Open(name string, addr uint16) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c %q: %w", name, err)
	}
	glog.V(1).Infof("i2c %s opened, chip 0x%02X", b, addr)
	return &Bus{addr: addr, bus: b, dev: &i2c.Dev{Addr: addr, Bus: b}}, nil
}

// ReadReg implements bridge.Bus.
func (b *Bus) ReadReg(addr byte) (byte, error) {
	var r [1]byte
	if err := b.dev.Tx([]byte{addr}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// WriteReg implements bridge.Bus.
func (b *Bus) WriteReg(addr, val byte) error {
	return b.dev.Tx([]byte{addr, val}, nil)
}

// ReadBlock implements bridge.Bus.
func (b *Bus) ReadBlock(addr byte, n int) ([]byte, error) {
	if n > bridge.MaxBlockSize {
		return nil, bridge.ErrBlockTooLarge
	}
	r := make([]byte, n)
	if err := b.dev.Tx([]byte{addr}, r); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteBlock implements bridge.Bus.
func (b *Bus) WriteBlock(addr byte, p []byte) error {
	if len(p) > bridge.MaxBlockSize {
		return bridge.ErrBlockTooLarge
	}
	w := make([]byte, 0, len(p)+1)
	w = append(w, addr)
	return b.dev.Tx(append(w, p...), nil)
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	return b.bus.Close()
}

// String implements fmt.Stringer.
func (b *Bus) String() string {
	return fmt.Sprintf("%s@0x%02X", b.bus, b.addr)
}

package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRead indicates a block transfer returned fewer bytes than requested.
	ErrShortRead = errors.New("short read")
	// ErrBlockTooLarge indicates a single transfer exceeds MaxBlockSize.
	ErrBlockTooLarge = errors.New("block transfer too large")
	// ErrInvalidDivisor indicates the divisor computed for a baud rate is out of range.
	ErrInvalidDivisor = errors.New("divisor out of range")
	// ErrInvalidFrame indicates an unsupported data/stop/parity combination.
	ErrInvalidFrame = errors.New("invalid frame format")
)

// Op names the kind of bus transaction.
type Op string

// Bus operations.
const (
	OpRead       Op = "read"
	OpWrite      Op = "write"
	OpBlockRead  Op = "block-read"
	OpBlockWrite Op = "block-write"
)

// BusError is a transport failure (NACK, timeout, short transfer)
// on a register access.
type BusError struct {
	Reg Register
	Op  Op
	Err error
}

// Error implements error.
func (e *BusError) Error() string {
	return fmt.Sprintf("bus %s %s: %v", e.Op, e.Reg.Name, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *BusError) Unwrap() error {
	return e.Err
}

// IsBusError reports whether err is or wraps a *BusError.
func IsBusError(err error) bool {
	var be *BusError
	return errors.As(err, &be)
}

// ConfigurationFault indicates the value read back after a write
// differs from the value written.
type ConfigurationFault struct {
	Reg   Register
	Wrote byte
	Read  byte
}

// Error implements error.
func (e *ConfigurationFault) Error() string {
	return fmt.Sprintf("configuration fault %s: wrote 0x%02X, read back 0x%02X", e.Reg.Name, e.Wrote, e.Read)
}

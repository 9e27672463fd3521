// Package gpio defines the pin collaborators of an acquisition session.
package gpio

import "time"

// EdgeHandler is called with the tick at which an edge was seen.
type EdgeHandler func(tick uint32)

// Canceler stops an edge subscription. After Cancel returns
// the handler is no longer called.
type Canceler interface {
	Cancel() error
}

// EdgeSource delivers falling edges of input pins.
type EdgeSource interface {
	OnFallingEdge(pin int, h EdgeHandler) (Canceler, error)
	// CurrentTick is a microsecond counter wrapping at 2^32.
	CurrentTick() uint32
}

// Output drives output pins.
type Output interface {
	Drive(pin int, high bool) error
}

// Ticks is a microsecond tick counter starting at its creation.
type Ticks struct {
	start time.Time
}

// NewTicks creates a Ticks starting now.
func NewTicks() Ticks {
	return Ticks{start: time.Now()}
}

// CurrentTick returns the microseconds elapsed, truncated to 32 bits.
func (t Ticks) CurrentTick() uint32 {
	return uint32(time.Since(t.start) / time.Microsecond)
}

// CancelFunc is the func form of Canceler.
type CancelFunc func() error

// Cancel implements Canceler.
func (f CancelFunc) Cancel() error {
	return f()
}

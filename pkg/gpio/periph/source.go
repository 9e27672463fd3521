// Package periph implements the gpio collaborators with periph.io.
package periph

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/robotalks/ccdr.go/pkg/gpio"
)

// edgePoll bounds a single wait so a canceled watch always returns.
const edgePoll = 100 * time.Millisecond

// Source is the host GPIO controller. Pins are BCM numbers.
type Source struct {
	gpio.Ticks
}

// New initializes host drivers.
func New() (*Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	return &Source{Ticks: gpio.NewTicks()}, nil
}

func pinByNumber(pin int) (pgpio.PinIO, error) {
	p := gpioreg.ByName("GPIO" + strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("unknown pin GPIO%d", pin)
	}
	return p, nil
}

type watch struct {
	pin     pgpio.PinIO
	once    sync.Once
	done    chan struct{}
	stopped chan struct{}
}

func (w *watch) run(ticks gpio.Ticks, h gpio.EdgeHandler) {
	defer close(w.stopped)
	for {
		select {
		case <-w.done:
			return
		default:
		}
		if w.pin.WaitForEdge(edgePoll) {
			h(ticks.CurrentTick())
		}
	}
}

// Cancel implements gpio.Canceler.
func (w *watch) Cancel() (err error) {
	w.once.Do(func() {
		close(w.done)
		w.pin.Halt()
		<-w.stopped
		err = w.pin.In(pgpio.PullUp, pgpio.NoEdge)
	})
	return
}

// OnFallingEdge implements gpio.EdgeSource. The pin is an input with
// pull-up, as the interrupt output of the bridge is open drain.
func (s *Source) OnFallingEdge(pin int, h gpio.EdgeHandler) (gpio.Canceler, error) {
	p, err := pinByNumber(pin)
	if err != nil {
		return nil, err
	}
	if err := p.In(pgpio.PullUp, pgpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	w := &watch{pin: p, done: make(chan struct{}), stopped: make(chan struct{})}
	go w.run(s.Ticks, h)
	glog.V(1).Infof("watching falling edges on %s", p)
	return w, nil
}

// Drive implements gpio.Output.
func (s *Source) Drive(pin int, high bool) error {
	p, err := pinByNumber(pin)
	if err != nil {
		return err
	}
	return p.Out(pgpio.Level(high))
}

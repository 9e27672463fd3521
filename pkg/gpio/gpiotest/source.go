// Package gpiotest provides a manually driven gpio.EdgeSource.
package gpiotest

import (
	"sync"

	"github.com/robotalks/ccdr.go/pkg/gpio"
)

// Source delivers edges when told to.
type Source struct {
	lock     sync.Mutex
	tick     uint32
	handlers map[int]gpio.EdgeHandler
	levels   map[int]bool
	canceled int
}

// New creates a Source.
func New() *Source {
	return &Source{handlers: make(map[int]gpio.EdgeHandler), levels: make(map[int]bool)}
}

// OnFallingEdge implements gpio.EdgeSource.
func (s *Source) OnFallingEdge(pin int, h gpio.EdgeHandler) (gpio.Canceler, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.handlers[pin] = h
	return gpio.CancelFunc(func() error {
		s.lock.Lock()
		defer s.lock.Unlock()
		if _, ok := s.handlers[pin]; ok {
			delete(s.handlers, pin)
			s.canceled++
		}
		return nil
	}), nil
}

// CurrentTick implements gpio.EdgeSource.
func (s *Source) CurrentTick() uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.tick
}

// SetTick sets the current tick.
func (s *Source) SetTick(tick uint32) {
	s.lock.Lock()
	s.tick = tick
	s.lock.Unlock()
}

// Advance moves the current tick forward, wrapping at 2^32.
func (s *Source) Advance(d uint32) uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tick += d
	return s.tick
}

// Fire delivers a falling edge on pin at the current tick. It reports
// whether a handler was subscribed.
func (s *Source) Fire(pin int) bool {
	s.lock.Lock()
	h, tick := s.handlers[pin], s.tick
	s.lock.Unlock()
	if h == nil {
		return false
	}
	h(tick)
	return true
}

// Subscribed reports whether pin has a handler.
func (s *Source) Subscribed(pin int) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.handlers[pin] != nil
}

// Canceled counts canceled subscriptions.
func (s *Source) Canceled() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.canceled
}

// Drive implements gpio.Output.
func (s *Source) Drive(pin int, high bool) error {
	s.lock.Lock()
	s.levels[pin] = high
	s.lock.Unlock()
	return nil
}

// Level returns the last level driven on pin.
func (s *Source) Level(pin int) (high, driven bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	high, driven = s.levels[pin]
	return
}

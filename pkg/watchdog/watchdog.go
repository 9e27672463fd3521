// Package watchdog provides a re-arming timeout timer.
package watchdog

import (
	"sync"
	"time"
)

// Timer calls a handler when it is not re-armed within the timeout.
// After firing it re-arms itself with the same timeout, so a stalled
// link keeps firing until Disarm.
type Timer struct {
	lock    sync.Mutex
	timer   *time.Timer
	gen     uint64
	timeout time.Duration
	onFire  func()
}

// New creates a disarmed Timer.
func New() *Timer {
	return &Timer{}
}

// Arm (re)starts the timer. A non-positive timeout disarms it.
func (w *Timer) Arm(timeout time.Duration, onFire func()) {
	w.lock.Lock()
	defer w.lock.Unlock()
	w.stopLocked()
	if timeout <= 0 || onFire == nil {
		return
	}
	w.timeout, w.onFire = timeout, onFire
	w.startLocked()
}

// Disarm stops the timer. A handler already running is not waited for.
func (w *Timer) Disarm() {
	w.lock.Lock()
	w.stopLocked()
	w.lock.Unlock()
}

// Armed reports whether the timer is running.
func (w *Timer) Armed() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.timer != nil
}

func (w *Timer) stopLocked() {
	w.gen++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Timer) startLocked() {
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() { w.fire(gen) })
}

func (w *Timer) fire(gen uint64) {
	w.lock.Lock()
	if gen != w.gen {
		w.lock.Unlock()
		return
	}
	fn := w.onFire
	w.startLocked()
	w.lock.Unlock()
	fn()
}

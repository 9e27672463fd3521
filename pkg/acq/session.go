package acq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/capture"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
	"github.com/robotalks/ccdr.go/pkg/gpio"
)

// Markers written to THR to start and stop the remote sender.
const (
	StartMarker byte = 0x80
	StopMarker  byte = 0x00
)

// Defaults.
const (
	DefaultWatchdogTimeout = time.Second
	DefaultMaxBusErrors    = 8
	DefaultEventQueue      = 64
)

// Watchdog is a re-arming stall detector.
type Watchdog interface {
	// Arm (re)starts the timeout.
	Arm(timeout time.Duration, onFire func())
	Disarm()
}

// RecordSink receives captured records in order.
type RecordSink interface {
	Emit(*capture.Record)
}

// SinkFunc is the func form of RecordSink.
type SinkFunc func(*capture.Record)

// Emit implements RecordSink.
func (f SinkFunc) Emit(rec *capture.Record) {
	f(rec)
}

// Config tunes a Session.
type Config struct {
	// Name identifies the chip in logs and messages.
	Name            string
	IRQPin          int
	WatchdogTimeout time.Duration
	RxTrigger       bridge.TriggerLevel
	// MaxBusErrors is the number of consecutive bus errors ending the session.
	MaxBusErrors int
	// EventQueue is the capacity of the event queue.
	EventQueue int
}

// Stats are counters of a Session.
type Stats struct {
	Records   uint64
	Anomalies uint64
	Resyncs   uint64
	Watchdogs uint64
	Spurious  uint64
	BusErrors uint64
	Dropped   uint64
}

// Session acquires records from one bridge chip.
type Session struct {
	Config
	Chip     *bridge.Chip
	Edges    gpio.EdgeSource
	Watchdog Watchdog
	Sink     RecordSink

	events    chan event
	dropped   uint64
	lock      sync.Mutex
	state     State
	running   bool
	startTick uint32
	busErrors int
	irq       gpio.Canceler
	stats     Stats
}

// NewSession creates a Session with default config.
func NewSession(chip *bridge.Chip, edges gpio.EdgeSource, wd Watchdog, sink RecordSink) *Session {
	return &Session{
		Config: Config{
			WatchdogTimeout: DefaultWatchdogTimeout,
			RxTrigger:       bridge.RxTrigger56,
			MaxBusErrors:    DefaultMaxBusErrors,
			EventQueue:      DefaultEventQueue,
		},
		Chip:     chip,
		Edges:    edges,
		Watchdog: wd,
		Sink:     sink,
	}
}

// Name implements framework.Named.
func (s *Session) Name() string {
	return "acq:" + s.Config.Name
}

// State returns the current state.
func (s *Session) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.lock.Lock()
	if s.state != st {
		glog.V(1).Infof("%s: %s -> %s", s.Name(), s.state, st)
	}
	s.state = st
	s.lock.Unlock()
}

// StartTick is the tick at which the session was armed.
func (s *Session) StartTick() uint32 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.startTick
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	s.lock.Lock()
	st := s.stats
	s.lock.Unlock()
	st.Dropped = atomic.LoadUint64(&s.dropped)
	return st
}

func (s *Session) count(fn func(*Stats)) {
	s.lock.Lock()
	fn(&s.stats)
	s.lock.Unlock()
}

// Run arms the session and handles events until ctx is done or the bus
// is considered dead. Teardown always runs before Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.lock.Unlock()

	err := s.arm()
	if err == nil {
		err = s.loop(ctx)
	}
	if terr := s.teardown(); terr != nil {
		glog.Errorf("%s: teardown: %v", s.Name(), terr)
	}
	return err
}

func (s *Session) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			if err := s.handle(ev); err != nil {
				return err
			}
		}
	}
}

// arm resets the FIFOs, subscribes the interrupt pin, starts the watchdog
// and tells the remote to start sending.
func (s *Session) arm() error {
	size := s.EventQueue
	if size <= 0 {
		size = DefaultEventQueue
	}
	s.events = make(chan event, size)
	if err := s.Chip.ResetFIFOs(s.RxTrigger); err != nil {
		return err
	}
	s.lock.Lock()
	s.startTick = s.Edges.CurrentTick()
	s.lock.Unlock()
	irq, err := s.Edges.OnFallingEdge(s.IRQPin, s.onEdge)
	if err != nil {
		return err
	}
	s.irq = irq
	s.armWatchdog()
	s.setState(StateArmed)
	if err := s.Chip.WriteRegister(bridge.RegTHR, StartMarker); err != nil {
		return err
	}
	glog.Infof("%s: armed on pin %d at tick %08X", s.Name(), s.IRQPin, s.StartTick())
	return nil
}

func (s *Session) armWatchdog() {
	if s.Watchdog != nil {
		s.Watchdog.Arm(s.WatchdogTimeout, s.onWatchdog)
	}
}

func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	default:
		if n := atomic.AddUint64(&s.dropped, 1); n == 1 || n%1000 == 0 {
			glog.Warningf("%s: event queue full, %d events dropped", s.Name(), n)
		}
	}
}

func (s *Session) onEdge(tick uint32) {
	s.post(event{kind: eventInterrupt, tick: tick})
}

func (s *Session) onWatchdog() {
	s.post(event{kind: eventWatchdog, tick: s.Edges.CurrentTick()})
}

func (s *Session) handle(ev event) error {
	if !s.State().Active() {
		return ErrNotArmed
	}
	switch ev.kind {
	case eventInterrupt:
		s.armWatchdog()
		return s.checkBus(s.service(ev.tick))
	case eventWatchdog:
		return s.checkBus(s.stalled(ev.tick))
	}
	return nil
}

// checkBus counts consecutive bus errors. The error is returned only
// when the limit is reached.
func (s *Session) checkBus(err error) error {
	if err == nil {
		s.busErrors = 0
		return nil
	}
	s.busErrors++
	s.count(func(st *Stats) { st.BusErrors++ })
	glog.Warningf("%s: bus error %d: %v", s.Name(), s.busErrors, err)
	if s.MaxBusErrors > 0 && s.busErrors >= s.MaxBusErrors {
		glog.Errorf("%s: %d consecutive bus errors, giving up", s.Name(), s.busErrors)
		return err
	}
	return nil
}

func (s *Session) emit(rec *capture.Record) {
	s.count(func(st *Stats) {
		st.Records++
		if rec.IsAnomaly() {
			st.Anomalies++
		}
	})
	glog.V(1).Infof("%s: %s", s.Name(), rec)
	if s.Sink != nil {
		s.Sink.Emit(rec)
	}
}

// service handles one interrupt edge.
func (s *Session) service(tick uint32) error {
	iir, err := s.Chip.ReadRegister(bridge.RegIIR)
	if err != nil {
		return err
	}
	cause := capture.Cause(iir & bridge.IIRMask)
	if cause == capture.CauseNone {
		// already serviced by a previous drain.
		s.count(func(st *Stats) { st.Spurious++ })
		return nil
	}
	lsr, err := s.Chip.ReadRegister(bridge.RegLSR)
	if err != nil {
		return err
	}
	level, err := s.Chip.ReadRegister(bridge.RegRXLVL)
	if err != nil {
		return err
	}
	if cause == capture.CauseRxError && lsr&bridge.LSROverrunError != 0 {
		glog.Warningf("%s: [%08X] RX overrun with %d bytes queued", s.Name(), capture.TickDiff(s.StartTick(), tick), level)
		err := s.resync()
		s.emit(&capture.Record{
			Tick:          tick,
			Cause:         cause,
			Status:        lsr,
			HasStatus:     true,
			DeclaredCount: int(level),
		})
		return err
	}

	rec := &capture.Record{Tick: tick, Cause: cause, DeclaredCount: int(level)}
	if cause == capture.CauseRxError {
		rec.Status, rec.HasStatus = lsr, true
	}
	if n := int(level) &^ (capture.WordSize - 1); n > 0 {
		payload, err := s.Chip.BlockRead(bridge.RegRHR, n)
		if err != nil {
			return err
		}
		rec.Words = capture.AssembleWords(payload)
	}
	s.setState(StateCapturing)
	s.emit(rec)
	return nil
}

// stalled handles a watchdog timeout.
func (s *Session) stalled(tick uint32) error {
	s.count(func(st *Stats) { st.Watchdogs++ })
	var level byte
	if lvl, err := s.Chip.ReadRegister(bridge.RegRXLVL); err == nil {
		level = lvl
	}
	glog.Warningf("%s: [%08X] no interrupt in %s, resetting FIFOs", s.Name(), capture.TickDiff(s.StartTick(), tick), s.WatchdogTimeout)
	err := s.resync()
	s.emit(&capture.Record{Tick: tick, Cause: capture.CauseWatchdog, DeclaredCount: int(level)})
	return err
}

// resync runs the FIFO reset sequence and returns to Armed.
func (s *Session) resync() error {
	s.setState(StateResynchronizing)
	s.count(func(st *Stats) { st.Resyncs++ })
	err := s.Chip.ResetFIFOs(s.RxTrigger)
	s.setState(StateArmed)
	return err
}

// teardown stops the remote, releases the interrupt and watchdog,
// drains whole words left in the FIFO and discards queued events.
// Every step runs, errors are aggregated.
func (s *Session) teardown() error {
	var errs fx.AggregatedError
	errs.Add(s.Chip.WriteRegister(bridge.RegTHR, StopMarker))
	if s.irq != nil {
		errs.Add(s.irq.Cancel())
		s.irq = nil
	}
	if s.Watchdog != nil {
		s.Watchdog.Disarm()
	}
	errs.Add(s.drain())
	discarded := 0
	for {
		select {
		case <-s.events:
			discarded++
			continue
		default:
		}
		break
	}
	s.setState(StateDrained)
	st := s.Stats()
	glog.Infof("%s: drained, %d records (%d anomalies), %d resyncs, %d events discarded, %d dropped",
		s.Name(), st.Records, st.Anomalies, st.Resyncs, discarded, st.Dropped)
	return errs.Aggregate()
}

func (s *Session) drain() error {
	level, err := s.Chip.ReadRegister(bridge.RegRXLVL)
	if err != nil {
		return err
	}
	n := int(level) &^ (capture.WordSize - 1)
	if n < capture.WordSize {
		return nil
	}
	payload, err := s.Chip.BlockRead(bridge.RegRHR, n)
	if err != nil {
		return err
	}
	s.emit(&capture.Record{
		Tick:          s.Edges.CurrentTick(),
		Cause:         capture.CauseRxTimeout,
		DeclaredCount: int(level),
		Words:         capture.AssembleWords(payload),
	})
	return nil
}

// Close shuts the chip down. Call it after Run returned.
func (s *Session) Close() error {
	return s.Chip.Shutdown()
}

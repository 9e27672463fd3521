package acq

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/bridge/bridgetest"
	"github.com/robotalks/ccdr.go/pkg/capture"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
	"github.com/robotalks/ccdr.go/pkg/gpio/gpiotest"
)

const testPin = 11

type manualWatchdog struct {
	armed    int
	disarmed int
	timeout  time.Duration
	onFire   func()
}

func (w *manualWatchdog) Arm(timeout time.Duration, onFire func()) {
	w.armed++
	w.timeout, w.onFire = timeout, onFire
}

func (w *manualWatchdog) Disarm() {
	w.disarmed++
	w.onFire = nil
}

func (w *manualWatchdog) fire() {
	if w.onFire != nil {
		w.onFire()
	}
}

type fixture struct {
	session *Session
	sim     *bridgetest.Chip
	edges   *gpiotest.Source
	wd      *manualWatchdog
	records []*capture.Record
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{sim: bridgetest.New(), edges: gpiotest.New(), wd: &manualWatchdog{}}
	chip := bridge.NewChip(f.sim, 1843200)
	chip.Sleep = func(time.Duration) {}
	require.NoError(t, chip.Configure(bridge.DefaultConfig()))
	f.session = NewSession(chip, f.edges, f.wd, SinkFunc(func(rec *capture.Record) {
		f.records = append(f.records, rec)
	}))
	f.session.Config.Name = "PLP"
	f.session.IRQPin = testPin
	return f
}

func (f *fixture) arm(t *testing.T) {
	require.NoError(t, f.session.arm())
}

// pump handles all queued events like the session goroutine does.
func (f *fixture) pump(t *testing.T) {
	for {
		select {
		case ev := <-f.session.events:
			require.NoError(t, f.session.handle(ev))
		default:
			return
		}
	}
}

func TestArm(t *testing.T) {
	f := newFixture(t)
	f.edges.SetTick(1234)
	resets := f.sim.FIFOResets()
	f.arm(t)
	assert.Equal(t, StateArmed, f.session.State())
	assert.Equal(t, uint32(1234), f.session.StartTick())
	assert.Equal(t, []byte{StartMarker}, f.sim.Sent())
	assert.True(t, f.edges.Subscribed(testPin))
	assert.Equal(t, 1, f.wd.armed)
	assert.Equal(t, DefaultWatchdogTimeout, f.wd.timeout)
	assert.Equal(t, resets+1, f.sim.FIFOResets())
	enabled, trigger := f.sim.FIFOState()
	assert.True(t, enabled)
	assert.Equal(t, 56, trigger)
}

func TestDrainWholeWords(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	words := make([]uint32, 14)
	for i := range words {
		words[i] = uint32(100 + i)
	}
	f.sim.ReceiveWords(words...)
	f.sim.Receive(0xaa, 0xbb)
	f.edges.SetTick(0x1000)
	require.True(t, f.edges.Fire(testPin))
	f.pump(t)

	require.Len(t, f.records, 1)
	rec := f.records[0]
	assert.Equal(t, uint32(0x1000), rec.Tick)
	assert.Equal(t, capture.CauseRxReady, rec.Cause)
	assert.False(t, rec.HasStatus)
	assert.Equal(t, 58, rec.DeclaredCount)
	assert.Equal(t, words, rec.Words)
	assert.Equal(t, 2, f.sim.RxLevel())
	assert.Equal(t, []int{32, 24}, f.sim.BlockReads())
	assert.Equal(t, StateCapturing, f.session.State())
	assert.Equal(t, 2, f.wd.armed)
}

func TestRxTimeoutDrain(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.sim.ReceiveWords(7, 8)
	f.sim.Receive(1)
	f.sim.SetRxTimeout(true)
	f.edges.Fire(testPin)
	f.pump(t)
	require.Len(t, f.records, 1)
	assert.Equal(t, capture.CauseRxTimeout, f.records[0].Cause)
	assert.Equal(t, 9, f.records[0].DeclaredCount)
	assert.Equal(t, []uint32{7, 8}, f.records[0].Words)
	assert.Equal(t, 1, f.sim.RxLevel())
}

func TestSpuriousInterrupt(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.edges.Fire(testPin)
	f.pump(t)
	assert.Empty(t, f.records)
	assert.Equal(t, uint64(1), f.session.Stats().Spurious)
	assert.Equal(t, StateArmed, f.session.State())
}

func TestOverrunResync(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.sim.Receive(make([]byte, bridgetest.FIFODepth+6)...)
	require.True(t, f.sim.Overrun())
	resets := f.sim.FIFOResets()
	f.edges.SetTick(77)
	f.edges.Fire(testPin)
	f.pump(t)

	require.Len(t, f.records, 1)
	rec := f.records[0]
	assert.Equal(t, capture.CauseRxError, rec.Cause)
	assert.True(t, rec.HasStatus)
	assert.True(t, rec.Overflow())
	assert.True(t, rec.IsAnomaly())
	assert.Equal(t, bridgetest.FIFODepth, rec.DeclaredCount)
	assert.Equal(t, uint32(77), rec.Tick)
	assert.Equal(t, resets+1, f.sim.FIFOResets())
	assert.Zero(t, f.sim.RxLevel())
	assert.Empty(t, f.sim.BlockReads())
	assert.Equal(t, StateArmed, f.session.State())
	enabled, trigger := f.sim.FIFOState()
	assert.True(t, enabled)
	assert.Equal(t, 56, trigger)
}

func TestWatchdogResync(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	resets := f.sim.FIFOResets()
	f.edges.SetTick(5000)
	f.wd.fire()
	f.pump(t)

	assert.Equal(t, resets+1, f.sim.FIFOResets())
	require.Len(t, f.records, 1)
	rec := f.records[0]
	assert.Equal(t, capture.CauseWatchdog, rec.Cause)
	assert.False(t, rec.HasStatus)
	assert.True(t, rec.IsAnomaly())
	assert.Equal(t, uint32(5000), rec.Tick)
	st := f.session.Stats()
	assert.Equal(t, uint64(1), st.Watchdogs)
	assert.Equal(t, uint64(1), st.Resyncs)
	assert.Equal(t, StateArmed, f.session.State())
}

func TestResyncTwiceSameState(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.wd.fire()
	f.pump(t)
	fcr := f.sim.Reg(bridge.RegFCR)
	f.wd.fire()
	f.pump(t)
	assert.Equal(t, fcr, f.sim.Reg(bridge.RegFCR))
	assert.Len(t, f.records, 2)
}

func TestTeardown(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.sim.ReceiveWords(1, 2)
	f.sim.Receive(3, 4)
	f.edges.Fire(testPin)
	f.edges.Fire(testPin)
	require.NoError(t, f.session.teardown())

	assert.Equal(t, []byte{StartMarker, StopMarker}, f.sim.Sent())
	assert.Equal(t, 1, f.edges.Canceled())
	assert.False(t, f.edges.Subscribed(testPin))
	assert.Equal(t, 1, f.wd.disarmed)
	require.Len(t, f.records, 1)
	assert.Equal(t, []uint32{1, 2}, f.records[0].Words)
	assert.Equal(t, 10, f.records[0].DeclaredCount)
	assert.Equal(t, 2, f.sim.RxLevel())
	assert.Empty(t, f.session.events)
	assert.Equal(t, StateDrained, f.session.State())
}

func TestTeardownPartialWord(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.sim.Receive(1, 2, 3)
	require.NoError(t, f.session.teardown())
	assert.Empty(t, f.records)
	assert.Empty(t, f.sim.BlockReads())
}

func TestTeardownAggregatesErrors(t *testing.T) {
	f := newFixture(t)
	f.arm(t)
	f.sim.Fail = map[string]bool{"THR": true, "RXLVL": true}
	err := f.session.teardown()
	require.Error(t, err)
	var agg *fx.AggregatedError
	require.True(t, errors.As(err, &agg))
	assert.Len(t, agg.Errors, 2)
	assert.Equal(t, 1, f.edges.Canceled())
	assert.Equal(t, StateDrained, f.session.State())
}

func TestBusErrorLimit(t *testing.T) {
	f := newFixture(t)
	f.session.MaxBusErrors = 3
	f.arm(t)
	f.sim.Fail = map[string]bool{"IIR": true}
	f.edges.Fire(testPin)
	f.edges.Fire(testPin)
	f.pump(t)
	f.sim.Fail = nil
	f.edges.Fire(testPin)
	f.pump(t)
	assert.Equal(t, 0, f.session.busErrors)

	f.sim.Fail = map[string]bool{"IIR": true}
	for i := 0; i < 2; i++ {
		f.edges.Fire(testPin)
		f.pump(t)
	}
	f.edges.Fire(testPin)
	err := f.session.handle(<-f.session.events)
	require.Error(t, err)
	require.True(t, bridge.IsBusError(err))
	assert.Equal(t, uint64(5), f.session.Stats().BusErrors)
}

func TestEventQueueFull(t *testing.T) {
	f := newFixture(t)
	f.session.EventQueue = 2
	f.arm(t)
	for i := 0; i < 5; i++ {
		f.edges.Fire(testPin)
	}
	assert.Equal(t, uint64(3), f.session.Stats().Dropped)
	f.pump(t)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	for deadline := time.Now().Add(5 * time.Second); !cond(); {
		require.True(t, time.Now().Before(deadline), "timeout waiting for "+what)
		time.Sleep(time.Millisecond)
	}
}

func TestRunWithLoop(t *testing.T) {
	f := newFixture(t)
	f.edges.SetTick(1000)
	loop := fx.NewLoop()
	loop.Interval = 5 * time.Millisecond
	var buf bytes.Buffer
	logger := &LogController{Writer: capture.NewWriter(&buf)}
	loop.Add(f.session, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, "armed", func() bool { return f.session.State() == StateArmed })
	f.sim.ReceiveWords(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14)
	f.edges.Advance(500)
	f.edges.Fire(testPin)
	waitFor(t, "record", func() bool { return f.session.Stats().Records == 1 })
	f.sim.ReceiveWords(15)
	cancel()
	require.Equal(t, context.Canceled, <-done)
	require.NoError(t, f.session.Close())

	assert.True(t, f.sim.Closed())
	assert.Equal(t, StateDrained, f.session.State())
	assert.Equal(t, 2, logger.Appended())
	entries, err := capture.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(500), entries[0].Tick)
	assert.Len(t, entries[0].Words, 14)
	assert.Equal(t, []uint32{15}, entries[1].Words)

	report, err := capture.Validate(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestRunFailsOnDeadBus(t *testing.T) {
	f := newFixture(t)
	f.session.MaxBusErrors = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.session.Run(ctx) }()
	waitFor(t, "start marker", func() bool { return len(f.sim.Sent()) == 1 })
	f.sim.Fail = map[string]bool{"IIR": true}
	f.edges.Fire(testPin)
	err := <-done
	require.True(t, bridge.IsBusError(err))
	assert.Equal(t, StateDrained, f.session.State())
	assert.Equal(t, ErrAlreadyRunning, f.session.Run(ctx))
}

package bridge_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/bridge/bridgetest"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
)

func TestDivisor(t *testing.T) {
	testCases := []struct {
		freq, baud uint32
		prescaler  int
		div        uint16
	}{
		{1843200, 115200, 1, 1},
		{1843200, 9600, 1, 12},
		{11059200, 115200, 1, 6},
		{11059200, 9600, 4, 18},
		{14745600, 9600, 1, 96},
		{1843200, 300, 1, 384},
	}
	for _, tc := range testCases {
		div, err := bridge.Divisor(tc.freq, tc.baud, tc.prescaler)
		require.NoError(t, err)
		require.Equal(t, tc.div, div, "freq=%d baud=%d prescaler=%d", tc.freq, tc.baud, tc.prescaler)
	}

	_, err := bridge.Divisor(1843200, 115200, 2)
	require.True(t, errors.Is(err, bridge.ErrInvalidDivisor))
	_, err = bridge.Divisor(1843200, 0, 1)
	require.True(t, errors.Is(err, bridge.ErrInvalidDivisor))
	_, err = bridge.Divisor(1843200, 921600, 4)
	require.True(t, errors.Is(err, bridge.ErrInvalidDivisor))
}

func TestSetDivisorRoundTrip(t *testing.T) {
	freqs := []uint32{1843200, 3072000, 11059200, 14745600, 24000000}
	bauds := []uint32{1200, 2400, 9600, 19200, 38400, 57600, 115200}
	for _, freq := range freqs {
		for _, baud := range bauds {
			for _, prescaler := range []int{1, 4} {
				div, err := bridge.Divisor(freq, baud, prescaler)
				if err != nil {
					continue
				}
				chip, sim := newTestChip()
				require.NoError(t, chip.ConfigureFrame(8, 1, bridge.ParityNone))
				ok, latched, err := chip.SetDivisor(freq, baud, prescaler)
				require.NoError(t, err)
				require.True(t, ok)
				require.Equal(t, div, latched)
				require.Equal(t, byte(div>>8), sim.Reg(bridge.RegDLH))
				require.Equal(t, byte(div), sim.Reg(bridge.RegDLL))
				// divisor latch access must be closed again.
				require.Equal(t, byte(0x03), sim.Reg(bridge.RegLCR))
				mcr := sim.Reg(bridge.RegMCR)
				require.Equal(t, prescaler == 4, mcr&bridge.MCRClockDivisor4 != 0)
			}
		}
	}
}

func TestSetDivisorMismatch(t *testing.T) {
	chip, sim := newTestChip()
	sim.Stuck = map[string]byte{"DLL": 0x00}
	ok, latched, err := chip.SetDivisor(1843200, 9600, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint16(0), latched)
}

// failingWrites fails every register write from the first write to addr on.
type failingWrites struct {
	*bridgetest.Chip
	addr    byte
	failing bool
}

func (b *failingWrites) WriteReg(phys, val byte) error {
	if phys == b.addr {
		b.failing = true
	}
	if b.failing {
		return bridgetest.ErrNACK
	}
	return b.Chip.WriteReg(phys, val)
}

func TestSetDivisorReportsRestoreError(t *testing.T) {
	bus := &failingWrites{Chip: bridgetest.New(), addr: bridge.RegDLL.Physical()}
	chip := bridge.NewChip(bus, 1843200)
	chip.Sleep = func(time.Duration) {}
	require.NoError(t, chip.ConfigureFrame(8, 1, bridge.ParityNone))
	ok, _, err := chip.SetDivisor(1843200, 115200, 1)
	require.False(t, ok)
	var errs *fx.AggregatedError
	require.True(t, errors.As(err, &errs))
	require.Len(t, errs.Errors, 2)
	require.True(t, bridge.IsBusError(errs.Errors[0]))
	require.True(t, bridge.IsBusError(errs.Errors[1]))
}

func TestSelectSpecialFromEnhanced(t *testing.T) {
	chip, sim := newTestChip()
	require.NoError(t, chip.ConfigureFrame(8, 1, bridge.ParityNone))
	restoreEnhanced, err := chip.SelectBank(bridge.BankEnhanced)
	require.NoError(t, err)
	restoreSpecial, err := chip.SelectBank(bridge.BankSpecial)
	require.NoError(t, err)
	require.Equal(t, bridge.LCRDivisorLatch, sim.Reg(bridge.RegLCR))
	require.NoError(t, restoreSpecial())
	require.Equal(t, bridge.LCREnhancedAccess, sim.Reg(bridge.RegLCR))
	require.NoError(t, restoreEnhanced())
	require.Equal(t, byte(0x03), sim.Reg(bridge.RegLCR))
}

func TestEncodeFrame(t *testing.T) {
	testCases := []struct {
		data, stop int
		parity     bridge.Parity
		lcr        byte
	}{
		{8, 1, bridge.ParityNone, 0x03},
		{7, 1, bridge.ParityEven, 0x1a},
		{8, 2, bridge.ParityOdd, 0x0f},
		{5, 1, bridge.ParityMark, 0x28},
		{6, 2, bridge.ParitySpace, 0x3d},
	}
	for _, tc := range testCases {
		lcr, err := bridge.EncodeFrame(tc.data, tc.stop, tc.parity)
		require.NoError(t, err)
		require.Equal(t, tc.lcr, lcr)
	}
	_, err := bridge.EncodeFrame(9, 1, bridge.ParityNone)
	require.True(t, errors.Is(err, bridge.ErrInvalidFrame))
	_, err = bridge.EncodeFrame(8, 3, bridge.ParityNone)
	require.True(t, errors.Is(err, bridge.ErrInvalidFrame))
	_, err = bridge.EncodeFrame(8, 1, bridge.Parity(0x10))
	require.True(t, errors.Is(err, bridge.ErrInvalidFrame))
}

func TestConfigureFrameFault(t *testing.T) {
	chip, sim := newTestChip()
	sim.Stuck = map[string]byte{"LCR": 0x00}
	err := chip.ConfigureFrame(8, 1, bridge.ParityNone)
	var fault *bridge.ConfigurationFault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, bridge.RegLCR, fault.Reg)
}

func TestResetFIFOsSequence(t *testing.T) {
	chip, sim := newTestChip()
	sim.Receive(1, 2, 3)
	require.NoError(t, chip.ResetFIFOs(bridge.RxTrigger56))
	require.Equal(t, []byte{0x06, 0x81}, sim.FCRWrites())
	require.Equal(t, 0, sim.RxLevel())
	enabled, trigger := sim.FIFOState()
	require.True(t, enabled)
	require.Equal(t, 56, trigger)

	// resetting again leaves the same state.
	require.NoError(t, chip.ResetFIFOs(bridge.RxTrigger56))
	enabled2, trigger2 := sim.FIFOState()
	require.Equal(t, enabled, enabled2)
	require.Equal(t, trigger, trigger2)
	require.Equal(t, 2, sim.FIFOResets())
}

func TestTriggerLevelOf(t *testing.T) {
	for _, n := range []int{8, 16, 56, 60} {
		lvl, err := bridge.TriggerLevelOf(n)
		require.NoError(t, err)
		require.Equal(t, n, lvl.Bytes())
	}
	_, err := bridge.TriggerLevelOf(32)
	require.Error(t, err)
}

func TestConfigure(t *testing.T) {
	chip, sim := newTestChip()
	sim.NackReset = true
	conf := bridge.DefaultConfig()
	require.NoError(t, chip.Configure(conf))
	require.Equal(t, byte(0x03), sim.Reg(bridge.RegLCR))
	require.Equal(t, byte(0x01), sim.Reg(bridge.RegDLL))
	require.Equal(t, bridge.IERRxReady|bridge.IERRxError, sim.Reg(bridge.RegIER))
	enabled, trigger := sim.FIFOState()
	require.True(t, enabled)
	require.Equal(t, 56, trigger)
}

func TestConfigureProbeFault(t *testing.T) {
	chip, sim := newTestChip()
	sim.Stuck = map[string]byte{"SPR": 0xff}
	err := chip.Configure(bridge.DefaultConfig())
	var fault *bridge.ConfigurationFault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, bridge.RegSPR, fault.Reg)
	require.Equal(t, byte(0xaa), fault.Wrote)
}

func TestConfigureRetriesBusErrors(t *testing.T) {
	chip, sim := newTestChip()
	var delays []time.Duration
	chip.Sleep = func(d time.Duration) {
		if d >= time.Millisecond {
			delays = append(delays, d)
		}
	}
	sim.FailReads = 2
	require.NoError(t, chip.Configure(bridge.DefaultConfig()))
	require.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
	require.Zero(t, sim.FailReads)
}

func TestResetAndProbeGivesUp(t *testing.T) {
	chip, sim := newTestChip()
	sim.Fail = map[string]bool{"SPR": true}
	var retries int
	chip.Sleep = func(d time.Duration) {
		if d >= time.Millisecond {
			retries++
		}
	}
	err := chip.ResetAndProbe(3, time.Millisecond)
	require.True(t, bridge.IsBusError(err))
	require.Equal(t, 2, retries)
}

func TestResetAndProbeFaultNotRetried(t *testing.T) {
	chip, sim := newTestChip()
	sim.Stuck = map[string]byte{"SPR": 0x12}
	var retries int
	chip.Sleep = func(d time.Duration) {
		if d >= time.Millisecond {
			retries++
		}
	}
	err := chip.ResetAndProbe(3, time.Millisecond)
	var fault *bridge.ConfigurationFault
	require.True(t, errors.As(err, &fault))
	require.Zero(t, retries)
}

func TestShutdown(t *testing.T) {
	chip, sim := newTestChip()
	require.NoError(t, chip.EnableInterrupts(bridge.IERRxReady))
	require.NoError(t, chip.Shutdown())
	require.Equal(t, byte(0), sim.Reg(bridge.RegIER))
	require.True(t, sim.Closed())
}

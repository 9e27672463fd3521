package bridge

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/ccdr.go/pkg/framework"
)

// Parity selects the parity mode of the UART frame.
type Parity byte

// Parity codes, already positioned at LCR bits 5:3.
const (
	ParityNone  Parity = 0x00
	ParityOdd   Parity = 0x08
	ParityEven  Parity = 0x18
	ParityMark  Parity = 0x28 // forced 1
	ParitySpace Parity = 0x38 // forced 0
)

// String implements fmt.Stringer.
func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "N"
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	}
	return "?"
}

// TriggerLevel is the RX FIFO interrupt trigger level.
type TriggerLevel byte

// RX trigger levels, already positioned at FCR bits 7:6.
const (
	RxTrigger8  TriggerLevel = 0x00
	RxTrigger16 TriggerLevel = 0x40
	RxTrigger56 TriggerLevel = 0x80
	RxTrigger60 TriggerLevel = 0xc0
)

// Bytes returns the number of characters of the trigger level.
func (t TriggerLevel) Bytes() int {
	switch t {
	case RxTrigger16:
		return 16
	case RxTrigger56:
		return 56
	case RxTrigger60:
		return 60
	}
	return 8
}

// TriggerLevelOf maps a character count to the trigger level.
func TriggerLevelOf(n int) (TriggerLevel, error) {
	switch n {
	case 8:
		return RxTrigger8, nil
	case 16:
		return RxTrigger16, nil
	case 56:
		return RxTrigger56, nil
	case 60:
		return RxTrigger60, nil
	}
	return 0, fmt.Errorf("unsupported RX trigger level %d", n)
}

// Config describes the UART setup of the bridge.
type Config struct {
	XtalFreq   uint32
	Baud       uint32
	Prescaler  int
	DataBits   int
	StopBits   int
	Parity     Parity
	RxTrigger  TriggerLevel
	Interrupts byte

	// ProbeAttempts and ProbeBackoff bound the retries of reset and
	// probe on bus errors while the chip powers up.
	ProbeAttempts int
	ProbeBackoff  time.Duration
}

// Defaults of the reset and probe retries.
const (
	DefaultProbeAttempts = 5
	DefaultProbeBackoff  = 10 * time.Millisecond
)

// DefaultConfig is 115200 8N1 on a 1.8432MHz crystal with RX ready
// and RX line error interrupts.
func DefaultConfig() Config {
	return Config{
		XtalFreq:   1843200,
		Baud:       115200,
		Prescaler:  1,
		DataBits:   8,
		StopBits:   1,
		Parity:     ParityNone,
		RxTrigger:  RxTrigger56,
		Interrupts: IERRxReady | IERRxError,

		ProbeAttempts: DefaultProbeAttempts,
		ProbeBackoff:  DefaultProbeBackoff,
	}
}

// Divisor computes round(freq / (prescaler * baud * 16)).
func Divisor(freq, baud uint32, prescaler int) (uint16, error) {
	if prescaler != 1 && prescaler != 4 {
		return 0, fmt.Errorf("%w: prescaler must be 1 or 4, got %d", ErrInvalidDivisor, prescaler)
	}
	if baud == 0 || freq == 0 {
		return 0, fmt.Errorf("%w: freq=%d baud=%d", ErrInvalidDivisor, freq, baud)
	}
	d := math.Round(float64(freq) / (float64(prescaler) * float64(baud) * 16))
	if d < 1 || d > 0xffff {
		return 0, fmt.Errorf("%w: freq=%d baud=%d prescaler=%d gives %v", ErrInvalidDivisor, freq, baud, prescaler, d)
	}
	return uint16(d), nil
}

// EncodeFrame encodes data bits, stop bits and parity into the LCR byte.
func EncodeFrame(dataBits, stopBits int, parity Parity) (byte, error) {
	if dataBits < 5 || dataBits > 8 {
		return 0, fmt.Errorf("%w: %d data bits", ErrInvalidFrame, dataBits)
	}
	lcr := byte(dataBits - 5)
	switch stopBits {
	case 1:
	case 2:
		lcr |= LCRStopBits
	default:
		return 0, fmt.Errorf("%w: %d stop bits", ErrInvalidFrame, stopBits)
	}
	switch parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
		lcr |= byte(parity)
	default:
		return 0, fmt.Errorf("%w: parity code 0x%02X", ErrInvalidFrame, byte(parity))
	}
	return lcr, nil
}

// SelectBank switches the register set visible to subsequent accesses
// and returns a func restoring the previous LCR value.
func (c *Chip) SelectBank(bank Bank) (restore func() error, err error) {
	lcr, err := c.ReadRegister(RegLCR)
	if err != nil {
		return nil, err
	}
	var want byte
	switch bank {
	case BankGeneral:
		want = lcr &^ LCRDivisorLatch
		if lcr == LCREnhancedAccess {
			want = 0
		}
	case BankSpecial:
		want = lcr | LCRDivisorLatch
		if lcr == LCREnhancedAccess {
			want = LCRDivisorLatch
		}
	case BankEnhanced:
		want = LCREnhancedAccess
	}
	if err = c.MustWriteVerify(RegLCR, want); err != nil {
		return nil, err
	}
	return func() error {
		return c.MustWriteVerify(RegLCR, lcr)
	}, nil
}

// SetDivisor programs the baud-rate divisor latch and the clock prescaler.
// It returns whether every write verified and the latched divisor.
func (c *Chip) SetDivisor(freq, baud uint32, prescaler int) (bool, uint16, error) {
	div, err := Divisor(freq, baud, prescaler)
	if err != nil {
		return false, 0, err
	}
	if err = c.setPrescaler(prescaler); err != nil {
		return false, 0, err
	}
	restore, err := c.SelectBank(BankSpecial)
	if err != nil {
		return false, 0, err
	}
	var (
		errs fx.AggregatedError
		okL  bool
		lo   byte
	)
	okH, hi, err := c.WriteVerify(RegDLH, byte(div>>8))
	if err == nil {
		okL, lo, err = c.WriteVerify(RegDLL, byte(div))
	}
	// the divisor latch must not stay open.
	errs.Add(err, restore())
	if err = errs.Aggregate(); err != nil {
		return false, 0, err
	}
	latched := uint16(hi)<<8 | uint16(lo)
	glog.V(1).Infof("divisor %d (freq=%d baud=%d prescaler=%d) latched 0x%04X", div, freq, baud, prescaler, latched)
	return okH && okL, latched, nil
}

func (c *Chip) setPrescaler(prescaler int) error {
	mcr, err := c.ReadRegister(RegMCR)
	if err != nil {
		return err
	}
	want := mcr &^ MCRClockDivisor4
	if prescaler == 4 {
		want |= MCRClockDivisor4
	}
	if want == mcr {
		return nil
	}
	// MCR bit 7 is only writable with enhanced functions enabled.
	if err = c.enableEnhancedFunctions(); err != nil {
		return err
	}
	return c.MustWriteVerify(RegMCR, want)
}

func (c *Chip) enableEnhancedFunctions() error {
	restore, err := c.SelectBank(BankEnhanced)
	if err != nil {
		return err
	}
	efr, err := c.ReadRegister(RegEFR)
	if err == nil && efr&EFREnhancedEnable == 0 {
		err = c.MustWriteVerify(RegEFR, efr|EFREnhancedEnable)
	}
	if rerr := restore(); err == nil {
		err = rerr
	}
	return err
}

// ConfigureFrame sets the data width, stop bits and parity.
func (c *Chip) ConfigureFrame(dataBits, stopBits int, parity Parity) error {
	lcr, err := EncodeFrame(dataBits, stopBits, parity)
	if err != nil {
		return err
	}
	return c.MustWriteVerify(RegLCR, lcr)
}

// ResetFIFOs resets both FIFOs, waits two crystal periods and re-enables
// FIFOs with the RX trigger level. The order is required by the chip,
// otherwise the enable is ignored.
func (c *Chip) ResetFIFOs(trigger TriggerLevel) error {
	if err := c.WriteRegister(RegFCR, FCRTxFIFOReset|FCRRxFIFOReset); err != nil {
		return err
	}
	c.settle()
	return c.WriteRegister(RegFCR, FCRFIFOEnable|byte(trigger))
}

// EnableInterrupts writes the interrupt enable mask.
func (c *Chip) EnableInterrupts(mask byte) error {
	return c.MustWriteVerify(RegIER, mask)
}

// SoftwareReset resets the chip through IOCONTROL. The chip may NACK
// the write as it resets, which is not an error here.
func (c *Chip) SoftwareReset() error {
	err := c.WriteRegister(RegIOCONTROL, IOControlSoftReset)
	if err != nil && IsBusError(err) {
		glog.V(1).Infof("software reset NACK ignored: %v", err)
		err = nil
	}
	if err != nil {
		return err
	}
	v, err := c.ReadRegister(RegIOCONTROL)
	if err != nil {
		return err
	}
	if v&IOControlSoftReset != 0 {
		return &ConfigurationFault{Reg: RegIOCONTROL, Wrote: 0, Read: v}
	}
	return nil
}

// ScratchPatterns are written to the scratchpad by Probe.
var ScratchPatterns = []byte{0xff, 0xaa, 0x00}

// Probe checks the chip responds by write-verifying scratchpad patterns.
func (c *Chip) Probe() error {
	for _, p := range ScratchPatterns {
		if err := c.MustWriteVerify(RegSPR, p); err != nil {
			return err
		}
	}
	return nil
}

// ResetAndProbe resets and probes the chip. Bus errors are retried up to
// attempts times, doubling backoff in between, as a chip just out of
// reset may not answer yet. Verification faults are not retried.
func (c *Chip) ResetAndProbe(attempts int, backoff time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for n := 0; n < attempts; n++ {
		if n > 0 {
			glog.Warningf("bridge probe attempt %d failed, retry in %s: %v", n, backoff, err)
			c.sleep(backoff)
			backoff *= 2
		}
		if err = c.SoftwareReset(); err == nil {
			err = c.Probe()
		}
		if err == nil || !IsBusError(err) {
			return err
		}
	}
	return err
}

// Configure runs the full setup sequence. Any verification mismatch
// is returned as *ConfigurationFault and the chip must not be used.
func (c *Chip) Configure(conf Config) error {
	if err := c.ResetAndProbe(conf.ProbeAttempts, conf.ProbeBackoff); err != nil {
		return err
	}
	// frame first: SetDivisor restores the LCR it finds.
	if err := c.ConfigureFrame(conf.DataBits, conf.StopBits, conf.Parity); err != nil {
		return err
	}
	ok, latched, err := c.SetDivisor(conf.XtalFreq, conf.Baud, conf.Prescaler)
	if err != nil {
		return err
	}
	if !ok {
		div, _ := Divisor(conf.XtalFreq, conf.Baud, conf.Prescaler)
		return &ConfigurationFault{Reg: RegDLL, Wrote: byte(div), Read: byte(latched)}
	}
	if err := c.ResetFIFOs(conf.RxTrigger); err != nil {
		return err
	}
	if err := c.EnableInterrupts(conf.Interrupts); err != nil {
		return err
	}
	glog.Infof("bridge configured: %d %d%s%d, divisor 0x%04X, RX trigger %d",
		conf.Baud, conf.DataBits, conf.Parity, conf.StopBits, latched, conf.RxTrigger.Bytes())
	return nil
}

// Shutdown disables interrupts and releases the bus. Errors are aggregated.
func (c *Chip) Shutdown() error {
	var errs fx.AggregatedError
	errs.Add(c.WriteRegister(RegIER, 0))
	errs.Add(c.Close())
	return errs.Aggregate()
}

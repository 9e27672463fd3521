package env

import (
	"errors"
	"fmt"
	"log"

	"github.com/golang/glog"

	"github.com/robotalks/ccdr.go/pkg/acq"
	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/bridge/i2cbus"
	"github.com/robotalks/ccdr.go/pkg/capture"
	fx "github.com/robotalks/ccdr.go/pkg/framework"
	"github.com/robotalks/ccdr.go/pkg/gpio"
	"github.com/robotalks/ccdr.go/pkg/gpio/periph"
	"github.com/robotalks/ccdr.go/pkg/telemetry"
	"github.com/robotalks/ccdr.go/pkg/watchdog"
)

// Pins is the GPIO controller of a capture.
type Pins interface {
	gpio.EdgeSource
	gpio.Output
}

// Capture is a configured chip with its session, log and telemetry.
type Capture struct {
	Session   *acq.Session
	Log       *capture.Writer
	Publisher *telemetry.Publisher

	transport telemetry.Transport
}

// NewCapture opens the host GPIO and I2C bus and configures the chip.
func (c *Config) NewCapture() (*Capture, error) {
	p, err := c.Profile()
	if err != nil {
		return nil, err
	}
	pins, err := periph.New()
	if err != nil {
		return nil, err
	}
	bus, err := i2cbus.Open(c.I2CBus, p.I2CAddr)
	if err != nil {
		return nil, err
	}
	capt, err := c.NewCaptureWith(bus, pins, watchdog.New())
	if err != nil {
		bus.Close()
		return nil, err
	}
	return capt, nil
}

// MustNewCapture creates Capture and fails on error.
func (c *Config) MustNewCapture() *Capture {
	capt, err := c.NewCapture()
	if err != nil {
		glog.Flush()
		log.Fatalln(err)
	}
	return capt
}

// NewCaptureWith configures the chip on bus. The bus is not closed on error.
func (c *Config) NewCaptureWith(bus bridge.Bus, pins Pins, wd acq.Watchdog) (*Capture, error) {
	p, err := c.Profile()
	if err != nil {
		return nil, err
	}
	bconf, err := c.BridgeConfig()
	if err != nil {
		return nil, err
	}
	sconf, err := c.SessionConfig()
	if err != nil {
		return nil, err
	}
	// release reset (active low) and enable the board.
	if p.ResetPin != NoPin {
		if err := pins.Drive(p.ResetPin, true); err != nil {
			return nil, fmt.Errorf("reset pin: %w", err)
		}
	}
	if p.EnablePin != NoPin {
		if err := pins.Drive(p.EnablePin, true); err != nil {
			return nil, fmt.Errorf("enable pin: %w", err)
		}
	}
	chip := bridge.NewChip(bus, p.XtalFreq)
	if err := chip.Configure(bconf); err != nil {
		return nil, fmt.Errorf("configure %s: %w", c.Chip, err)
	}

	capt := &Capture{}
	if capt.Log, err = capture.Create(c.Output); err != nil {
		return nil, err
	}
	capt.Session = acq.NewSession(chip, pins, wd, nil)
	capt.Session.Config = sconf
	if c.TelemetryURL != "" {
		if capt.transport, err = telemetry.Dial(c.TelemetryURL, c.StationID()); err != nil {
			capt.Log.Close()
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		capt.Publisher = telemetry.NewPublisher(capt.transport, c.StationID())
	}
	glog.Infof("%s: capturing to %s", c.Chip, c.Output)
	return capt, nil
}

// AddToLoop implements framework.LoopAdder.
func (c *Capture) AddToLoop(l *fx.Loop) {
	l.Add(c.Session, &acq.LogController{Writer: c.Log, Chip: c.Session.Config.Name})
	if c.Publisher != nil {
		l.Add(c.Publisher)
	}
}

// Finish closes the capture after the loop stopped with err. After a
// forced exit the session may still use the bus, so nothing is closed
// and err is returned as is.
func (c *Capture) Finish(err error) error {
	if errors.Is(err, fx.ErrForcedExit) {
		return err
	}
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close shuts the chip down and closes the log and telemetry.
// Call it after the loop stopped.
func (c *Capture) Close() error {
	var errs fx.AggregatedError
	errs.Add(c.Session.Close(), c.Log.Close())
	if c.transport != nil {
		errs.Add(c.transport.Close())
	}
	return errs.Aggregate()
}

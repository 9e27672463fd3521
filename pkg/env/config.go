// Package env holds the configuration of capture tools.
package env

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robotalks/ccdr.go/pkg/acq"
	"github.com/robotalks/ccdr.go/pkg/bridge"
)

// DefaultDuration matches the 0x35A4E900 microsecond session limit.
const DefaultDuration = 900 * time.Second

// Config provides the options of a capture session.
type Config struct {
	Chip ChipID
	// I2CBus names the I2C adapter, empty for the first one.
	I2CBus string
	// I2CAddr, IRQPin, Xtal and Baud override the chip profile when non-zero.
	I2CAddr   uint
	IRQPin    int
	Xtal      uint
	Baud      uint
	Prescaler int
	RxTrigger int

	Output   string
	Duration time.Duration
	Watchdog time.Duration

	// TelemetryURL selects where records are published, e.g.
	// mqtt://host:port/ccdr/, ws://host/path or file:///path.
	TelemetryURL string
	// Station identifies this capture station in telemetry topics.
	Station string
}

var defaultConfig = Config{
	Chip:      ChipPLP,
	Prescaler: 1,
	RxTrigger: 56,
	Output:    "data.txt",
	Duration:  DefaultDuration,
	Watchdog:  acq.DefaultWatchdogTimeout,
}

func init() {
	if val := os.Getenv("CCDR_TELEMETRY_URL"); val != "" {
		defaultConfig.TelemetryURL = val
	}
	if val := os.Getenv("CCDR_I2C_BUS"); val != "" {
		defaultConfig.I2CBus = val
	}
	if val := os.Getenv("CCDR_CHIP"); val != "" {
		if id, err := ParseChipID(val); err == nil {
			defaultConfig.Chip = id
		}
	}
	defaultConfig.Station = os.Getenv("CCDR_STATION")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Var(&defaultConfig.Chip, "chip", "Chip to capture from: WTC, PLP or UNK")
	flag.StringVar(&defaultConfig.I2CBus, "i2c", defaultConfig.I2CBus, "I2C bus name")
	flag.UintVar(&defaultConfig.I2CAddr, "addr", defaultConfig.I2CAddr, "I2C address, overrides chip profile")
	flag.IntVar(&defaultConfig.IRQPin, "irq", defaultConfig.IRQPin, "IRQ GPIO (BCM), overrides chip profile")
	flag.UintVar(&defaultConfig.Xtal, "xtal", defaultConfig.Xtal, "Crystal frequency in Hz, overrides chip profile")
	flag.UintVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "UART baud rate, overrides chip profile")
	flag.IntVar(&defaultConfig.Prescaler, "prescaler", defaultConfig.Prescaler, "Clock prescaler, 1 or 4")
	flag.IntVar(&defaultConfig.RxTrigger, "rx-trigger", defaultConfig.RxTrigger, "RX FIFO trigger level: 8, 16, 56 or 60")
	flag.StringVar(&defaultConfig.Output, "o", defaultConfig.Output, "Capture log file")
	flag.DurationVar(&defaultConfig.Duration, "duration", defaultConfig.Duration, "Session length, 0 for no limit")
	flag.DurationVar(&defaultConfig.Watchdog, "watchdog", defaultConfig.Watchdog, "Interrupt watchdog timeout")
	flag.StringVar(&defaultConfig.TelemetryURL, "telemetry", defaultConfig.TelemetryURL, "Telemetry URL")
	flag.StringVar(&defaultConfig.Station, "station", defaultConfig.Station, "Station ID, defaults to machine ID")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Profile returns the chip profile with overrides applied.
func (c *Config) Profile() (Profile, error) {
	p, ok := c.Chip.Profile()
	if c.I2CAddr != 0 {
		p.I2CAddr = uint16(c.I2CAddr)
	}
	if c.IRQPin != 0 {
		p.IRQPin = c.IRQPin
	}
	if c.Xtal != 0 {
		p.XtalFreq = uint32(c.Xtal)
	}
	if c.Baud != 0 {
		p.Baud = uint32(c.Baud)
	}
	if !ok && (p.I2CAddr == 0 || p.IRQPin == 0 || p.XtalFreq == 0 || p.Baud == 0) {
		return p, fmt.Errorf("chip %s requires addr, irq, xtal and baud", c.Chip)
	}
	return p, nil
}

// BridgeConfig builds the UART setup of the chip.
func (c *Config) BridgeConfig() (bridge.Config, error) {
	p, err := c.Profile()
	if err != nil {
		return bridge.Config{}, err
	}
	trigger, err := bridge.TriggerLevelOf(c.RxTrigger)
	if err != nil {
		return bridge.Config{}, err
	}
	conf := bridge.DefaultConfig()
	conf.XtalFreq = p.XtalFreq
	conf.Baud = p.Baud
	conf.Prescaler = c.Prescaler
	conf.RxTrigger = trigger
	if _, err := bridge.Divisor(conf.XtalFreq, conf.Baud, conf.Prescaler); err != nil {
		return bridge.Config{}, err
	}
	return conf, nil
}

// SessionConfig builds the acquisition session config.
func (c *Config) SessionConfig() (acq.Config, error) {
	p, err := c.Profile()
	if err != nil {
		return acq.Config{}, err
	}
	trigger, err := bridge.TriggerLevelOf(c.RxTrigger)
	if err != nil {
		return acq.Config{}, err
	}
	return acq.Config{
		Name:            c.Chip.String(),
		IRQPin:          p.IRQPin,
		WatchdogTimeout: c.Watchdog,
		RxTrigger:       trigger,
		MaxBusErrors:    acq.DefaultMaxBusErrors,
		EventQueue:      acq.DefaultEventQueue,
	}, nil
}

// StationID returns Station or the machine ID.
func (c *Config) StationID() string {
	if c.Station != "" {
		return c.Station
	}
	return MachineID()
}

package sh

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/capture"
	"github.com/robotalks/ccdr.go/pkg/env"
)

var (
	// ErrNoChip is returned when a chip command runs without an open chip.
	ErrNoChip = errors.New("no chip opened")
	// ErrNoLog is returned when a log command runs without a loaded log.
	ErrNoLog = errors.New("no log loaded")
)

// BusOpener opens the bus of the chip described by the profile.
type BusOpener func(conf *env.Config, p env.Profile) (bridge.Bus, error)

// Workspace holds the state the shell commands work on: an open
// chip and a loaded capture log.
type Workspace struct {
	Config  *env.Config
	OpenBus BusOpener

	chip    *bridge.Chip
	logPath string
	entries []*capture.Entry
	events  []*capture.Entry
	report  *capture.Report
}

// Open opens and probes the configured chip.
func (w *Workspace) Open() error {
	p, err := w.Config.Profile()
	if err != nil {
		return err
	}
	if w.OpenBus == nil {
		return fmt.Errorf("no bus available")
	}
	bus, err := w.OpenBus(w.Config, p)
	if err != nil {
		return err
	}
	chip := bridge.NewChip(bus, p.XtalFreq)
	if err := chip.Probe(); err != nil {
		chip.Close()
		return err
	}
	w.CloseChip()
	w.chip = chip
	return nil
}

// Chip returns the open chip.
func (w *Workspace) Chip() (*bridge.Chip, error) {
	if w.chip == nil {
		return nil, ErrNoChip
	}
	return w.chip, nil
}

// CloseChip releases the open chip if any.
func (w *Workspace) CloseChip() error {
	if w.chip == nil {
		return nil
	}
	err := w.chip.Close()
	w.chip = nil
	return err
}

// ReadNamed reads a register by name, switching banks as needed.
func (w *Workspace) ReadNamed(name string) (bridge.Register, byte, error) {
	chip, err := w.Chip()
	if err != nil {
		return bridge.Register{}, 0, err
	}
	reg, ok := bridge.RegisterByName(name)
	if !ok {
		return reg, 0, fmt.Errorf("unknown register %q", name)
	}
	var val byte
	err = withBank(chip, reg.Bank, func() (err error) {
		val, err = chip.ReadRegister(reg)
		return
	})
	return reg, val, err
}

// WriteNamed writes a register by name and returns the read back value.
func (w *Workspace) WriteNamed(name string, val byte) (bridge.Register, byte, error) {
	chip, err := w.Chip()
	if err != nil {
		return bridge.Register{}, 0, err
	}
	reg, ok := bridge.RegisterByName(name)
	if !ok {
		return reg, 0, fmt.Errorf("unknown register %q", name)
	}
	var observed byte
	err = withBank(chip, reg.Bank, func() (err error) {
		_, observed, err = chip.WriteVerify(reg, val)
		return
	})
	return reg, observed, err
}

func withBank(chip *bridge.Chip, bank bridge.Bank, fn func() error) error {
	if bank == bridge.BankGeneral {
		return fn()
	}
	restore, err := chip.SelectBank(bank)
	if err != nil {
		return err
	}
	err = fn()
	if rerr := restore(); err == nil {
		err = rerr
	}
	return err
}

// Send transmits p on the UART.
func (w *Workspace) Send(p []byte) error {
	chip, err := w.Chip()
	if err != nil {
		return err
	}
	return chip.BlockWrite(bridge.RegTHR, p)
}

// Load reads and validates a capture log.
func (w *Workspace) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var entries, events []*capture.Entry
	v := capture.NewValidator()
	v.OnEvent = func(e *capture.Entry) { events = append(events, e) }
	rd := capture.NewReader(f)
	for {
		e, err := rd.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		entries = append(entries, e)
		v.Add(e)
	}
	w.logPath, w.entries, w.events, w.report = path, entries, events, v.Finish()
	return nil
}

// Log returns the loaded log.
func (w *Workspace) Log() (path string, entries []*capture.Entry, report *capture.Report, err error) {
	if w.report == nil {
		return "", nil, nil, ErrNoLog
	}
	return w.logPath, w.entries, w.report, nil
}

// Events returns the non-data records of the loaded log.
func (w *Workspace) Events() ([]*capture.Entry, error) {
	if w.report == nil {
		return nil, ErrNoLog
	}
	return w.events, nil
}

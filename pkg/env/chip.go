package env

import (
	"fmt"
	"strings"
)

// ChipID names a bridge chip on the board.
type ChipID int

// Chips.
const (
	ChipUNK ChipID = iota
	ChipWTC
	ChipPLP
)

// NoPin marks an absent control pin.
const NoPin = -1

// Profile is the wiring of a chip.
type Profile struct {
	I2CAddr  uint16
	IRQPin   int
	XtalFreq uint32
	Baud     uint32
	// ResetPin is active low, EnablePin active high.
	ResetPin  int
	EnablePin int
}

// String implements fmt.Stringer.
func (c ChipID) String() string {
	switch c {
	case ChipWTC:
		return "WTC"
	case ChipPLP:
		return "PLP"
	}
	return "UNK"
}

// Set implements flag.Value.
func (c *ChipID) Set(s string) error {
	id, err := ParseChipID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}

// ParseChipID parses a chip name, case insensitive.
func ParseChipID(s string) (ChipID, error) {
	switch strings.ToUpper(s) {
	case "WTC":
		return ChipWTC, nil
	case "PLP":
		return ChipPLP, nil
	case "UNK", "":
		return ChipUNK, nil
	}
	return ChipUNK, fmt.Errorf("unknown chip %q", s)
}

// Profile returns the wiring of the chip. UNK has no profile.
func (c ChipID) Profile() (Profile, bool) {
	switch c {
	case ChipWTC:
		return Profile{
			I2CAddr:   0x4c,
			IRQPin:    25,
			XtalFreq:  11059200,
			Baud:      115200,
			ResetPin:  NoPin,
			EnablePin: NoPin,
		}, true
	case ChipPLP:
		return Profile{
			I2CAddr:   0x4d,
			IRQPin:    11,
			XtalFreq:  1843200,
			Baud:      115200,
			ResetPin:  23,
			EnablePin: 27,
		}, true
	}
	return Profile{ResetPin: NoPin, EnablePin: NoPin}, false
}

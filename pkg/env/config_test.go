package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ccdr.go/pkg/bridge"
)

func TestParseChipID(t *testing.T) {
	for name, id := range map[string]ChipID{"wtc": ChipWTC, "PLP": ChipPLP, "unk": ChipUNK, "": ChipUNK} {
		got, err := ParseChipID(name)
		require.NoError(t, err)
		require.Equal(t, id, got)
	}
	_, err := ParseChipID("xyz")
	require.Error(t, err)

	var id ChipID
	require.NoError(t, id.Set("wtc"))
	require.Equal(t, "WTC", id.String())
}

func TestProfiles(t *testing.T) {
	p, ok := ChipWTC.Profile()
	require.True(t, ok)
	require.Equal(t, uint16(0x4c), p.I2CAddr)
	require.Equal(t, 25, p.IRQPin)
	require.Equal(t, uint32(11059200), p.XtalFreq)

	p, ok = ChipPLP.Profile()
	require.True(t, ok)
	require.Equal(t, uint16(0x4d), p.I2CAddr)
	require.Equal(t, 11, p.IRQPin)
	require.Equal(t, 23, p.ResetPin)

	_, ok = ChipUNK.Profile()
	require.False(t, ok)
}

func TestConfigDefaults(t *testing.T) {
	conf := NewConfig()
	conf.Chip = ChipPLP
	require.Equal(t, 900*time.Second, conf.Duration)
	require.Equal(t, time.Second, conf.Watchdog)

	bc, err := conf.BridgeConfig()
	require.NoError(t, err)
	require.Equal(t, uint32(1843200), bc.XtalFreq)
	require.Equal(t, uint32(115200), bc.Baud)
	require.Equal(t, bridge.RxTrigger56, bc.RxTrigger)

	sc, err := conf.SessionConfig()
	require.NoError(t, err)
	require.Equal(t, "PLP", sc.Name)
	require.Equal(t, 11, sc.IRQPin)
	require.Equal(t, time.Second, sc.WatchdogTimeout)
}

func TestConfigOverrides(t *testing.T) {
	conf := NewConfig()
	conf.Chip = ChipUNK
	_, err := conf.Profile()
	require.Error(t, err)

	conf.I2CAddr, conf.IRQPin, conf.Xtal, conf.Baud = 0x48, 4, 14745600, 9600
	p, err := conf.Profile()
	require.NoError(t, err)
	require.Equal(t, uint16(0x48), p.I2CAddr)
	require.Equal(t, NoPin, p.ResetPin)

	conf.RxTrigger = 12
	_, err = conf.BridgeConfig()
	require.Error(t, err)

	conf.RxTrigger, conf.Prescaler = 8, 3
	_, err = conf.BridgeConfig()
	require.Error(t, err)
}

func TestStationID(t *testing.T) {
	conf := NewConfig()
	conf.Station = "lab-1"
	require.Equal(t, "lab-1", conf.StationID())
	conf.Station = ""
	require.NotEmpty(t, conf.StationID())
}

package regs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/cli/sh"
)

var (
	// RegReadCmd reads registers by name.
	RegReadCmd = ishell.Cmd{
		Name:    "reg.read",
		Aliases: []string{"rr"},
		Help:    "NAME...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NAME required"))
				return
			}
			w := sh.WorkspaceFrom(c)
			for _, name := range c.Args {
				reg, val, err := w.ReadNamed(name)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%s = 0x%02X\n", reg, val)
			}
		},
	}

	// RegWriteCmd writes a register by name and reads it back.
	RegWriteCmd = ishell.Cmd{
		Name:    "reg.write",
		Aliases: []string{"rw"},
		Help:    "NAME VALUE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("NAME and VALUE required"))
				return
			}
			val, err := strconv.ParseUint(c.Args[1], 0, 8)
			if err != nil {
				c.Err(fmt.Errorf("Invalid VALUE: %v", err))
				return
			}
			reg, observed, err := sh.WorkspaceFrom(c).WriteNamed(c.Args[0], byte(val))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%s = 0x%02X (wrote 0x%02X)\n", reg, observed, val)
		},
	}

	// RegDumpCmd reads all general registers without side effects on FIFOs.
	RegDumpCmd = ishell.Cmd{
		Name:    "reg.dump",
		Aliases: []string{"rd"},
		Help:    "",
		Func: func(c *ishell.Context) {
			w := sh.WorkspaceFrom(c)
			for _, reg := range bridge.Registers {
				if reg.Bank != bridge.BankGeneral || reg == bridge.RegRHR || reg == bridge.RegTHR || reg == bridge.RegFCR {
					continue
				}
				_, val, err := w.ReadNamed(reg.Name)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%-10s 0x%02X\n", reg.Name, val)
			}
		},
	}

	// ProbeCmd runs the scratchpad test.
	ProbeCmd = ishell.Cmd{
		Name:    "probe",
		Aliases: []string{"p"},
		Help:    "",
		Func: func(c *ishell.Context) {
			chip, err := sh.WorkspaceFrom(c).Chip()
			if err != nil {
				c.Err(err)
				return
			}
			if err := chip.Probe(); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}

	// SendCmd transmits text on the UART.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT...",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TEXT required"))
				return
			}
			if err := sh.WorkspaceFrom(c).Send([]byte(strings.Join(c.Args, " "))); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	}
)

func init() {
	sh.AddCmds(
		&RegReadCmd,
		&RegWriteCmd,
		&RegDumpCmd,
		&ProbeCmd,
		&SendCmd,
	)
}

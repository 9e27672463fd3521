package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ccdr.go/pkg/bridge"
	"github.com/robotalks/ccdr.go/pkg/bridge/i2cbus"
	"github.com/robotalks/ccdr.go/pkg/env"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell     *ishell.Shell
	Workspace *Workspace
}

const (
	shellKey      = "$shell"
	defaultPrompt = "ccdr > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// OpenI2C opens the chip on the configured I2C bus.
func OpenI2C(conf *env.Config, p env.Profile) (bridge.Bus, error) {
	return i2cbus.Open(conf.I2CBus, p.I2CAddr)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:     ishell.New(),
		Workspace: &Workspace{Config: conf, OpenBus: OpenI2C},
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(defaultPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// WorkspaceFrom gets the Workspace from ishell context.
func WorkspaceFrom(c *ishell.Context) *Workspace {
	return ShellFrom(c).Workspace
}

// PrintJSON prints v as JSON if the shell outputs JSON.
func PrintJSON(c *ishell.Context, v interface{}) bool {
	if !ShellFrom(c).OutputJSON {
		return false
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return true
	}
	c.Println(string(out))
	return true
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Workspace.CloseChip()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd opens the configured chip.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "[WTC|PLP]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				if err := s.Workspace.Config.Chip.Set(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			if err := s.Workspace.Open(); err != nil {
				c.Err(err)
				return
			}
			s.Shell.SetPrompt(fmt.Sprintf("%s > ", s.Workspace.Config.Chip))
		},
	}

	// CloseCmd closes the open chip.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Workspace.CloseChip(); err != nil {
				c.Err(err)
			}
			s.Shell.SetPrompt(defaultPrompt)
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}

// Package all registers all shell commands.
package all

import (
	_ "github.com/robotalks/ccdr.go/pkg/cli/cmds/logs"
	_ "github.com/robotalks/ccdr.go/pkg/cli/cmds/regs"
)

package main

import (
	"github.com/robotalks/ccdr.go/pkg/cli/sh"
	"github.com/robotalks/ccdr.go/pkg/env"

	_ "github.com/robotalks/ccdr.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func main() {
	ctl := newApp()

	if err := ctl.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	ctl := cli.NewApp()
	ctl.Name = "dbftnode"
	ctl.Usage = "Reference driver for the dbft consensus Context"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, newKeyCommands()...)
	ctl.Commands = append(ctl.Commands, newCheckpointCommands()...)
	return ctl
}

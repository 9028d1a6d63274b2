package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"perpexecutor/cmd/monitor"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Perpexecutor CMD"
	app.Usage = "The perpexecutor command line interface"

	app.Commands = []cli.Command{
		monitorCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var monitorCMD = cli.Command{
	Name:        "monitor",
	Usage:       "run the PnL monitor",
	Action:      monitorAction,
	ArgsUsage:   "",
	Flags:       []cli.Flag{},
	Description: `Poll live PnL for the configured open position`,
}

func monitorAction(_ *cli.Context) error {
	logrus.Info("Starting PnL monitor CMD")
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return monitor.Run()
}

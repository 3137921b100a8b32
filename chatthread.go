package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/chatthread/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "chatthread",
		Usage:   "Reconstruct branching chat conversations and the thread to display",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default: ./chatthread.toml, ~/.chatthread.toml)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override general.log_level",
			},
		},
		Before: cmd.Setup,
		Commands: []*cli.Command{
			cmd.TreeCommand(),
			cmd.ThreadCommand(),
			cmd.LastAnswerCommand(),
			cmd.ImportCommand(),
			cmd.APICommand(),
			cmd.WorkerCommand(),
			cmd.TokenCommand(),
			cmd.ConfigCommand(),
			cmd.EnvCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

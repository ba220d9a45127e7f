// Package main provides the rollflow command, which runs dice-resolution
// workflows and prints their final state as JSON.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
)

func main() {
	// An interrupted workflow is marked cancelled and saved at the next action boundary.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cli.Command {
	return &cli.Command{
		Name:                  "rollflow",
		Usage:                 "Resolve dice formulas through configurable workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (empty uses defaults and environment)",
				Sources: cli.EnvVars("ROLLFLOW_CONFIG"),
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Seed for reproducible rolls (0 uses the configured source)",
			},
		},
		Commands: []*cli.Command{
			newRunCommand(),
			newResumeCommand(),
			newCancelCommand(),
			newTypesCommand(),
		},
	}
}

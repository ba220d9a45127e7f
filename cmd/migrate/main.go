// Package main provides the workflow_states schema migration runner.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/cory-johannsen/rollflow/internal/config"
	"github.com/cory-johannsen/rollflow/internal/storage/postgres"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply or roll back the workflow state schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "configs/dev.yaml",
				Sources: cli.EnvVars("ROLLFLOW_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "direction",
				Usage: "Migration direction: up or down",
				Value: string(postgres.Up),
			},
			&cli.IntFlag{
				Name:  "steps",
				Usage: "Number of steps (0 = all)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			start := time.Now()
			cfg, err := config.Load(command.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			dir := postgres.Direction(command.String("direction"))
			res, err := postgres.Migrate(cfg.Database.DSN(), dir, int(command.Int("steps")))
			if err != nil {
				return err
			}

			out := command.Root().Writer
			if !res.Changed {
				_, err = fmt.Fprintf(out, "no changes (version=%d dirty=%v) [%s]\n", res.Version, res.Dirty, time.Since(start))
				return err
			}
			_, err = fmt.Fprintf(out, "migrated %s to version=%d dirty=%v [%s]\n", dir, res.Version, res.Dirty, time.Since(start))
			return err
		},
	}
}

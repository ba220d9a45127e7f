package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/cory-johannsen/rollflow/internal/config"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
	"github.com/cory-johannsen/rollflow/internal/game/resolution"
	"github.com/cory-johannsen/rollflow/internal/observability"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// withApp loads configuration, wires an app, and runs fn against it.
func withApp(ctx context.Context, command *cli.Command, fn func(*app) error) error {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a, err := newApp(ctx, cfg, uint64(command.Int("seed")))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func newRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a workflow for one roll request",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "type",
				Aliases: []string{"t"},
				Usage:   "Workflow type (check, attack, damage, or a configured type)",
				Value:   "check",
			},
			&cli.StringFlag{
				Name:     "formula",
				Aliases:  []string{"f"},
				Usage:    "Dice formula, e.g. 1d20+5",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "category",
				Usage: "Category assigned to every term of the formula",
			},
			&cli.IntFlag{
				Name:  "target",
				Usage: "Target number a check must meet",
			},
			&cli.BoolFlag{
				Name:  "advantage",
				Usage: "Roll every die-bearing term twice and keep the better",
			},
			&cli.BoolFlag{
				Name:  "disadvantage",
				Usage: "Roll every die-bearing term twice and keep the worse",
			},
			&cli.BoolFlag{
				Name:  "min-die",
				Usage: "Apply the minimum-face table to every die",
			},
			&cli.BoolFlag{
				Name:  "crit",
				Usage: "Build the critical pool of the damage roll",
			},
			&cli.StringFlag{
				Name:  "extra-crit",
				Usage: "Extra term appended to the critical pool",
			},
			&cli.StringFlag{
				Name:  "damage",
				Usage: "Damage formula rolled by attack workflows on a hit",
			},
			&cli.StringFlag{
				Name:  "damage-category",
				Usage: "Category of untyped damage terms",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			req, err := requestFromFlags(command)
			if err != nil {
				return err
			}
			return withApp(ctx, command, func(a *app) error {
				st, err := a.engine.Start(ctx, command.String("type"), resolution.Seed(req))
				if err != nil {
					return err
				}
				return printState(command.Root().Writer, st)
			})
		},
	}
}

func newResumeCommand() *cli.Command {
	return &cli.Command{
		Name:      "resume",
		Usage:     "Continue a paused workflow from the configured store",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowID(command)
			if err != nil {
				return err
			}
			return withApp(ctx, command, func(a *app) error {
				st, err := a.engine.Resume(ctx, id)
				if err != nil {
					return err
				}
				return printState(command.Root().Writer, st)
			})
		},
	}
}

func newCancelCommand() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Mark a stored workflow cancelled",
		ArgsUsage: "<workflow-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowID(command)
			if err != nil {
				return err
			}
			return withApp(ctx, command, func(a *app) error {
				if err := a.engine.Cancel(ctx, id); err != nil {
					return err
				}
				observability.Component(a.logger, observability.ComponentCommand).
					Info("workflow cancelled", zap.String("workflow_id", id))
				return nil
			})
		},
	}
}

func newTypesCommand() *cli.Command {
	return &cli.Command{
		Name:  "types",
		Usage: "List registered workflow types and their actions",
		Action: func(ctx context.Context, command *cli.Command) error {
			return withApp(ctx, command, func(a *app) error {
				reg := a.engine.Registry()
				out := command.Root().Writer
				for _, typ := range reg.Types() {
					if _, err := fmt.Fprintf(out, "%s: %v\n", typ, reg.ActionNames(typ)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func workflowID(command *cli.Command) (string, error) {
	if command.Args().Len() != 1 {
		return "", errors.New("expected exactly one workflow id")
	}
	return command.Args().First(), nil
}

// requestFromFlags builds the roll request for the run command.
func requestFromFlags(command *cli.Command) (resolution.Request, error) {
	if command.Bool("advantage") && command.Bool("disadvantage") {
		return resolution.Request{}, errors.New("--advantage and --disadvantage are mutually exclusive")
	}

	kind := pool.Check
	if command.String("type") == "damage" {
		kind = pool.Damage
	}
	req := resolution.Request{
		Kind:           kind,
		Formula:        command.String("formula"),
		Category:       command.String("category"),
		UseMinDieFaces: command.Bool("min-die"),
	}
	switch {
	case command.Bool("advantage"):
		req.Advantage = pool.Advantage()
	case command.Bool("disadvantage"):
		req.Advantage = pool.Disadvantage()
	}
	if command.IsSet("target") {
		target := int64(command.Int("target"))
		req.Target = &target
	}

	damage := &req
	if f := command.String("damage"); f != "" {
		req.Damage = &resolution.Request{
			Kind:           pool.Damage,
			Formula:        f,
			UseMinDieFaces: req.UseMinDieFaces,
		}
		damage = req.Damage
	}
	if damage.Kind == pool.Damage {
		damage.WantCriticalPool = command.Bool("crit")
		damage.DefaultCategory = command.String("damage-category")
		if extra := command.String("extra-crit"); extra != "" {
			damage.ExtraCriticalTerm = &pool.Term{Formula: extra}
		}
	}

	if err := req.Validate(); err != nil {
		return resolution.Request{}, err
	}
	return req, nil
}

func printState(w io.Writer, st *workflow.State) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

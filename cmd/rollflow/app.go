package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rollflow/internal/config"
	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
	"github.com/cory-johannsen/rollflow/internal/game/resolution"
	"github.com/cory-johannsen/rollflow/internal/observability"
	"github.com/cory-johannsen/rollflow/internal/scripting"
	"github.com/cory-johannsen/rollflow/internal/storage/postgres"
	"github.com/cory-johannsen/rollflow/internal/storage/redis"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// app holds the wired engine and everything that must be released with it.
type app struct {
	logger  *zap.Logger
	engine  *workflow.Engine
	closers []func()
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires the engine described by cfg. seed overrides cfg.Engine.Seed when non-zero.
//
// Postcondition: Returns a ready app or a non-nil error; on error every
// acquired resource has been released.
func newApp(ctx context.Context, cfg config.Config, seed uint64) (_ *app, err error) {
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	a := &app{logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if seed == 0 {
		seed = cfg.Engine.Seed
	}
	src := dice.NewCryptoSource()
	if seed != 0 {
		src = dice.NewSeededSource(seed)
	}
	roller := dice.NewRoller(src, observability.Component(logger, observability.ComponentDice))
	engineCfg := cfg.Engine
	engineCfg.Seed = seed
	engineLog := observability.EngineLogger(logger, engineCfg)

	var cache *dice.FormulaCache
	if cfg.Engine.ParserCache {
		cache = dice.NewFormulaCache()
	}
	actions := resolution.New(dice.NewParser(cache), roller,
		resolution.WithEvaluator(pool.Evaluator{Concurrent: cfg.Engine.ConcurrentEvaluation}),
		resolution.WithMaxFace(cfg.Engine.MaxDieFace),
		resolution.WithLogger(engineLog),
	)

	var defs []workflow.Definition
	if cfg.Engine.Definitions != "" {
		if defs, err = workflow.LoadDefinitions(cfg.Engine.Definitions); err != nil {
			return nil, err
		}
	}

	var extra map[string]workflow.ActionFunc
	if cfg.Engine.ScriptsDir != "" {
		mgr := scripting.NewManager(roller, observability.Component(logger, observability.ComponentLua), cfg.Engine.InstructionLimit)
		a.closers = append(a.closers, mgr.Close)
		if err = mgr.LoadActions(cfg.Engine.ScriptsDir); err != nil {
			return nil, err
		}
		extra = mgr.Catalog()
	}

	reg := workflow.NewRegistry()
	if err = resolution.Register(reg, actions, defs, extra); err != nil {
		return nil, fmt.Errorf("registering workflows: %w", err)
	}

	store, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.engine = workflow.NewEngine(reg, workflow.WithStore(store), workflow.WithLogger(engineLog))
	engineLog.Debug("engine ready",
		zap.Strings("types", reg.Types()),
		zap.String("store", cfg.Store.Backend),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.Config) (workflow.Store, error) {
	log := observability.Component(a.logger, observability.ComponentStore)
	log.Debug("opening store", zap.String("backend", cfg.Store.Backend))
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return workflow.NewMemoryStore(), nil
	case config.BackendPostgres:
		p, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return postgres.NewWorkflowRepository(p.DB()), nil
	case config.BackendRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return redis.NewStore(client, cfg.Store.TTL), nil
	}
	return nil, errors.New("unknown store backend " + cfg.Store.Backend)
}

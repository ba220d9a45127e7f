// Package observability provides logger construction.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/rollflow/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
		zapCfg.ErrorOutputPaths = []string{cfg.Output}
	}
	zapCfg.InitialFields = map[string]any{"service": "rollflow"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// Component names for the loggers handed to each subsystem.
const (
	ComponentDice    = "dice"
	ComponentEngine  = "workflow"
	ComponentLua     = "lua"
	ComponentStore   = "store"
	ComponentCommand = "cli"
)

// Component returns a child of logger named for one subsystem.
//
// Precondition: logger must be non-nil.
func Component(logger *zap.Logger, name string) *zap.Logger {
	return logger.Named(name)
}

// EngineLogger returns the workflow engine's logger, tagged with the dice
// settings that make its log lines reproducible.
func EngineLogger(logger *zap.Logger, cfg config.EngineConfig) *zap.Logger {
	return Component(logger, ComponentEngine).With(
		zap.Uint32("max_die_face", cfg.MaxDieFace),
		zap.Bool("seeded", cfg.Seed != 0),
		zap.Bool("scripted", cfg.ScriptsDir != ""),
	)
}

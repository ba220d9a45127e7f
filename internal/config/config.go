// Package config provides Viper-based configuration loading for rollflow.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is the log sink: "stderr", "stdout", or a file path.
	Output string `mapstructure:"output"`
}

// EngineConfig holds dice and workflow engine settings.
type EngineConfig struct {
	// MaxDieFace is the primary die size used for natural-die and critical detection.
	MaxDieFace uint32 `mapstructure:"max_die_face"`
	// ParserCache enables the process-wide formula cache.
	ParserCache bool `mapstructure:"parser_cache"`
	// ConcurrentEvaluation evaluates pool terms in parallel.
	ConcurrentEvaluation bool `mapstructure:"concurrent_evaluation"`
	// Definitions is a workflow definitions YAML file. Empty uses the built-in definitions.
	Definitions string `mapstructure:"definitions"`
	// ScriptsDir holds Lua action scripts. Empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// InstructionLimit bounds Lua opcodes per script call. Zero uses the scripting default.
	InstructionLimit int `mapstructure:"instruction_limit"`
	// Seed makes dice rolls reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// StoreConfig selects where workflow state is persisted between actions.
type StoreConfig struct {
	// Backend is "memory", "postgres", or "redis".
	Backend string `mapstructure:"backend"`
	// TTL expires stored states in the redis backend. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Store    StoreConfig    `mapstructure:"store"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// Validate checks all configuration invariants. The database and redis
// sections are only checked when the store backend uses them.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStore(c.Store); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Store.Backend {
	case BackendPostgres:
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	case BackendRedis:
		if err := validateRedis(c.Redis); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.MaxDieFace < 1 || e.MaxDieFace > 10000 {
		errs = append(errs, fmt.Sprintf("engine.max_die_face must be 1-10000, got %d", e.MaxDieFace))
	}
	if e.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("engine.instruction_limit must be >= 0, got %d", e.InstructionLimit))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateStore(s StoreConfig) error {
	var errs []string
	validBackends := map[string]bool{BackendMemory: true, BackendPostgres: true, BackendRedis: true}
	if !validBackends[s.Backend] {
		errs = append(errs, fmt.Sprintf("store.backend must be one of [memory, postgres, redis], got %q", s.Backend))
	}
	if s.TTL < 0 {
		errs = append(errs, "store.ttl must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with ROLLFLOW_ prefix
	v.SetEnvPrefix("ROLLFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("engine.max_die_face", 20)
	v.SetDefault("engine.parser_cache", true)
	v.SetDefault("engine.concurrent_evaluation", false)
	v.SetDefault("engine.definitions", "")
	v.SetDefault("engine.scripts_dir", "")
	v.SetDefault("engine.instruction_limit", 0)
	v.SetDefault("engine.seed", 0)

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.ttl", "24h")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rollflow")
	v.SetDefault("database.password", "rollflow")
	v.SetDefault("database.name", "rollflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

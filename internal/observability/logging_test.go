package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/rollflow/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "trace", Format: "json"})
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(config.LoggingConfig{Level: level, Format: "json"})
		require.NoError(t, err, "level %q should be valid", level)
		assert.NotNil(t, logger)
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rollflow.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	logger.Info("workflow completed")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"msg":"workflow completed"`), line)
	assert.Contains(t, line, `"service":"rollflow"`)
}

func TestEngineLogger_TagsComponentAndSettings(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := EngineLogger(zap.New(core), config.EngineConfig{MaxDieFace: 12, Seed: 9})
	logger.Info("workflow started")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, ComponentEngine, entries[0].LoggerName)
	fields := entries[0].ContextMap()
	assert.Equal(t, uint32(12), fields["max_die_face"])
	assert.Equal(t, true, fields["seeded"])
	assert.Equal(t, false, fields["scripted"])
}

func TestComponent_NamesNest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Component(Component(zap.New(core), ComponentStore), "redis").Info("saved")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "store.redis", logs.All()[0].LoggerName)
}

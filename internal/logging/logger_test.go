package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devrev/organsim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "organsim.log")
	logger, err := New(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}, "cardiac")
	require.NoError(t, err)

	logger.Debug("reading generated")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "reading generated", entry["msg"])
	assert.Equal(t, "cardiac", entry["service"])
	assert.Contains(t, entry, "hostname")
}

func TestNew_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "organsim.log")
	logger, err := New(config.LoggingConfig{Level: "warn", Output: path}, "neural")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, zapcore.ErrorLevel, lvl)

	_, err = parseLevel("verbose")
	assert.Error(t, err)
}

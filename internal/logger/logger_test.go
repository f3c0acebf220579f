package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildLevels(t *testing.T) {
	info := build(Options{Stderr: true})
	assert.False(t, info.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, info.Core().Enabled(zapcore.InfoLevel))

	debug := build(Options{Debug: true, Stderr: true})
	assert.True(t, debug.Core().Enabled(zapcore.DebugLevel))
}

func TestBuildWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jgd.log")
	log := build(Options{File: path, Stderr: true})

	log.Info("Grid loaded", zap.String("name", "TKY2JGD"), zap.Int("nodes", 4))
	_ = log.Sync() // stderr may not support fsync

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, `"msg":"Grid loaded"`)
	assert.Contains(t, line, `"nodes":4`)
}

func TestGetInitializes(t *testing.T) {
	assert.NotNil(t, Get())
	assert.NotNil(t, Named("test"))
}

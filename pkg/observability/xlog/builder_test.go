package xlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Builder 测试
// ============================================================================

func TestBuilder_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger, level, cleanup, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)
	defer func() { assert.NoError(t, cleanup()) }()

	assert.Equal(t, slog.LevelInfo, level.Level())
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestBuilder_JSONWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, _, cleanup, err := New().
		SetOutput(&buf).
		SetFormat(" JSON ").
		SetLevelString("debug").
		SetAttrs(slog.String("service", "cache")).
		Build()
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("hello", "n", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "cache", rec["service"])
	assert.InDelta(t, 1, rec["n"], 0)
}

func TestBuilder_DynamicLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, level, cleanup, err := New().SetOutput(&buf).SetLevel(LevelError).Build()
	require.NoError(t, err)
	defer cleanup()

	logger.Warn("dropped")
	level.Set(slog.LevelWarn)
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestBuilder_AddSourceAndReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, _, cleanup, err := New().
		SetOutput(&buf).
		SetAddSource(true).
		SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "password" {
				return slog.String(a.Key, "***")
			}
			return a
		}).
		Build()
	require.NoError(t, err)
	defer cleanup()

	logger.Info("login", "password", "secret")
	out := buf.String()
	assert.Contains(t, out, "source=")
	assert.Contains(t, out, "password=***")
	assert.NotContains(t, out, "secret")
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *Builder
		want error
	}{
		{"unknown level", New().SetLevelString("loud"), ErrUnknownLevel},
		{"unknown format", New().SetFormat("xml"), ErrUnknownFormat},
		{"nil output", New().SetOutput(nil), ErrNilOutput},
		{"first error wins", New().SetFormat("xml").SetLevelString("loud"), ErrUnknownFormat},
		{"bad rotation", New().SetRotation(Rotation{}), ErrEmptyFilename},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, level, cleanup, err := tt.b.Build()
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, logger)
			assert.Nil(t, level)
			assert.Nil(t, cleanup)
		})
	}
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.log")
	logger, _, cleanup, err := New().SetRotation(Rotation{Filename: path}).Build()
	require.NoError(t, err)

	logger.Info("to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "cleanup is idempotent")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, level, cleanup, err := FromConfig(Config{
		Level:    LevelWarn,
		Format:   "json",
		Rotation: &Rotation{Filename: path, MaxBackups: 2},
	}).Build()
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, slog.LevelWarn, level.Level())
	logger.Warn("rotated")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"rotated"`)

	_, _, _, err = FromConfig(Config{Format: "yaml"}).Build()
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

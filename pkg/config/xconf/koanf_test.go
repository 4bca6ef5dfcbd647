package xconf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xkitcache/pkg/observability/xlog"
	"github.com/omeyang/xkitcache/pkg/storage/xlocal"
)

const sampleYAML = `
log:
  level: debug
  format: json
  rotation:
    filename: /tmp/xkitcache/cache.log
    max_backups: 3
caches:
  sessions:
    policy: lru
    guard: mutex
    capacity: 1000
    default_ttl: 5m
  tokens:
    policy: timed
    guard: optimistic
    default_ttl: 30s
    prune_interval: 10s
  off:
    policy: fifo
    disabled: true
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// =============================================================================
// Load 测试
// =============================================================================

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "cache.yaml", sampleYAML)
	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, f.Path())
	assert.Equal(t, FormatYAML, f.Format())
	assert.Equal(t, xlog.LevelDebug, f.Log.Level)
	assert.Equal(t, "json", f.Log.Format)
	require.NotNil(t, f.Log.Rotation)
	assert.Equal(t, "/tmp/xkitcache/cache.log", f.Log.Rotation.Filename)
	assert.Equal(t, 3, f.Log.Rotation.MaxBackups)

	assert.Equal(t, []string{"off", "sessions", "tokens"}, f.Names())
	assert.Equal(t, xlocal.Spec{
		Policy:     xlocal.PolicyLRU,
		Guard:      xlocal.GuardMutex,
		Capacity:   1000,
		DefaultTTL: 5 * time.Minute,
	}, f.Caches["sessions"])
	assert.Equal(t, xlocal.Spec{
		Policy:        xlocal.PolicyTimed,
		Guard:         xlocal.GuardOptimistic,
		DefaultTTL:    30 * time.Second,
		PruneInterval: 10 * time.Second,
	}, f.Caches["tokens"])
	assert.True(t, f.Caches["off"].Disabled)

	specs, err := f.Specs()
	require.NoError(t, err)
	assert.Len(t, specs, 3)
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "cache.json", `{
		"log": {"level": "warn"},
		"caches": {"users": {"policy": "lfu", "capacity": 64}}
	}`)
	f, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FormatJSON, f.Format())
	assert.Equal(t, xlog.LevelWarn, f.Log.Level)
	assert.Nil(t, f.Log.Rotation)
	assert.Equal(t, xlocal.PolicyLFU, f.Caches["users"].Policy)
	assert.Equal(t, xlocal.GuardRW, f.Caches["users"].Guard)
	assert.Equal(t, 64, f.Caches["users"].Capacity)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Load("cache.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	_, err = Load(writeConfig(t, "bad.yaml", "caches: [unclosed"))
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = Load(writeConfig(t, "policy.yaml", "caches:\n  a:\n    policy: arc\n"))
	assert.ErrorIs(t, err, ErrUnmarshalFailed)

	_, err = Load(writeConfig(t, "level.yaml", "log:\n  level: loud\n"))
	assert.ErrorIs(t, err, ErrUnmarshalFailed)
}

func TestLoadBytes(t *testing.T) {
	f, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, f.Caches)
	assert.Empty(t, f.Path())
	specs, err := f.Specs()
	require.NoError(t, err)
	assert.Empty(t, specs)

	_, err = LoadBytes(nil, "toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = LoadBytes([]byte("a: 1"), "toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

// =============================================================================
// Specs 测试
// =============================================================================

func TestFile_SpecsInvalid(t *testing.T) {
	f, err := LoadBytes([]byte(`
caches:
  good: {policy: fifo, capacity: 10}
  bad:  {policy: lru, guard: rw, capacity: 10}
`), FormatYAML)
	require.NoError(t, err)

	_, err = f.Specs()
	assert.ErrorIs(t, err, ErrInvalidCache)
	assert.ErrorIs(t, err, xlocal.ErrIncompatibleGuard)
	assert.Contains(t, err.Error(), `"bad"`)

	f, err = LoadBytes([]byte("caches:\n  neg: {capacity: -1}\n"), FormatYAML)
	require.NoError(t, err)
	_, err = f.Specs()
	assert.ErrorIs(t, err, xlocal.ErrInvalidCapacity)
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.yaml": FormatYAML,
		"a.YML":  FormatYAML,
		"a.json": FormatJSON,
	}
	for path, want := range tests {
		got, err := detectFormat(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := detectFormat("a")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

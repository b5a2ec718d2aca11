package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livestore/internal/record"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
store:
  dir: /tmp/ls
  copy_depth:
    person: 1
workers:
  size: 0
cache:
  pools:
    task.Handle: 64
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ls", cfg.Store.Dir)
	assert.Equal(t, 5000, cfg.Store.BusyTimeoutMS)
	assert.Equal(t, record.Unlimited, cfg.Store.DefaultCopyDepth)
	assert.Equal(t, 0, cfg.Workers.Size)
	assert.Equal(t, 5, cfg.Cache.DefaultCapacity)
	assert.Equal(t, map[string]int{"task.Handle": 64}, cfg.Cache.Pools)
	assert.Equal(t, "info", cfg.Log.Level)

	sc := cfg.StoreConfig()
	assert.Equal(t, 5*time.Second, sc.BusyTimeout)
	assert.Equal(t, 1, sc.CopyDepth["person"])
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		path string
	}{
		{"negative workers", "workers: {size: -1}", "workers.size"},
		{"bad level", "log: {level: loud}", "log.level"},
		{"bad format", "log: {format: xml}", "log.format"},
		{"zero capacity", "cache: {default_capacity: 0}", "cache.default_capacity"},
		{"empty dir", `store: {dir: ""}`, "store.dir"},
		{"bad copy depth", "store: {default_copy_depth: -2}", "store.default_copy_depth"},
		{"bad type name", "store: {copy_depth: {Person: 1}}", "copy_depth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.Contains(t, verr.Path, tt.path)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("store: ["))
	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "livestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {level: debug, format: json}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, "json", cfg.Log.Format)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCacheOptions(t *testing.T) {
	cfg := Default()
	cfg.Cache.Pools = map[string]int{"a": 10}
	assert.Len(t, cfg.CacheOptions(), 2)
}

package config_test

import (
	"os"
	"testing"

	"github.com/scrypster/mnemora/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	_ = os.Unsetenv("MNEMORA_STORE_ROOT")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "./data/memories", cfg.Store.RootDir)
	assert.Equal(t, 1000, cfg.Cache.LRUCapacity)
	assert.Equal(t, 0.85, cfg.Graph.Damping)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MNEMORA_STORE_ROOT", "/tmp/custom")
	t.Setenv("MNEMORA_LRU_CAPACITY", "42")
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.Store.RootDir)
	assert.Equal(t, 42, cfg.Cache.LRUCapacity)
}

func TestLoad_YAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/mnemora.yaml"
	require.NoError(t, os.WriteFile(path, []byte("store:\n  root_dir: /data/from-yaml\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/from-yaml", cfg.Store.RootDir)
}

func TestLoad_MissingYAMLFileIsNotAnError(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

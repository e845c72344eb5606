package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, runConfigName)
	want := RunConfig{
		StartTime:         1700000000,
		BaselineStartTime: 1700000010,
		BaselineEndTime:   1700000610,
		TestStartTime:     1700000610,
		TestEndTime:       1700001210,
		Args:              map[string]string{"output": "runs"},
	}
	require.NoError(t, saveRunConfig(path, want))

	got, err := loadRunConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadRunConfigLegacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), runConfigName)
	require.NoError(t, os.WriteFile(path, []byte(`{"starttime": 1700000000.5, "testendtime": 1700001200}`), 0644))

	cfg, err := loadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1700000000.5, cfg.StartTime)
	assert.Equal(t, 1700000000.5, baselineStart(cfg))
	assert.Equal(t, 1700001200.0, cfg.TestEndTime)
}

func TestLoadRunConfigMissing(t *testing.T) {
	cfg, err := loadRunConfig(filepath.Join(t.TempDir(), runConfigName))
	require.NoError(t, err)
	assert.Equal(t, RunConfig{}, cfg)

	cfg, err = loadRunConfig("")
	require.NoError(t, err)
	assert.Equal(t, RunConfig{}, cfg)
}

func TestLoadRunConfigBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), runConfigName)
	require.NoError(t, os.WriteFile(path, []byte(`{"starttime":`), 0644))

	_, err := loadRunConfig(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.BatteryCriticalPct)
	assert.Equal(t, 20.0, cfg.BatteryLowPct)
	assert.Equal(t, 20, cfg.MaxIterations)
	assert.Equal(t, 3, cfg.MaxConsecutiveFailures)
	assert.Equal(t, "memory", cfg.CheckpointDSN)
	assert.Equal(t, "qwen-plus", cfg.OracleModel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
oracle_model: qwen-max
battery_low_pct: 25
max_iterations: 10
checkpoint_dsn: /tmp/brain.db
thread_id: robot-1
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qwen-max", cfg.OracleModel)
	assert.Equal(t, 25.0, cfg.BatteryLowPct)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "/tmp/brain.db", cfg.CheckpointDSN)
	assert.Equal(t, "robot-1", cfg.ThreadID)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("ROBOTBRAIN_ORACLE_MODEL", "qwen-turbo")
	t.Setenv("ROBOTBRAIN_MAX_ITERATIONS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "qwen-turbo", cfg.OracleModel)
	assert.Equal(t, 7, cfg.MaxIterations)
}

func TestValidateThresholdOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("battery_critical_pct: 30\nbattery_low_pct: 20\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

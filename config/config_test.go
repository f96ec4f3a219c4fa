package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFillsEverySetting(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.Arena.SizeBytes, 0)
	assert.Greater(t, cfg.Registers.Count, 0)
	assert.Greater(t, cfg.Scheduler.TimeSliceInstructions, 0)
	assert.Equal(t, VMIDSequential, cfg.Scheduler.VMIDMode)
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := "arena:\n  size_bytes: 2048\nscheduler:\n  vm_id_mode: uuid\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Arena.SizeBytes)
	assert.Equal(t, VMIDUUID, cfg.Scheduler.VMIDMode)
	assert.Equal(t, Default().Registers.Count, cfg.Registers.Count)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

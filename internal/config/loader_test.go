package config_test

import (
	"testing"
	"time"

	"github.com/sourceplane/khiopsctl/internal/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	t.Run("Should return defaults without any source", func(t *testing.T) {
		cfg, err := config.NewLoader(afero.NewMemMapFs()).Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "MODL", cfg.Engine.Bin)
		assert.Equal(t, "MODL_Coclustering", cfg.Engine.CoclusteringBin)
		assert.Equal(t, "keep-on-failure", cfg.Temp.Cleanup)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("Should apply file, environment and overrides in order", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "khiopsctl.yaml", []byte(`
engine:
  bin: /opt/khiops/bin/MODL
  timeout: 90s
  version: "10.2.0"
temp:
  cleanup: always
`), 0o644))
		t.Setenv("KHIOPS_ENGINE_COCLUSTERING_BIN", "/opt/khiops/bin/MODL_Coclustering")
		t.Setenv("KHIOPS_TEMP_CLEANUP", "never")

		cfg, err := config.NewLoader(fs).Load("khiopsctl.yaml", map[string]any{"log.level": "debug"})
		require.NoError(t, err)
		assert.Equal(t, "/opt/khiops/bin/MODL", cfg.Engine.Bin)
		assert.Equal(t, "/opt/khiops/bin/MODL_Coclustering", cfg.Engine.CoclusteringBin)
		assert.Equal(t, 90*time.Second, cfg.Engine.Timeout)
		assert.Equal(t, "10.2.0", cfg.Engine.Version)
		assert.Equal(t, "never", cfg.Temp.Cleanup)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("Should reject an unknown cleanup policy", func(t *testing.T) {
		_, err := config.NewLoader(afero.NewMemMapFs()).Load("", map[string]any{"temp.cleanup": "sometimes"})
		assert.ErrorContains(t, err, "validation failed")
	})

	t.Run("Should reject a malformed engine version", func(t *testing.T) {
		_, err := config.NewLoader(afero.NewMemMapFs()).Load("", map[string]any{"engine.version": "ten"})
		assert.Error(t, err)
	})

	t.Run("Should fail on a missing config file", func(t *testing.T) {
		_, err := config.NewLoader(afero.NewMemMapFs()).Load("missing.yaml", nil)
		assert.ErrorContains(t, err, "missing.yaml")
	})
}

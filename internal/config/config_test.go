package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default("p-1")
	assert.Equal(t, "p-1", cfg.Project.ID)
	assert.True(t, cfg.Engine.SeedTemplates)
	assert.False(t, cfg.Engine.ResetProgressOnRestart)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
	require.NoError(t, cfg.Validate())
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := config.FromYAML([]byte("engine:\n  reset_progress_on_restart: true\nproject:\n  methodology: scrum\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Engine.ResetProgressOnRestart)
	assert.True(t, cfg.Engine.SeedTemplates)
	assert.Equal(t, "scrum", cfg.Project.Methodology)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	_, err := config.FromYAML([]byte("project:\n  methodology: prince2\n"))
	assert.Error(t, err)

	_, err = config.FromYAML([]byte("logging:\n  format: xml\n"))
	assert.Error(t, err)

	_, err = config.FromYAML([]byte("server:\n  base_path: v0\n"))
	assert.Error(t, err)

	_, err = config.FromYAML([]byte("engine: [\n"))
	assert.Error(t, err)
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.LoadOptional(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Engine.SeedTemplates)

	_, err = config.Load(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(config.Path(dir), []byte(config.GenerateDefault("demo")), 0o644))
	cfg, err = config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Project.ID)
}

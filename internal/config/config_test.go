package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/palautus/pkg/types"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, time.Second, cfg.Reconcile.PollInterval)
	assert.Equal(t, 60, cfg.Reconcile.MaxPollAttempts)
	assert.Equal(t, 1, cfg.Reconcile.MaxRestarts)
	assert.Equal(t, "restart", cfg.Reconcile.Directive)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.Equal(t, 5, cfg.Storage.MaxBackups)
	assert.NoError(t, cfg.Validate())

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Equal(t, types.AllKinds, kinds)
}

func TestLoadWith_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
reconcile:
  poll_interval: 250ms
  max_poll_attempts: 10
  directive: continue
  kinds: [volumes, instances]
diff:
  ignore_fields: [name]
storage:
  base_dir: ` + dir + `
output:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 250*time.Millisecond, cfg.Reconcile.PollInterval)
	assert.Equal(t, 10, cfg.Reconcile.MaxPollAttempts)
	assert.Equal(t, 1, cfg.Reconcile.MaxRestarts, "unset keys keep their default")
	assert.Equal(t, "continue", cfg.Reconcile.Directive)
	assert.Equal(t, []string{"name"}, cfg.Diff.IgnoreFields)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.HistoryPath())

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	assert.Equal(t, []types.Kind{types.KindInstances, types.KindVolumes}, kinds, "kinds follow reconcile order")
}

func TestLoadWith_EnvOverride(t *testing.T) {
	t.Setenv("PALAUTUS_LOGGING_LEVEL", "debug")
	t.Setenv("PALAUTUS_RECONCILE_MAX_RESTARTS", "3")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Reconcile.MaxRestarts)
}

func TestLoadWith_MissingExplicitFile(t *testing.T) {
	_, err := LoadWith(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad directive", func(c *Config) { c.Reconcile.Directive = "bogus" }},
		{"bad kind", func(c *Config) { c.Reconcile.Kinds = []string{"networks"} }},
		{"zero attempts", func(c *Config) { c.Reconcile.MaxPollAttempts = 0 }},
		{"negative interval", func(c *Config) { c.Reconcile.PollInterval = -time.Second }},
		{"negative restarts", func(c *Config) { c.Reconcile.MaxRestarts = -1 }},
		{"bad format", func(c *Config) { c.Output.Format = "xml" }},
		{"no storage", func(c *Config) { c.Storage.BaseDir = "" }},
		{"negative backups", func(c *Config) { c.Storage.MaxBackups = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.OpenStack.EnvFile = "~/openrc.env"
	require.NoError(t, cfg.ExpandPaths())

	assert.Equal(t, filepath.Join(home, ".palautus"), cfg.Storage.BaseDir)
	assert.Equal(t, filepath.Join(home, "openrc.env"), cfg.OpenStack.EnvFile)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteDefault(path))
	assert.Error(t, WriteDefault(path), "existing files are not overwritten")

	cfg, err := LoadWith(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Reconcile.PollInterval)
	assert.Equal(t, "restart", cfg.Reconcile.Directive)
}

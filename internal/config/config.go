package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/palautus/internal/rollback"
	"github.com/yairfalse/palautus/pkg/types"
)

// EnvPrefix is the prefix of environment overrides, e.g. PALAUTUS_LOGGING_LEVEL
const EnvPrefix = "PALAUTUS"

// Config represents the complete palautus configuration
type Config struct {
	Reconcile ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
	Diff      DiffConfig      `mapstructure:"diff" yaml:"diff"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	OpenStack OpenStackConfig `mapstructure:"openstack" yaml:"openstack"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// ReconcileConfig controls polling and the driver loop
type ReconcileConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" yaml:"max_poll_attempts"`
	MaxRestarts     int           `mapstructure:"max_restarts" yaml:"max_restarts"`
	Directive       string        `mapstructure:"directive" yaml:"directive"`
	Kinds           []string      `mapstructure:"kinds" yaml:"kinds"`
}

// DiffConfig contains diff options
type DiffConfig struct {
	IgnoreFields []string `mapstructure:"ignore_fields" yaml:"ignore_fields"`
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	BaseDir      string        `mapstructure:"base_dir" yaml:"base_dir"`
	Backups      bool          `mapstructure:"backups" yaml:"backups"`
	MaxBackups   int           `mapstructure:"max_backups" yaml:"max_backups"`
	BackupMaxAge time.Duration `mapstructure:"backup_max_age" yaml:"backup_max_age"`
	HistoryDB    string        `mapstructure:"history_db" yaml:"history_db"`
}

// OpenStackConfig selects the cloud. Credentials come from OS_* variables,
// optionally loaded from EnvFile first.
type OpenStackConfig struct {
	Region  string `mapstructure:"region" yaml:"region"`
	EnvFile string `mapstructure:"env_file" yaml:"env_file"`
}

// OutputConfig contains output formatting configuration
type OutputConfig struct {
	Format  string `mapstructure:"format" yaml:"format"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	kinds := make([]string, 0, len(types.AllKinds))
	for _, k := range types.AllKinds {
		kinds = append(kinds, string(k))
	}

	return &Config{
		Reconcile: ReconcileConfig{
			PollInterval:    time.Second,
			MaxPollAttempts: 60,
			MaxRestarts:     1,
			Directive:       strings.ToLower(string(rollback.Default)),
			Kinds:           kinds,
		},
		Diff: DiffConfig{
			IgnoreFields: []string{},
		},
		Storage: StorageConfig{
			BaseDir:      "~/.palautus",
			Backups:      true,
			MaxBackups:   5,
			BackupMaxAge: 30 * 24 * time.Hour,
		},
		Output: OutputConfig{
			Format: "table",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// SetDefaults registers every default with v so that env overrides and
// flags bound to v resolve against them
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("reconcile.poll_interval", d.Reconcile.PollInterval)
	v.SetDefault("reconcile.max_poll_attempts", d.Reconcile.MaxPollAttempts)
	v.SetDefault("reconcile.max_restarts", d.Reconcile.MaxRestarts)
	v.SetDefault("reconcile.directive", d.Reconcile.Directive)
	v.SetDefault("reconcile.kinds", d.Reconcile.Kinds)
	v.SetDefault("diff.ignore_fields", d.Diff.IgnoreFields)
	v.SetDefault("storage.base_dir", d.Storage.BaseDir)
	v.SetDefault("storage.backups", d.Storage.Backups)
	v.SetDefault("storage.max_backups", d.Storage.MaxBackups)
	v.SetDefault("storage.backup_max_age", d.Storage.BackupMaxAge)
	v.SetDefault("storage.history_db", "")
	v.SetDefault("openstack.region", "")
	v.SetDefault("openstack.env_file", "")
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.no_color", false)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// Load reads configuration into the global viper instance
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.GetViper(), cfgFile)
}

// LoadWith reads configuration from cfgFile, or from config.yaml in
// ~/.palautus and the working directory. A missing file is not an error.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".palautus"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.ExpandPaths(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage base dir is required")
	}
	if c.Reconcile.PollInterval < 0 {
		return fmt.Errorf("reconcile poll interval cannot be negative")
	}
	if c.Reconcile.MaxPollAttempts < 1 {
		return fmt.Errorf("reconcile max poll attempts must be at least 1")
	}
	if c.Storage.MaxBackups < 0 || c.Storage.BackupMaxAge < 0 {
		return fmt.Errorf("storage backup retention cannot be negative")
	}
	if c.Reconcile.MaxRestarts < 0 {
		return fmt.Errorf("reconcile max restarts cannot be negative")
	}
	if _, err := rollback.ParseDirective(c.Reconcile.Directive); err != nil {
		return err
	}
	if _, err := c.Kinds(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unsupported output format %q (use table, json or yaml)", c.Output.Format)
	}
	return nil
}

// Kinds returns the configured resource kinds in reconcile order
func (c *Config) Kinds() ([]types.Kind, error) {
	wanted := make(map[types.Kind]bool, len(c.Reconcile.Kinds))
	for _, name := range c.Reconcile.Kinds {
		kind, err := types.ParseKind(name)
		if err != nil {
			return nil, err
		}
		wanted[kind] = true
	}

	kinds := make([]types.Kind, 0, len(wanted))
	for _, k := range types.AllKinds {
		if wanted[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// HistoryPath returns the run history database, defaulting to <base_dir>/history.db
func (c *Config) HistoryPath() string {
	if c.Storage.HistoryDB != "" {
		return c.Storage.HistoryDB
	}
	return filepath.Join(c.Storage.BaseDir, "history.db")
}

// ExpandPaths expands home directory paths
func (c *Config) ExpandPaths() error {
	var err error
	c.Storage.BaseDir, err = expandPath(c.Storage.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to expand storage base dir: %w", err)
	}
	c.Storage.HistoryDB, err = expandPath(c.Storage.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to expand history db path: %w", err)
	}
	c.OpenStack.EnvFile, err = expandPath(c.OpenStack.EnvFile)
	if err != nil {
		return fmt.Errorf("failed to expand env file path: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration as YAML. An existing file is
// left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	header := []byte("# palautus configuration\n")
	if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path, err
	}

	if len(path) == 1 {
		return home, nil
	}

	return filepath.Join(home, path[1:]), nil
}

package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/internal/cloud/openstack"
	"github.com/yairfalse/palautus/internal/config"
	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/logger"
	"github.com/yairfalse/palautus/internal/output"
	"github.com/yairfalse/palautus/internal/storage"
	"github.com/yairfalse/palautus/pkg/types"
)

var (
	cfgFile string
	cfg     *config.Config
	log     logger.Logger = logger.NewNop()
)

// connectCloud opens the configured OpenStack cloud
var connectCloud = func(ctx context.Context, c *config.Config) (cloud.Set, error) {
	return openstack.Connect(ctx, openstack.Options{
		Region:  c.OpenStack.Region,
		EnvFile: c.OpenStack.EnvFile,
	})
}

// exitError ends the process with code without printing anything
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "palautus",
		Short: "Reconcile an OpenStack cloud back to a pre-migration snapshot",
		Long: `palautus captures snapshots of OpenStack resources and, after a failed
or partial migration, repairs the live cloud towards a baseline snapshot.

Every divergence is either fixed automatically (FIX) or reported for an
operator to resolve (CONFLICT).

  palautus snapshot create --name pre-migration   # capture a baseline
  palautus diff pre-migration                     # what drifted since
  palautus reconcile --baseline pre-migration     # repair the drift
  palautus report show latest                     # review the outcome`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				runVersion(cmd, []string{})
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.palautus/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.Flags().Bool("version", false, "show version information")

	// Bind flags to viper
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("output.no_color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command and exits with a code matching the error
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit exitError
	if stderrors.As(err, &exit) {
		os.Exit(exit.code)
	}
	palautuserrors.DisplayError(err)
	os.Exit(palautuserrors.GetExitCode(err))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return palautuserrors.ConfigError(err)
	}
	if err := cfg.Validate(); err != nil {
		return palautuserrors.ConfigError(err)
	}

	if cfg.Output.NoColor {
		color.NoColor = true
	}

	log = logger.NewLogrus(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

func openStorage() (*storage.LocalStorage, error) {
	store, err := storage.NewLocalStorage(storage.Config{
		BaseDir:      cfg.Storage.BaseDir,
		Backups:      cfg.Storage.Backups,
		MaxBackups:   cfg.Storage.MaxBackups,
		BackupMaxAge: cfg.Storage.BackupMaxAge,
	})
	if err != nil {
		return nil, palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot open snapshot storage").
			WithSolutions(fmt.Sprintf("Check that %s is writable", cfg.Storage.BaseDir))
	}
	return store, nil
}

func newFormatter() (*output.Formatter, error) {
	f, err := output.NewFormatter(cfg.Output.Format, cfg.Output.NoColor)
	if err != nil {
		return nil, palautuserrors.ConfigError(err)
	}
	return f, nil
}

func connect(ctx context.Context) (cloud.Set, error) {
	set, err := connectCloud(ctx, cfg)
	if err == nil {
		return set, nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "credentials"), strings.Contains(msg, "authenticate"), strings.Contains(msg, "env file"):
		return cloud.Set{}, palautuserrors.OpenStackAuthError(err)
	case strings.Contains(msg, "403"), strings.Contains(msg, "Forbidden"):
		return cloud.Set{}, palautuserrors.PermissionError(palautuserrors.ServiceKeystone, "the service catalog")
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"), strings.Contains(msg, "i/o timeout"):
		return cloud.Set{}, palautuserrors.NetworkError(palautuserrors.ServiceKeystone, authURL())
	case strings.Contains(msg, "compute"):
		return cloud.Set{}, palautuserrors.EndpointError(palautuserrors.ServiceNova, cfg.OpenStack.Region, err)
	case strings.Contains(msg, "block storage"):
		return cloud.Set{}, palautuserrors.EndpointError(palautuserrors.ServiceCinder, cfg.OpenStack.Region, err)
	case strings.Contains(msg, "image"):
		return cloud.Set{}, palautuserrors.EndpointError(palautuserrors.ServiceGlance, cfg.OpenStack.Region, err)
	case strings.Contains(msg, "identity"):
		return cloud.Set{}, palautuserrors.EndpointError(palautuserrors.ServiceKeystone, cfg.OpenStack.Region, err)
	case strings.Contains(msg, "network"):
		return cloud.Set{}, palautuserrors.EndpointError(palautuserrors.ServiceNeutron, cfg.OpenStack.Region, err)
	default:
		return cloud.Set{}, palautuserrors.Wrap(err, palautuserrors.ErrorTypeCloud, palautuserrors.ServiceKeystone, "Cannot connect to OpenStack")
	}
}

func authURL() string {
	if u := os.Getenv("OS_AUTH_URL"); u != "" {
		return u
	}
	return "the Keystone endpoint"
}

func loadSnapshot(store storage.Storage, ref string) (*types.Snapshot, error) {
	snap, err := store.LoadSnapshot(ref)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, palautuserrors.SnapshotNotFoundError(ref)
		}
		return nil, palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, fmt.Sprintf("Cannot load snapshot %q", ref))
	}
	return snap, nil
}

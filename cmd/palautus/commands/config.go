package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/palautus/internal/config"
	palautuserrors "github.com/yairfalse/palautus/internal/errors"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write or inspect the configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		// the file may not exist or be valid yet
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE:              runConfigInit,
	}
	initCmd.Flags().String("path", "", "where to write the file (default is $HOME/.palautus/config.yaml)")

	cmd.AddCommand(initCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot find home directory").
				WithSolutions("Pass --path explicitly")
		}
		path = filepath.Join(home, ".palautus", "config.yaml")
	}

	if err := config.WriteDefault(path); err != nil {
		return palautuserrors.ConfigError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	encoder := yaml.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(cfg)
}

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	BuiltBy   = "unknown"
)

// SetVersionInfo updates the version variables with build-time information
func SetVersionInfo(version, commit, buildTime, builtBy string) {
	if version != "" {
		Version = version
	}
	if commit != "" {
		Commit = commit
	}
	if buildTime != "" {
		BuildTime = buildTime
	}
	if builtBy != "" {
		BuiltBy = builtBy
	}
}

func newVersionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// version works without a config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run:               runVersion,
	}

	cmd.Flags().Bool("short", false, "show only version number")

	return cmd
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	if short, _ := cmd.Flags().GetBool("short"); short {
		fmt.Fprintln(out, Version)
		return
	}

	fmt.Fprintf(out, "palautus version %s\n", Version)
	fmt.Fprintf(out, "  commit: %s\n", Commit)
	fmt.Fprintf(out, "  built: %s\n", BuildTime)
	fmt.Fprintf(out, "  built by: %s\n", BuiltBy)
	fmt.Fprintf(out, "  go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

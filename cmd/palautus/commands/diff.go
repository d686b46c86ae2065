package commands

import (
	"github.com/spf13/cobra"

	"github.com/yairfalse/palautus/internal/differ"
	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/output"
	"github.com/yairfalse/palautus/internal/snapshot"
	"github.com/yairfalse/palautus/pkg/types"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <baseline> [current]",
		Short: "Show how the cloud diverged from a baseline (like 'git diff')",
		Long: `Compare a baseline snapshot with a second stored snapshot, or with the
live cloud when no second snapshot is given. Nothing is changed.

Exit codes: 0 = no divergences, 1 = divergences found.`,
		Example: `  # What drifted since the baseline
  palautus diff pre-migration

  # Compare two stored snapshots
  palautus diff pre-migration post-migration

  # Just list what changed (like git diff --name-only)
  palautus diff pre-migration --name-only

  # Silent mode for scripts
  palautus diff pre-migration --quiet || echo "drift detected"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runDiff,
	}

	cmd.Flags().Bool("name-only", false, "show only names of diverged resources")
	cmd.Flags().Bool("stat", false, "show per-kind statistics")
	cmd.Flags().BoolP("quiet", "q", false, "suppress all output, exit with status only")
	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	nameOnly, _ := cmd.Flags().GetBool("name-only")
	stat, _ := cmd.Flags().GetBool("stat")
	quiet, _ := cmd.Flags().GetBool("quiet")

	store, err := openStorage()
	if err != nil {
		return err
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	baseline, err := loadSnapshot(store, args[0])
	if err != nil {
		return err
	}

	var current *types.Snapshot
	if len(args) == 2 {
		current, err = loadSnapshot(store, args[1])
		if err != nil {
			return err
		}
	} else {
		kinds, err := cfg.Kinds()
		if err != nil {
			return palautuserrors.ConfigError(err)
		}
		kinds = intersectKinds(kinds, baseline.Kinds())

		baseline = scopeSnapshot(baseline, kinds)
		current, err = captureLive(cmd, kinds)
		if err != nil {
			return err
		}
	}

	changes := differ.NewEngine(differ.DiffOptions{IgnoreFields: cfg.Diff.IgnoreFields}).DiffSnapshots(baseline, current)

	if !quiet {
		out := cmd.OutOrStdout()
		unix := output.NewUnixFormatter(!formatter.ColorEnabled(out))
		switch {
		case nameOnly:
			_, err = out.Write(unix.FormatNameOnly(changes))
		case stat:
			_, err = out.Write(unix.FormatStat(changes))
		default:
			err = formatter.Diff(out, changes)
		}
		if err != nil {
			return err
		}
	}

	if len(changes) > 0 {
		return exitError{code: 1}
	}
	return nil
}

// intersectKinds keeps the kinds of want that are also in have, in want's order
func intersectKinds(want, have []types.Kind) []types.Kind {
	present := make(map[types.Kind]bool, len(have))
	for _, k := range have {
		present[k] = true
	}
	out := make([]types.Kind, 0, len(want))
	for _, k := range want {
		if present[k] {
			out = append(out, k)
		}
	}
	return out
}

// scopeSnapshot returns a copy of snap holding only kinds
func scopeSnapshot(snap *types.Snapshot, kinds []types.Kind) *types.Snapshot {
	scoped := types.NewSnapshot(snap.ID, snap.Timestamp)
	scoped.Name = snap.Name
	for _, kind := range kinds {
		scoped.Resources[kind] = snap.Records(kind)
	}
	return scoped
}

// captureLive snapshots the live cloud for kinds. No kinds yields an empty snapshot.
func captureLive(cmd *cobra.Command, kinds []types.Kind) (*types.Snapshot, error) {
	if len(kinds) == 0 {
		return types.NewSnapshot("", snapshot.Clock()), nil
	}
	set, err := connect(cmd.Context())
	if err != nil {
		return nil, err
	}
	current, err := snapshot.CaptureAll(cmd.Context(), set, kinds...)
	if err != nil {
		return nil, palautuserrors.Wrap(err, palautuserrors.ErrorTypeCloud, palautuserrors.ServiceLocal, "Cannot capture the live state")
	}
	return current, nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/output"
	"github.com/yairfalse/palautus/internal/snapshot"
	"github.com/yairfalse/palautus/internal/storage"
	"github.com/yairfalse/palautus/pkg/types"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture and manage snapshots of the cloud",
		Long: `Capture the live state of the cloud and manage stored snapshots.

A snapshot taken before a migration is the baseline that reconcile
repairs the cloud towards.`,
		Example: `  # Capture a baseline before migrating
  palautus snapshot create --name pre-migration

  # Capture only compute and block storage
  palautus snapshot create --kinds instances,volumes

  # List and inspect stored snapshots
  palautus snapshot list
  palautus snapshot show pre-migration`,
	}

	cmd.AddCommand(newSnapshotCreateCommand())
	cmd.AddCommand(newSnapshotListCommand())
	cmd.AddCommand(newSnapshotShowCommand())
	cmd.AddCommand(newSnapshotDeleteCommand())
	return cmd
}

func newSnapshotCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Capture the live cloud into a new snapshot",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotCreate,
	}
	cmd.Flags().String("name", "", "name to find the snapshot by later")
	cmd.Flags().StringSlice("kinds", nil, "resource kinds to capture (default: reconcile.kinds)")
	return cmd
}

func newSnapshotListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE:  runSnapshotList,
	}
}

func newSnapshotShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [snapshot]",
		Short: "Show a stored snapshot by id or name (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSnapshotShow,
	}
}

func newSnapshotDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot>",
		Short: "Delete a stored snapshot by id or name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotDelete,
	}
}

func runSnapshotCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	kinds, err := kindsFlag(cmd)
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}
	set, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	spinner := output.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Capturing %d resource kinds", len(kinds)), cfg.Output.NoColor)
	spinner.Start()
	snap, err := snapshot.CaptureAll(cmd.Context(), set, kinds...)
	spinner.Stop()
	if err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeCloud, palautuserrors.ServiceLocal, "Snapshot capture failed")
	}
	snap.Name = name

	if err := store.SaveSnapshot(snap); err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot save snapshot")
	}
	log.WithFields(map[string]interface{}{
		"snapshot":  snap.ID,
		"resources": snap.ResourceCount(),
	}).Info("snapshot saved")

	if formatter.Format() != output.FormatTable {
		return formatter.Snapshot(cmd.OutOrStdout(), snap)
	}
	label := snap.ID
	if snap.Name != "" {
		label = fmt.Sprintf("%s (%s)", snap.Name, snap.ID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s saved: %d resources\n", label, snap.ResourceCount())
	return nil
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	snapshots, err := store.ListSnapshots()
	if err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot list snapshots")
	}
	return formatter.SnapshotList(cmd.OutOrStdout(), snapshots)
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	ref := storage.Latest
	if len(args) == 1 {
		ref = args[0]
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	snap, err := loadSnapshot(store, ref)
	if err != nil {
		return err
	}
	return formatter.Snapshot(cmd.OutOrStdout(), snap)
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}

	snap, err := loadSnapshot(store, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteSnapshot(snap.ID); err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot delete snapshot")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", snap.ID)
	return nil
}

// kindsFlag resolves --kinds, falling back to reconcile.kinds
func kindsFlag(cmd *cobra.Command) ([]types.Kind, error) {
	names, _ := cmd.Flags().GetStringSlice("kinds")
	if len(names) == 0 {
		return cfg.Kinds()
	}

	wanted := make(map[types.Kind]bool, len(names))
	for _, name := range names {
		kind, err := types.ParseKind(name)
		if err != nil {
			return nil, palautuserrors.Wrap(err, palautuserrors.ErrorTypeValidation, palautuserrors.ServiceLocal, "Invalid --kinds value").
				WithSolutions(fmt.Sprintf("Use any of: %v", types.AllKinds))
		}
		wanted[kind] = true
	}

	kinds := make([]types.Kind, 0, len(wanted))
	for _, kind := range types.AllKinds {
		if wanted[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds, nil
}

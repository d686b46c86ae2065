package commands

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/storage"
)

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Review stored reconciliation reports",
		Example: `  palautus report list
  palautus report show latest
  palautus report show 6f1c... --output yaml`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE:  runReportList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show [report]",
		Short: "Show a report by id (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReportShow,
	})
	return cmd
}

func runReportList(cmd *cobra.Command, args []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	reports, err := store.ListReports()
	if err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot list reports")
	}
	return formatter.ReportList(cmd.OutOrStdout(), reports)
}

func runReportShow(cmd *cobra.Command, args []string) error {
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

	report, err := store.LoadReport(ref)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return palautuserrors.ReportNotFoundError(ref)
		}
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, fmt.Sprintf("Cannot load report %q", ref))
	}
	return formatter.Report(cmd.OutOrStdout(), report)
}

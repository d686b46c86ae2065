package commands

import (
	"github.com/spf13/cobra"

	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/storage"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past reconciliation runs",
		Long: `List past reconciliation runs from the run history database,
newest first. Each run links to the report it produced.`,
		Example: `  palautus history
  palautus history --limit 5 --output json`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}

	cmd.Flags().IntP("limit", "l", 20, "limit number of runs shown (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	formatter, err := newFormatter()
	if err != nil {
		return err
	}

	history, err := storage.OpenHistory(cmd.Context(), cfg.HistoryPath())
	if err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot open run history").
			WithSolutions("Check storage.history_db in your configuration")
	}
	defer history.Close()

	runs, err := history.List(cmd.Context(), limit)
	if err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot read run history")
	}
	return formatter.History(cmd.OutOrStdout(), runs)
}

package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/palautus/internal/differ"
	"github.com/yairfalse/palautus/internal/engine"
	palautuserrors "github.com/yairfalse/palautus/internal/errors"
	"github.com/yairfalse/palautus/internal/output"
	"github.com/yairfalse/palautus/internal/reconciler"
	"github.com/yairfalse/palautus/internal/rollback"
	"github.com/yairfalse/palautus/internal/storage"
)

func newReconcileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the live cloud towards a baseline snapshot",
		Long: `Capture the live cloud, diff it against a baseline and repair every
divergence that can be repaired safely. The rest are reported as conflicts.

When a repair fails the rollback directive decides what happens next:
  continue  keep going with the next resource
  skip      skip the remaining resources of the failing kind
  restart   recapture and start over (bounded by reconcile.max_restarts)
  abort     stop and keep the partial report

Exit codes: 0 = everything fixed, 2 = conflicts remain, 75 = aborted.`,
		Example: `  # Repair towards the most recent snapshot
  palautus reconcile

  # Repair towards a named baseline, continuing past failures
  palautus reconcile --baseline pre-migration --directive continue

  # Only reconcile volumes and instances
  palautus reconcile --baseline pre-migration --kinds instances,volumes`,
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}

	cmd.Flags().StringP("baseline", "b", storage.Latest, "baseline snapshot id or name")
	cmd.Flags().StringP("directive", "d", "", "rollback directive (continue, abort, skip, restart; default: reconcile.directive)")
	cmd.Flags().StringSlice("kinds", nil, "resource kinds to reconcile (default: reconcile.kinds)")
	cmd.Flags().Int("max-restarts", -1, "override reconcile.max_restarts")
	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	baselineRef, _ := cmd.Flags().GetString("baseline")
	directiveFlag, _ := cmd.Flags().GetString("directive")
	maxRestarts, _ := cmd.Flags().GetInt("max-restarts")

	if directiveFlag == "" {
		directiveFlag = cfg.Reconcile.Directive
	}
	directive, err := rollback.ParseDirective(directiveFlag)
	if err != nil {
		return palautuserrors.DirectiveError(err, directiveNames())
	}
	if maxRestarts < 0 {
		maxRestarts = cfg.Reconcile.MaxRestarts
	}
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
	baseline, err := loadSnapshot(store, baselineRef)
	if err != nil {
		return err
	}
	set, err := connect(cmd.Context())
	if err != nil {
		return err
	}

	eng := engine.New(set, engine.Options{
		Kinds:       kinds,
		MaxRestarts: maxRestarts,
		Diff:        differ.DiffOptions{IgnoreFields: cfg.Diff.IgnoreFields},
		Reconcile: reconciler.Options{
			PollInterval:    cfg.Reconcile.PollInterval,
			MaxPollAttempts: cfg.Reconcile.MaxPollAttempts,
		},
		Logger: log,
	})

	spinner := output.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Reconciling towards %s", baseline.ID), cfg.Output.NoColor)
	spinner.Start()
	result, runErr := eng.Run(cmd.Context(), baseline, directive)
	spinner.Stop()

	if result == nil {
		return palautuserrors.Wrap(runErr, palautuserrors.ErrorTypeValidation, palautuserrors.ServiceLocal, "Reconciliation could not start")
	}

	if err := store.SaveReport(result.Report); err != nil {
		return palautuserrors.Wrap(err, palautuserrors.ErrorTypeFileSystem, palautuserrors.ServiceLocal, "Cannot save reconciliation report")
	}
	recordHistory(cmd.Context(), result)

	if err := formatter.Run(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	switch {
	case runErr != nil && stderrors.Is(runErr, engine.ErrAborted):
		return palautuserrors.AbortedError(runErr, result.Report.ID)
	case runErr != nil:
		return palautuserrors.Wrap(runErr, palautuserrors.ErrorTypeCloud, palautuserrors.ServiceLocal, "Reconciliation failed").
			WithSolutions(fmt.Sprintf("The partial report was saved as %s", result.Report.ID))
	case result.Report.HasConflicts():
		return palautuserrors.ConflictsError(result.Report.Totals().Conflicts, result.Report.ID)
	}
	return nil
}

// recordHistory indexes the run. A broken history database never fails the run.
func recordHistory(ctx context.Context, result *engine.Result) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	history, err := storage.OpenHistory(ctx, cfg.HistoryPath())
	if err != nil {
		log.Warn(fmt.Sprintf("run history unavailable: %v", err))
		return
	}
	defer history.Close()

	totals := result.Report.Totals()
	record := storage.RunRecord{
		RunID:      result.RunID,
		BaselineID: result.Baseline.ID,
		ReportID:   result.Report.ID,
		Directive:  result.Directive.String(),
		Fixes:      totals.Fixes,
		Conflicts:  totals.Conflicts,
		Failures:   len(result.Failures),
		Restarts:   result.Restarts,
		Aborted:    result.Aborted,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
	if err := history.Record(ctx, record); err != nil {
		log.Error("failed to record run history", err)
	}
}

func directiveNames() []string {
	return rollback.NewSelector().Known()
}

// Package engine drives a reconciliation run: capture the current state,
// diff it against a baseline, repair every divergence and consult the
// rollback selector whenever a repair fails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/internal/differ"
	"github.com/yairfalse/palautus/internal/logger"
	"github.com/yairfalse/palautus/internal/reconciler"
	"github.com/yairfalse/palautus/internal/rollback"
	"github.com/yairfalse/palautus/internal/snapshot"
	"github.com/yairfalse/palautus/pkg/types"
)

// ErrAborted is returned when the directive stops a run after a failure
var ErrAborted = errors.New("reconciliation aborted")

// DefaultMaxRestarts bounds RESTART recaptures per run
const DefaultMaxRestarts = 1

// Options configures an engine
type Options struct {
	// Kinds limits the run to these kinds; empty means every kind in the baseline
	Kinds       []types.Kind
	MaxRestarts int
	Diff        differ.DiffOptions
	Reconcile   reconciler.Options
	Logger      logger.Logger
}

// Failure is a repair that returned an error
type Failure struct {
	Kind       types.Kind `json:"kind" yaml:"kind"`
	ResourceID string     `json:"resource_id" yaml:"resource_id"`
	Err        error      `json:"-" yaml:"-"`
	Message    string     `json:"error" yaml:"error"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %s", f.Kind, f.ResourceID, f.Message)
}

// Result is the outcome of one run
type Result struct {
	RunID      string
	Directive  rollback.Directive
	Report     *types.Report
	Changes    map[types.Kind]map[string]types.ChangeRecord
	Failures   []Failure
	Restarts   int
	Aborted    bool
	Baseline   *types.Snapshot
	Current    *types.Snapshot
	StartedAt  time.Time
	FinishedAt time.Time
}

// Engine ties snapshot capture, diffing and reconcilers together
type Engine struct {
	set      cloud.Set
	registry *reconciler.Registry
	selector *rollback.Selector
	differ   *differ.Engine
	opts     Options
	log      logger.Logger
}

// New creates an engine for one cloud
func New(set cloud.Set, opts Options) *Engine {
	if opts.MaxRestarts < 0 {
		opts.MaxRestarts = 0
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Reconcile.Logger == nil {
		opts.Reconcile.Logger = log
	}

	return &Engine{
		set:      set,
		registry: reconciler.NewRegistry(set, opts.Reconcile),
		selector: rollback.NewSelector(),
		differ:   differ.NewEngine(opts.Diff),
		opts:     opts,
		log:      log,
	}
}

// Selector exposes the directive table so callers can install policies
func (e *Engine) Selector() *rollback.Selector {
	return e.selector
}

type decision int

const (
	proceed decision = iota
	skipKind
	restart
	abort
)

// Run reconciles the live cloud towards baseline. On abort the partial
// result is returned together with an error wrapping ErrAborted.
func (e *Engine) Run(ctx context.Context, baseline *types.Snapshot, directive rollback.Directive) (*Result, error) {
	if baseline == nil {
		return nil, fmt.Errorf("baseline snapshot is required")
	}
	directive, err := rollback.ParseDirective(string(directive))
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.log.WithFields(map[string]interface{}{
		"run_id":    runID,
		"baseline":  baseline.ID,
		"directive": directive.String(),
	})

	kinds := e.kinds(baseline)
	scoped := types.NewSnapshot(baseline.ID, baseline.Timestamp)
	scoped.Name = baseline.Name
	for _, kind := range kinds {
		scoped.Resources[kind] = baseline.Records(kind)
	}

	result := &Result{
		RunID:     runID,
		Directive: directive,
		Baseline:  baseline,
		StartedAt: time.Now().UTC(),
	}
	result.Report = types.NewReport(uuid.NewString(), result.StartedAt)
	result.Report.BaselineID = baseline.ID

	log.Info("starting reconciliation")

	for {
		current, err := e.capture(ctx, kinds)
		if err != nil {
			return e.finish(result), fmt.Errorf("failed to capture current state: %w", err)
		}
		result.Current = current
		result.Report.CurrentID = current.ID

		changes := e.differ.DiffSnapshots(scoped, current)
		if result.Changes == nil {
			result.Changes = changes
		}

		outcome, err := e.pass(ctx, log, result, kinds, changes)
		if err != nil {
			return e.finish(result), err
		}

		switch outcome {
		case restart:
			result.Restarts++
			log.WithField("restarts", result.Restarts).Warn("restarting reconciliation pass")
			continue
		case abort:
			result.Aborted = true
			last := result.Failures[len(result.Failures)-1]
			return e.finish(result), fmt.Errorf("%w: %s", ErrAborted, last.Error())
		}

		totals := result.Report.Totals()
		log.WithFields(map[string]interface{}{
			"fixes":     totals.Fixes,
			"conflicts": totals.Conflicts,
			"failures":  len(result.Failures),
		}).Info("reconciliation finished")
		return e.finish(result), nil
	}
}

// pass runs every reconciler once over changes
func (e *Engine) pass(ctx context.Context, log logger.Logger, result *Result, kinds []types.Kind, changes map[types.Kind]map[string]types.ChangeRecord) (decision, error) {
	for _, kind := range kinds {
		kindChanges := changes[kind]
		if len(kindChanges) == 0 {
			continue
		}

		klog := log.WithField("kind", string(kind))
		partial := types.NewReport(result.Report.ID, time.Now().UTC())
		rec, ok := e.registry.For(kind)

		outcome := proceed
		ids := differ.SortedIDs(kindChanges)
		for i, id := range ids {
			change := kindChanges[id]
			if !ok {
				partial.Add(types.NewConflict(kind, change, "%s %s: no reconciler configured for %s", kind, id, kind))
				continue
			}

			klog.WithField("resource_id", id).Debug(change.Describe())
			entry, err := rec.Fix(ctx, change)
			if err == nil {
				klog.WithFields(map[string]interface{}{
					"resource_id":    id,
					"classification": string(entry.Classification),
				}).Debug(entry.Explanation)
				partial.Add(entry)
				continue
			}

			if ctxErr := ctx.Err(); ctxErr != nil {
				result.Report.Union(partial, types.FieldTimestamp)
				return abort, ctxErr
			}

			result.Failures = append(result.Failures, Failure{Kind: kind, ResourceID: id, Err: err, Message: err.Error()})
			klog.WithField("resource_id", id).Error("repair failed", err)

			outcome, err = e.decide(result)
			if err != nil {
				return abort, err
			}
			if outcome == skipKind {
				for _, rest := range ids[i+1:] {
					partial.Add(types.NewConflict(kind, kindChanges[rest],
						"%s %s: not attempted; skipped after repair of %s failed", kind, rest, id))
				}
			}
			if outcome != proceed {
				break
			}
		}

		result.Report.Union(partial, types.FieldTimestamp)
		switch outcome {
		case restart, abort:
			return outcome, nil
		}
	}
	return proceed, nil
}

// decide consults the selector after a failure
func (e *Engine) decide(result *Result) (decision, error) {
	ok, err := e.selector.Select(result.Directive)
	if err != nil {
		return abort, err
	}
	if !ok {
		return abort, nil
	}

	switch result.Directive {
	case rollback.Continue:
		return proceed, nil
	case rollback.Skip:
		return skipKind, nil
	case rollback.Restart:
		if result.Restarts < e.opts.MaxRestarts {
			return restart, nil
		}
		return abort, nil
	default:
		return abort, nil
	}
}

// kinds returns the baseline kinds to reconcile in fixed order. A kind the
// baseline never captured is skipped, otherwise every live resource of it
// would look added.
func (e *Engine) kinds(baseline *types.Snapshot) []types.Kind {
	wanted := make(map[types.Kind]bool)
	for _, k := range baseline.Kinds() {
		wanted[k] = true
	}
	if len(e.opts.Kinds) > 0 {
		filter := make(map[types.Kind]bool, len(e.opts.Kinds))
		for _, k := range e.opts.Kinds {
			filter[k] = true
		}
		for k := range wanted {
			if !filter[k] {
				delete(wanted, k)
			}
		}
	}

	kinds := make([]types.Kind, 0, len(wanted))
	for _, k := range types.AllKinds {
		if wanted[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// capture snapshots the live state of kinds. CaptureAll treats no kinds as
// every kind, so an empty scope short-circuits here.
func (e *Engine) capture(ctx context.Context, kinds []types.Kind) (*types.Snapshot, error) {
	if len(kinds) == 0 {
		return types.NewSnapshot(uuid.NewString(), snapshot.Clock()), nil
	}
	return snapshot.CaptureAll(ctx, e.set, kinds...)
}

func (e *Engine) finish(result *Result) *Result {
	result.FinishedAt = time.Now().UTC()
	return result
}

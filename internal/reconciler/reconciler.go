// Package reconciler turns change records into repair actions against a live
// cloud and classifies each outcome as FIX or CONFLICT.
//
// Added resources are deleted, deleted resources are always a conflict, and
// changed resources are dispatched field by field to registered handlers.
// A failing cloud call is returned as an error and never reported as FIX.
package reconciler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/internal/logger"
	"github.com/yairfalse/palautus/pkg/types"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMaxPollAttempts = 60
)

// Reconciler repairs the divergence of one resource kind
type Reconciler interface {
	Kind() types.Kind
	Fix(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error)
}

// Options configures polling and logging for all reconcilers
type Options struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	Logger          logger.Logger
}

// DefaultOptions returns one second polling for up to sixty attempts
func DefaultOptions() Options {
	return Options{
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
	}
}

func (o Options) poller() poller {
	return poller{interval: o.PollInterval, attempts: o.MaxPollAttempts}
}

func (o Options) logger() logger.Logger {
	if o.Logger == nil {
		return logger.NewNop()
	}
	return o.Logger
}

type fieldResult struct {
	outcome     types.Outcome
	explanation string
}

func fixed(format string, args ...any) fieldResult {
	return fieldResult{outcome: types.Fix, explanation: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...any) fieldResult {
	return fieldResult{outcome: types.Conflict, explanation: fmt.Sprintf(format, args...)}
}

type fieldHandler func(ctx context.Context, change types.ChangeRecord, fc types.FieldChange) (fieldResult, error)

// base carries the dispatch shared by every kind
type base struct {
	kind   types.Kind
	client cloud.Resource
	fields map[string]fieldHandler
	log    logger.Logger
}

func newBase(kind types.Kind, client cloud.Resource, opts Options) base {
	return base{
		kind:   kind,
		client: client,
		fields: make(map[string]fieldHandler),
		log:    opts.logger().WithField("kind", string(kind)),
	}
}

func (b *base) Kind() types.Kind {
	return b.kind
}

func (b *base) Fix(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error) {
	return b.dispatch(ctx, change)
}

func (b *base) dispatch(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error) {
	switch change.Tag {
	case types.Added:
		return b.fixAdd(ctx, change)
	case types.Deleted:
		return b.fixDelete(change), nil
	case types.Changed:
		return b.fixChange(ctx, change)
	default:
		return types.ReportEntry{}, fmt.Errorf("unknown change tag %q for %s %s", change.Tag, b.kind, change.ID)
	}
}

// fixAdd deletes a resource created after the baseline. The resource must
// still exist; a missing resource is an error, not a fix.
func (b *base) fixAdd(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error) {
	if _, err := b.client.Get(ctx, change.ID); err != nil {
		return types.ReportEntry{}, fmt.Errorf("failed to look up %s %s before delete: %w", b.kind, change.ID, err)
	}
	if err := b.client.Delete(ctx, change.ID); err != nil {
		return types.ReportEntry{}, fmt.Errorf("failed to delete %s %s: %w", b.kind, change.ID, err)
	}

	b.log.WithField("resource_id", change.ID).Info("deleted resource created after baseline")
	return types.NewFix(b.kind, change, "%s %s was created after the baseline and has been deleted", b.kind, change.ID), nil
}

func (b *base) fixDelete(change types.ChangeRecord) types.ReportEntry {
	return types.NewConflict(b.kind, change,
		"%s %s existed in the baseline but is gone; it will not be recreated automatically", b.kind, change.ID)
}

// fixChange runs the handler of every changed field in name order and merges
// the results. A field without a handler is a conflict.
func (b *base) fixChange(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error) {
	outcome := types.Fix
	parts := make([]string, 0, len(change.Fields))

	for _, field := range change.FieldNames() {
		fc := change.Fields[field]
		handler, ok := b.fields[field]
		if !ok {
			outcome = types.Conflict
			parts = append(parts, fmt.Sprintf("%s changed %v -> %v and cannot be repaired automatically", field, fc.Previous, fc.Current))
			continue
		}

		result, err := handler(ctx, change, fc)
		if err != nil {
			return types.ReportEntry{}, fmt.Errorf("failed to repair %s of %s %s: %w", field, b.kind, change.ID, err)
		}
		if result.outcome == types.Conflict {
			outcome = types.Conflict
		}
		if !slices.Contains(parts, result.explanation) {
			parts = append(parts, result.explanation)
		}
	}

	explanation := fmt.Sprintf("%s %s: %s", b.kind, change.ID, strings.Join(parts, "; "))
	if outcome == types.Conflict {
		return types.NewConflict(b.kind, change, "%s", explanation), nil
	}
	return types.NewFix(b.kind, change, "%s", explanation), nil
}

// Generic handles kinds without field repair: tenants, users and security groups
type Generic struct {
	base
}

// NewGeneric creates a reconciler that deletes added resources and reports
// every other change as a conflict
func NewGeneric(kind types.Kind, client cloud.Resource, opts Options) *Generic {
	return &Generic{base: newBase(kind, client, opts)}
}

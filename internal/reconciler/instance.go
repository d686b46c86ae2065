package reconciler

import (
	"context"
	"errors"
	"fmt"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Instance reconciles nova servers. Status changes are replayed through the
// transition table; other field changes are conflicts.
type Instance struct {
	base
	instances cloud.InstanceClient
	poll      poller
}

// NewInstance creates the instance reconciler
func NewInstance(client cloud.InstanceClient, opts Options) *Instance {
	r := &Instance{
		base:      newBase(types.KindInstances, client, opts),
		instances: client,
		poll:      opts.poller(),
	}
	r.fields["status"] = r.fixStatus
	return r
}

// fixStatus moves the live instance back to its baseline status
func (r *Instance) fixStatus(ctx context.Context, change types.ChangeRecord, fc types.FieldChange) (fieldResult, error) {
	if types.IsAbsent(fc.Previous) {
		return conflict("no baseline status recorded"), nil
	}
	desired := ParseStatus(fc.Previous)

	live, err := r.instances.Get(ctx, change.ID)
	if err != nil {
		return fieldResult{}, err
	}
	current := ParseStatus(live["status"])
	if current == desired {
		return fixed("status already %s", desired), nil
	}

	plan, ok := InstancePlan(current, desired)
	if !ok {
		return conflict("no transition plan for status %s -> %s", current, desired), nil
	}

	log := r.log.WithFields(map[string]interface{}{
		"resource_id": change.ID,
		"from":        string(current),
		"to":          string(desired),
	})
	log.Info("replaying status transition")

	for _, step := range plan {
		if !step.IsWait() {
			log.WithField("action", string(step.Action)).Debug("running action")
			if err := r.instances.Action(ctx, change.ID, step.Action); err != nil {
				return fieldResult{}, fmt.Errorf("%s failed: %w", step.Action, err)
			}
			continue
		}

		err := r.poll.waitFor(ctx, r.kind, change.ID, r.instances, step.Wait)
		var timeout *TransitionTimeoutError
		if errors.As(err, &timeout) {
			log.Warn(timeout.Error())
			return conflict("status change %s -> %s aborted: waited for %s but instance stayed %s after %d attempts",
				current, desired, timeout.Expected, timeout.Observed, timeout.Attempts), nil
		}
		if err != nil {
			return fieldResult{}, err
		}
	}

	return fixed("changed status %s -> %s", current, desired), nil
}

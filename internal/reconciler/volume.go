package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Volume reconciles cinder volumes: attachments and in-use/available status
type Volume struct {
	base
	volumes   cloud.VolumeClient
	instances cloud.Getter
	poll      poller
}

// NewVolume creates the volume reconciler. instances is used to check that an
// attachment target still exists and may be nil, in which case every
// re-attachment is a conflict.
func NewVolume(client cloud.VolumeClient, instances cloud.Getter, opts Options) *Volume {
	r := &Volume{
		base:      newBase(types.KindVolumes, client, opts),
		volumes:   client,
		instances: instances,
		poll:      opts.poller(),
	}
	r.fields["attachments"] = r.fixAttachments
	r.fields["status"] = r.fixStatus
	return r
}

func indexAttachments(attachments []types.Attachment) (map[string]types.Attachment, []string) {
	index := make(map[string]types.Attachment, len(attachments))
	for _, a := range attachments {
		if a.ServerID == "" {
			continue
		}
		index[a.ServerID] = a
	}
	servers := make([]string, 0, len(index))
	for s := range index {
		servers = append(servers, s)
	}
	sort.Strings(servers)
	return index, servers
}

// fixAttachments detaches attachments made after the baseline and re-attaches
// the ones that were lost. Attachments are identified by server id.
func (r *Volume) fixAttachments(ctx context.Context, change types.ChangeRecord, fc types.FieldChange) (fieldResult, error) {
	live, err := r.volumes.Get(ctx, change.ID)
	if err != nil {
		return fieldResult{}, err
	}

	wanted, wantedServers := indexAttachments(change.Before.Attachments())
	current, currentServers := indexAttachments(types.Record(live).Attachments())

	var moved []string
	for _, server := range wantedServers {
		a, ok := current[server]
		if !ok || a.Device == "" || wanted[server].Device == "" || a.Device == wanted[server].Device {
			continue
		}
		moved = append(moved, fmt.Sprintf("attachment to %s moved from %s to %s", server, wanted[server].Device, a.Device))
	}
	if len(moved) > 0 {
		return conflict("%s", strings.Join(moved, ", ")), nil
	}

	var notes []string
	detached := 0
	for _, server := range currentServers {
		if _, ok := wanted[server]; ok {
			continue
		}
		if err := r.volumes.Detach(ctx, change.ID, server); err != nil {
			return fieldResult{}, fmt.Errorf("detach from %s failed: %w", server, err)
		}
		detached++
		notes = append(notes, "detached from "+server)
	}

	if detached > 0 && len(wanted) == 0 {
		if res, done, err := r.await(ctx, change.ID, StatusAvailable, "detach"); done {
			return res, err
		}
	}

	for _, server := range wantedServers {
		if _, ok := current[server]; ok {
			continue
		}
		res, done, err := r.reattach(ctx, change.ID, wanted[server])
		if done {
			if len(notes) > 0 {
				res.explanation = strings.Join(notes, ", ") + "; " + res.explanation
			}
			return res, err
		}
		notes = append(notes, fmt.Sprintf("re-attached to %s at %s", server, wanted[server].Device))
	}

	if len(notes) == 0 {
		return fixed("attachments already match baseline"), nil
	}
	return fixed("%s", strings.Join(notes, ", ")), nil
}

// fixStatus restores in-use/available. The live status is read again since
// an attachment repair may already have settled it.
func (r *Volume) fixStatus(ctx context.Context, change types.ChangeRecord, fc types.FieldChange) (fieldResult, error) {
	if types.IsAbsent(fc.Previous) {
		return conflict("no baseline status recorded"), nil
	}
	desired := ParseStatus(fc.Previous)

	live, err := r.volumes.Get(ctx, change.ID)
	if err != nil {
		return fieldResult{}, err
	}
	current := ParseStatus(live["status"])
	if current == desired {
		return fixed("status already %s", desired), nil
	}

	plan, ok := volumePlan(current, desired)
	if !ok {
		return conflict("no transition plan for volume status %s -> %s", current, desired), nil
	}

	for _, step := range plan {
		switch step.op {
		case opDetachAll:
			_, servers := indexAttachments(types.Record(live).Attachments())
			for _, server := range servers {
				if err := r.volumes.Detach(ctx, change.ID, server); err != nil {
					return fieldResult{}, fmt.Errorf("detach from %s failed: %w", server, err)
				}
			}
		case opAttachBaseline:
			wanted, servers := indexAttachments(change.Before.Attachments())
			if len(servers) == 0 {
				return conflict("baseline status %s has no recorded attachment to restore", desired), nil
			}
			attached, _ := indexAttachments(types.Record(live).Attachments())
			for _, server := range servers {
				if _, ok := attached[server]; ok {
					continue
				}
				a := wanted[server]
				if res, done, err := r.checkInstance(ctx, a); done {
					return res, err
				}
				if err := r.volumes.Attach(ctx, change.ID, a.ServerID, a.Device); err != nil {
					return fieldResult{}, fmt.Errorf("attach to %s failed: %w", a.ServerID, err)
				}
			}
		case opWait:
			if res, done, err := r.await(ctx, change.ID, step.wait, fmt.Sprintf("status change %s -> %s", current, desired)); done {
				return res, err
			}
		}
	}

	return fixed("changed status %s -> %s", current, desired), nil
}

// reattach restores one baseline attachment and waits for in-use.
// done is true when processing of this field must stop.
func (r *Volume) reattach(ctx context.Context, volumeID string, a types.Attachment) (fieldResult, bool, error) {
	if res, done, err := r.checkInstance(ctx, a); done {
		return res, true, err
	}
	if err := r.volumes.Attach(ctx, volumeID, a.ServerID, a.Device); err != nil {
		return fieldResult{}, true, fmt.Errorf("attach to %s failed: %w", a.ServerID, err)
	}
	r.log.WithFields(map[string]interface{}{
		"resource_id": volumeID,
		"server_id":   a.ServerID,
		"device":      a.Device,
	}).Info("re-attached volume")

	return r.await(ctx, volumeID, StatusInUse, "re-attach to "+a.ServerID)
}

// checkInstance makes sure the attachment target still exists. A missing
// instance is a conflict; any other lookup failure is returned as an error.
func (r *Volume) checkInstance(ctx context.Context, a types.Attachment) (fieldResult, bool, error) {
	if r.instances == nil {
		return conflict("cannot verify instance %s for attachment at %s", a.ServerID, a.Device), true, nil
	}
	if _, err := r.instances.Get(ctx, a.ServerID); err != nil {
		if cloud.IsNotFound(err) {
			return conflict("instance %s no longer exists; attachment at %s cannot be restored", a.ServerID, a.Device), true, nil
		}
		return fieldResult{}, true, fmt.Errorf("failed to look up instance %s: %w", a.ServerID, err)
	}
	return fieldResult{}, false, nil
}

// await polls for a status. On timeout it returns a conflict with done set;
// on success done is false.
func (r *Volume) await(ctx context.Context, volumeID string, status Status, what string) (fieldResult, bool, error) {
	err := r.poll.waitFor(ctx, r.kind, volumeID, r.volumes, status)
	if err == nil {
		return fieldResult{}, false, nil
	}
	var timeout *TransitionTimeoutError
	if errors.As(err, &timeout) {
		r.log.WithField("resource_id", volumeID).Warn(timeout.Error())
		return conflict("%s timed out: volume stayed %s instead of %s after %d attempts",
			what, timeout.Observed, timeout.Expected, timeout.Attempts), true, nil
	}
	return fieldResult{}, true, err
}

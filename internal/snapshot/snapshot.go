// Package snapshot captures normalized point-in-time views of cloud resources.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Clock returns the capture time; replaced in tests
var Clock = func() time.Time { return time.Now().UTC() }

// Capture lists one kind exactly once and projects every record.
// The result does not reference anything returned by the lister.
func Capture(ctx context.Context, kind types.Kind, lister cloud.Lister) (*types.Snapshot, error) {
	if lister == nil {
		return nil, fmt.Errorf("no lister for %s", kind)
	}

	raw, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}

	snap := types.NewSnapshot(uuid.NewString(), Clock())
	snap.Resources[kind] = make(map[string]types.Record, len(raw))
	for _, item := range raw {
		record, err := Project(kind, item)
		if err != nil {
			return nil, err
		}
		if _, dup := snap.Resources[kind][record.ID()]; dup {
			return nil, fmt.Errorf("duplicate %s id %s in listing", kind, record.ID())
		}
		snap.Resources[kind][record.ID()] = record
	}
	return snap, nil
}

// CaptureAll captures each kind in order and unions the results into one
// snapshot. The snapshot keeps the time of the first capture.
func CaptureAll(ctx context.Context, set cloud.Set, kinds ...types.Kind) (*types.Snapshot, error) {
	if len(kinds) == 0 {
		kinds = types.AllKinds
	}

	var result *types.Snapshot
	for _, kind := range kinds {
		client, err := set.For(kind)
		if err != nil {
			return nil, err
		}
		part, err := Capture(ctx, kind, client)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = part
			continue
		}
		result.Union(part, types.FieldTimestamp, types.FieldName)
	}
	return result, nil
}

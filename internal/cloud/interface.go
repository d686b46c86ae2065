// Package cloud defines the narrow capability interfaces the reconciliation
// engine consumes from a cloud SDK, one set per resource kind.
package cloud

import (
	"context"
	"errors"
	"fmt"

	"github.com/yairfalse/palautus/pkg/types"
)

// ErrNotFound is returned (wrapped) when a resource does not exist
var ErrNotFound = errors.New("resource not found")

// RawRecord is an opaque resource as returned by the SDK layer.
// The engine only reads the fields it projects.
type RawRecord = map[string]any

// Lister lists every resource of one kind
type Lister interface {
	List(ctx context.Context) ([]RawRecord, error)
}

// Getter fetches a single resource by id
type Getter interface {
	Get(ctx context.Context, id string) (RawRecord, error)
}

// Deleter removes a resource by id
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Resource is the full per-kind capability
type Resource interface {
	Lister
	Getter
	Deleter
}

// InstanceAction is a power-state verb supported by instances
type InstanceAction string

const (
	ActionStart   InstanceAction = "start"
	ActionStop    InstanceAction = "stop"
	ActionPause   InstanceAction = "pause"
	ActionUnpause InstanceAction = "unpause"
	ActionSuspend InstanceAction = "suspend"
	ActionResume  InstanceAction = "resume"
)

// InstanceClient adds power-state actions to the instance capability
type InstanceClient interface {
	Resource
	Action(ctx context.Context, id string, action InstanceAction) error
}

// VolumeClient adds attach/detach to the volume capability
type VolumeClient interface {
	Resource
	Attach(ctx context.Context, volumeID, instanceID, device string) error
	Detach(ctx context.Context, volumeID, instanceID string) error
}

// Set bundles the clients of one cloud. Nil entries mean the kind is unsupported.
type Set struct {
	Instances      InstanceClient
	Volumes        VolumeClient
	Images         Resource
	Tenants        Resource
	Users          Resource
	SecurityGroups Resource
}

// For returns the base capability of a kind
func (s Set) For(kind types.Kind) (Resource, error) {
	var r Resource
	switch kind {
	case types.KindInstances:
		if s.Instances != nil {
			r = s.Instances
		}
	case types.KindVolumes:
		if s.Volumes != nil {
			r = s.Volumes
		}
	case types.KindImages:
		r = s.Images
	case types.KindTenants:
		r = s.Tenants
	case types.KindUsers:
		r = s.Users
	case types.KindSecurityGroups:
		r = s.SecurityGroups
	default:
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	if r == nil {
		return nil, fmt.Errorf("no client configured for %s", kind)
	}
	return r, nil
}

// IsNotFound reports whether err signals a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// NotFound wraps ErrNotFound with the kind and id
func NotFound(kind types.Kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

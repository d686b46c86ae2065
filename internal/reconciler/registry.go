package reconciler

import (
	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Registry holds one reconciler per configured kind
type Registry struct {
	reconcilers map[types.Kind]Reconciler
}

// NewRegistry builds reconcilers for every client present in set
func NewRegistry(set cloud.Set, opts Options) *Registry {
	r := &Registry{reconcilers: make(map[types.Kind]Reconciler)}

	if set.Instances != nil {
		r.Register(NewInstance(set.Instances, opts))
	}
	if set.Volumes != nil {
		var instances cloud.Getter
		if set.Instances != nil {
			instances = set.Instances
		}
		r.Register(NewVolume(set.Volumes, instances, opts))
	}
	if set.Images != nil {
		r.Register(NewImage(set.Images, opts))
	}
	for kind, client := range map[types.Kind]cloud.Resource{
		types.KindTenants:        set.Tenants,
		types.KindUsers:          set.Users,
		types.KindSecurityGroups: set.SecurityGroups,
	} {
		if client != nil {
			r.Register(NewGeneric(kind, client, opts))
		}
	}

	return r
}

// Register adds or replaces the reconciler of its kind
func (r *Registry) Register(rec Reconciler) {
	r.reconcilers[rec.Kind()] = rec
}

// For returns the reconciler of a kind
func (r *Registry) For(kind types.Kind) (Reconciler, bool) {
	rec, ok := r.reconcilers[kind]
	return rec, ok
}

// Kinds returns the registered kinds in reconcile order
func (r *Registry) Kinds() []types.Kind {
	kinds := make([]types.Kind, 0, len(r.reconcilers))
	for _, k := range types.AllKinds {
		if _, ok := r.reconcilers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

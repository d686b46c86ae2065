package reconciler

import (
	"context"
	"strings"

	"github.com/yairfalse/palautus/internal/cloud"
	"github.com/yairfalse/palautus/pkg/types"
)

// Image reconciles glance images. Extra images are deleted; any other
// divergence is a conflict since image bytes cannot be re-derived.
type Image struct {
	base
}

// NewImage creates the image reconciler
func NewImage(client cloud.Resource, opts Options) *Image {
	return &Image{base: newBase(types.KindImages, client, opts)}
}

func (r *Image) Fix(ctx context.Context, change types.ChangeRecord) (types.ReportEntry, error) {
	if change.Tag != types.Changed {
		return r.dispatch(ctx, change)
	}
	return types.NewConflict(r.kind, change,
		"%s %s: %s changed; image content and identity cannot be corrected automatically",
		r.kind, change.ID, strings.Join(change.FieldNames(), ", ")), nil
}

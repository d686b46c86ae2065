package differ

import (
	"github.com/yairfalse/palautus/pkg/types"
)

// Differ computes per-id divergence between two snapshots
type Differ interface {
	Diff(before, after map[string]types.Record) map[string]types.ChangeRecord
	DiffSnapshots(before, after *types.Snapshot) map[types.Kind]map[string]types.ChangeRecord
}

// Comparer compares the fields of two records of the same id
type Comparer interface {
	CompareRecords(before, after types.Record) map[string]types.FieldChange
}

// DiffOptions configures how the comparison is performed
type DiffOptions struct {
	// IgnoreFields are field names never reported as changed, e.g. "updated_at"
	IgnoreFields []string `json:"ignore_fields,omitempty" mapstructure:"ignore_fields"`
}

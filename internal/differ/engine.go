package differ

import (
	"fmt"

	"github.com/yairfalse/palautus/pkg/types"
)

// DiffSnapshots diffs every kind present in either snapshot.
// Kinds without changes are omitted from the result.
func (e *Engine) DiffSnapshots(before, after *types.Snapshot) map[types.Kind]map[string]types.ChangeRecord {
	result := make(map[types.Kind]map[string]types.ChangeRecord)
	if before == nil {
		before = &types.Snapshot{}
	}
	if after == nil {
		after = &types.Snapshot{}
	}

	kinds := make(map[types.Kind]bool)
	for kind := range before.Resources {
		kinds[kind] = true
	}
	for kind := range after.Resources {
		kinds[kind] = true
	}

	for kind := range kinds {
		changes := e.Diff(before.Records(kind), after.Records(kind))
		if len(changes) > 0 {
			result[kind] = changes
		}
	}
	return result
}

// Summary counts changes by tag for each kind
type Summary struct {
	Added   int `json:"added" yaml:"added"`
	Deleted int `json:"deleted" yaml:"deleted"`
	Changed int `json:"changed" yaml:"changed"`
}

// Total returns the number of changed ids
func (s Summary) Total() int {
	return s.Added + s.Deleted + s.Changed
}

// String returns a compact representation of the summary
func (s Summary) String() string {
	return fmt.Sprintf("+%d -%d ~%d", s.Added, s.Deleted, s.Changed)
}

// Summarize counts the changes in a DiffSnapshots result
func Summarize(changes map[types.Kind]map[string]types.ChangeRecord) map[types.Kind]Summary {
	out := make(map[types.Kind]Summary, len(changes))
	for kind, records := range changes {
		var s Summary
		for _, change := range records {
			switch change.Tag {
			case types.Added:
				s.Added++
			case types.Deleted:
				s.Deleted++
			case types.Changed:
				s.Changed++
			}
		}
		out[kind] = s
	}
	return out
}

package differ

import (
	"sort"

	"github.com/yairfalse/palautus/pkg/types"
)

// Engine is the standard Differ implementation
type Engine struct {
	comparer Comparer
	options  DiffOptions
}

// NewEngine creates a differ engine with the default comparer
func NewEngine(options ...DiffOptions) *Engine {
	opts := DiffOptions{}
	if len(options) > 0 {
		opts = options[0]
	}

	return &Engine{
		comparer: NewComparer(opts),
		options:  opts,
	}
}

// Diff compares two same-kind record maps. Ids only in after are Added, ids
// only in before are Deleted, ids in both with differing fields are Changed.
// Unchanged ids are left out. The result depends only on the inputs.
func (e *Engine) Diff(before, after map[string]types.Record) map[string]types.ChangeRecord {
	result := make(map[string]types.ChangeRecord)

	for id, prev := range before {
		curr, exists := after[id]
		if !exists {
			result[id] = types.ChangeRecord{ID: id, Tag: types.Deleted, Before: prev}
			continue
		}
		if fields := e.comparer.CompareRecords(prev, curr); len(fields) > 0 {
			result[id] = types.ChangeRecord{
				ID:     id,
				Tag:    types.Changed,
				Fields: fields,
				Before: prev,
				After:  curr,
			}
		}
	}

	for id, curr := range after {
		if _, exists := before[id]; !exists {
			result[id] = types.ChangeRecord{ID: id, Tag: types.Added, After: curr}
		}
	}

	return result
}

// Diff compares two record maps with default options
func Diff(before, after map[string]types.Record) map[string]types.ChangeRecord {
	return NewEngine().Diff(before, after)
}

// SortedIDs returns the ids of a change set in sorted order
func SortedIDs(changes map[string]types.ChangeRecord) []string {
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

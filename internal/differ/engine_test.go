package differ

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/palautus/pkg/types"
)

func records(rs ...types.Record) map[string]types.Record {
	out := make(map[string]types.Record, len(rs))
	for _, r := range rs {
		out[r.ID()] = r
	}
	return out
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		before   map[string]types.Record
		after    map[string]types.Record
		expected map[string]types.ChangeTag
	}{
		{
			name:     "identical",
			before:   records(types.Record{"id": "vm-1", "status": "active"}),
			after:    records(types.Record{"id": "vm-1", "status": "active"}),
			expected: map[string]types.ChangeTag{},
		},
		{
			name:     "deleted",
			before:   records(types.Record{"id": "id1", "status": "active"}),
			after:    records(),
			expected: map[string]types.ChangeTag{"id1": types.Deleted},
		},
		{
			name:     "added",
			before:   records(),
			after:    records(types.Record{"id": "id2", "status": "active"}),
			expected: map[string]types.ChangeTag{"id2": types.Added},
		},
		{
			name:     "changed",
			before:   records(types.Record{"id": "id3", "status": "paused"}),
			after:    records(types.Record{"id": "id3", "status": "shutoff"}),
			expected: map[string]types.ChangeTag{"id3": types.Changed},
		},
		{
			name: "mixed",
			before: records(
				types.Record{"id": "a", "status": "active"},
				types.Record{"id": "b", "status": "active"},
				types.Record{"id": "c", "status": "active"},
			),
			after: records(
				types.Record{"id": "a", "status": "active"},
				types.Record{"id": "b", "status": "paused"},
				types.Record{"id": "d", "status": "active"},
			),
			expected: map[string]types.ChangeTag{"b": types.Changed, "c": types.Deleted, "d": types.Added},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Diff(tt.before, tt.after)

			tags := make(map[string]types.ChangeTag, len(result))
			for id, change := range result {
				tags[id] = change.Tag
				assert.Equal(t, id, change.ID)
				assert.NoError(t, change.Validate())
			}
			assert.Equal(t, tt.expected, tags)
		})
	}
}

func TestDiff_IdenticalIsEmpty(t *testing.T) {
	a := records(
		types.Record{"id": "vm-1", "status": "active", "name": "web"},
		types.Record{"id": "vm-2", "status": "paused", "name": "db"},
	)
	assert.Empty(t, Diff(a, a))
}

func TestDiff_ChangedCarriesPreviousAndCurrent(t *testing.T) {
	result := Diff(
		records(types.Record{"id": "id3", "status": "paused", "name": "web"}),
		records(types.Record{"id": "id3", "status": "shutoff", "name": "web"}),
	)

	change := result["id3"]
	require.Len(t, change.Fields, 1)
	assert.Equal(t, types.FieldChange{Previous: "paused", Current: "shutoff"}, change.Fields["status"])
	assert.Equal(t, "paused", change.Before.String("status"))
	assert.Equal(t, "shutoff", change.After.String("status"))
}

func TestDiff_Deterministic(t *testing.T) {
	before := records(
		types.Record{"id": "a", "status": "active"},
		types.Record{"id": "b", "status": "active", "name": "x"},
	)
	after := records(
		types.Record{"id": "b", "status": "paused"},
		types.Record{"id": "c", "status": "active"},
	)

	first := Diff(before, after)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Diff(before, after))
	}
	assert.Equal(t, []string{"a", "b", "c"}, SortedIDs(first))
}

func TestEngine_DiffSnapshots(t *testing.T) {
	before := types.NewSnapshot("before", time.Now())
	require.NoError(t, before.Put(types.KindInstances, types.Record{"id": "vm-1", "status": "active"}))
	require.NoError(t, before.Put(types.KindImages, types.Record{"id": "img-1", "checksum": "abc"}))

	after := types.NewSnapshot("after", time.Now())
	require.NoError(t, after.Put(types.KindInstances, types.Record{"id": "vm-1", "status": "active"}))
	require.NoError(t, after.Put(types.KindVolumes, types.Record{"id": "vol-1", "status": "available"}))

	result := NewEngine().DiffSnapshots(before, after)

	assert.NotContains(t, result, types.KindInstances, "unchanged kinds are omitted")
	assert.Equal(t, types.Deleted, result[types.KindImages]["img-1"].Tag)
	assert.Equal(t, types.Added, result[types.KindVolumes]["vol-1"].Tag)

	summary := Summarize(result)
	assert.Equal(t, Summary{Deleted: 1}, summary[types.KindImages])
	assert.Equal(t, Summary{Added: 1}, summary[types.KindVolumes])
	assert.Equal(t, "+1 -0 ~0", summary[types.KindVolumes].String())
}

func TestEngine_DiffSnapshotsNil(t *testing.T) {
	after := types.NewSnapshot("after", time.Now())
	require.NoError(t, after.Put(types.KindUsers, types.Record{"id": "u-1"}))

	result := NewEngine().DiffSnapshots(nil, after)
	assert.Equal(t, types.Added, result[types.KindUsers]["u-1"].Tag)
}

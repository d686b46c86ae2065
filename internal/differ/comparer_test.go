package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yairfalse/palautus/pkg/types"
)

func TestDefaultComparer_CompareRecords(t *testing.T) {
	comparer := &DefaultComparer{}

	tests := []struct {
		name           string
		before         types.Record
		after          types.Record
		expectedFields []string
	}{
		{
			name:   "identical records",
			before: types.Record{"id": "vm-1", "status": "active", "name": "web"},
			after:  types.Record{"id": "vm-1", "status": "active", "name": "web"},
		},
		{
			name:           "changed status",
			before:         types.Record{"id": "vm-1", "status": "active"},
			after:          types.Record{"id": "vm-1", "status": "shutoff"},
			expectedFields: []string{"status"},
		},
		{
			name:           "field removed",
			before:         types.Record{"id": "img-1", "checksum": "abc"},
			after:          types.Record{"id": "img-1"},
			expectedFields: []string{"checksum"},
		},
		{
			name:           "field added",
			before:         types.Record{"id": "img-1"},
			after:          types.Record{"id": "img-1", "checksum": "abc"},
			expectedFields: []string{"checksum"},
		},
		{
			name: "attachment list changed",
			before: types.Record{"id": "vol-1", "attachments": []any{
				map[string]any{"server_id": "vm-a", "device": "/dev/vdb"},
			}},
			after:          types.Record{"id": "vol-1", "attachments": []any{}},
			expectedFields: []string{"attachments"},
		},
		{
			name:   "int and float compare equal",
			before: types.Record{"id": "vol-1", "size": float64(10)},
			after:  types.Record{"id": "vol-1", "size": 10},
		},
		{
			name:           "nil versus empty string",
			before:         types.Record{"id": "u-1", "domain_id": nil},
			after:          types.Record{"id": "u-1", "domain_id": ""},
			expectedFields: []string{"domain_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := comparer.CompareRecords(tt.before, tt.after)

			var fields []string
			for field := range changes {
				fields = append(fields, field)
			}
			assert.ElementsMatch(t, tt.expectedFields, fields)

			for field, fc := range changes {
				assert.NotEqual(t, fc.Previous, fc.Current, "field %s listed without a difference", field)
			}
		})
	}
}

func TestDefaultComparer_AbsentSentinel(t *testing.T) {
	comparer := &DefaultComparer{}

	changes := comparer.CompareRecords(
		types.Record{"id": "t-1", "description": ""},
		types.Record{"id": "t-1"},
	)

	fc, ok := changes["description"]
	if assert.True(t, ok) {
		assert.Equal(t, "", fc.Previous)
		assert.True(t, types.IsAbsent(fc.Current))
	}
}

func TestDefaultComparer_IgnoreFields(t *testing.T) {
	comparer := NewComparer(DiffOptions{IgnoreFields: []string{"updated_at"}})

	changes := comparer.CompareRecords(
		types.Record{"id": "vm-1", "updated_at": "yesterday", "status": "active"},
		types.Record{"id": "vm-1", "updated_at": "today", "status": "active"},
	)

	assert.Empty(t, changes)
}

package differ

import (
	"reflect"

	"github.com/yairfalse/palautus/pkg/types"
)

// DefaultComparer implements field-by-field comparison of records
type DefaultComparer struct {
	options DiffOptions
}

// NewComparer creates a comparer with the given options
func NewComparer(options DiffOptions) *DefaultComparer {
	return &DefaultComparer{options: options}
}

// CompareRecords returns every field whose value differs between the two
// records. A field present on one side only is reported with types.Absent on
// the other side. Returns nil when the records match.
func (c *DefaultComparer) CompareRecords(before, after types.Record) map[string]types.FieldChange {
	var changes map[string]types.FieldChange
	record := func(field string, fc types.FieldChange) {
		if changes == nil {
			changes = make(map[string]types.FieldChange)
		}
		changes[field] = fc
	}

	for field, previous := range before {
		if c.shouldIgnoreField(field) {
			continue
		}
		current, exists := after[field]
		if !exists {
			record(field, types.FieldChange{Previous: previous, Current: types.Absent})
			continue
		}
		if !c.equalValues(previous, current) {
			record(field, types.FieldChange{Previous: previous, Current: current})
		}
	}

	for field, current := range after {
		if c.shouldIgnoreField(field) {
			continue
		}
		if _, exists := before[field]; !exists {
			record(field, types.FieldChange{Previous: types.Absent, Current: current})
		}
	}

	return changes
}

// equalValues compares two JSON-native values
func (c *DefaultComparer) equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	// Numbers decoded from disk are float64 while live values may be ints
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// shouldIgnoreField checks if a field should be ignored based on options
func (c *DefaultComparer) shouldIgnoreField(field string) bool {
	for _, ignored := range c.options.IgnoreFields {
		if field == ignored {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

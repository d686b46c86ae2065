package types

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ChangeTag represents the type of change detected for one resource id
type ChangeTag string

const (
	// Added indicates the resource appeared after the baseline was taken
	Added ChangeTag = "added"
	// Deleted indicates the resource disappeared after the baseline was taken
	Deleted ChangeTag = "deleted"
	// Changed indicates one or more fields differ from the baseline
	Changed ChangeTag = "changed"
)

// IsValid checks if the ChangeTag is valid
func (t ChangeTag) IsValid() bool {
	switch t {
	case Added, Deleted, Changed:
		return true
	default:
		return false
	}
}

// String returns the string representation of ChangeTag
func (t ChangeTag) String() string {
	return string(t)
}

// absentKey tags the encoded sentinel: {"absent": true}. Projected fields
// never hold objects, so the encoding cannot collide with a recorded value.
const absentKey = "absent"

type absent struct{}

func (absent) String() string { return "<absent>" }

func (absent) MarshalJSON() ([]byte, error) { return []byte(`{"` + absentKey + `":true}`), nil }

func (absent) MarshalYAML() (any, error) { return map[string]bool{absentKey: true}, nil }

// Absent marks the side of a FieldChange where the field does not exist.
// It never compares equal to an empty string or nil.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent sentinel
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// FieldChange holds the baseline and current values of one differing field
type FieldChange struct {
	Previous any `json:"previous" yaml:"previous"`
	Current  any `json:"current" yaml:"current"`
}

type fieldChangeWire struct {
	Previous any `json:"previous" yaml:"previous"`
	Current  any `json:"current" yaml:"current"`
}

// UnmarshalJSON restores the Absent sentinel on either side
func (fc *FieldChange) UnmarshalJSON(data []byte) error {
	var wire fieldChangeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	fc.Previous, fc.Current = restoreAbsent(wire.Previous), restoreAbsent(wire.Current)
	return nil
}

// UnmarshalYAML restores the Absent sentinel on either side
func (fc *FieldChange) UnmarshalYAML(node *yaml.Node) error {
	var wire fieldChangeWire
	if err := node.Decode(&wire); err != nil {
		return err
	}
	fc.Previous, fc.Current = restoreAbsent(wire.Previous), restoreAbsent(wire.Current)
	return nil
}

func restoreAbsent(v any) any {
	if m, ok := v.(map[string]any); ok && len(m) == 1 && m[absentKey] == true {
		return Absent
	}
	return v
}

// String returns a string representation of the field change
func (fc FieldChange) String() string {
	return fmt.Sprintf("%v -> %v", fc.Previous, fc.Current)
}

// ChangeRecord describes how one resource id diverged between two snapshots
type ChangeRecord struct {
	ID     string                 `json:"id" yaml:"id"`
	Tag    ChangeTag              `json:"tag" yaml:"tag"`
	Fields map[string]FieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`

	// Before and After are the compared records; nil on the side where the id is missing.
	Before Record `json:"-" yaml:"-"`
	After  Record `json:"-" yaml:"-"`
}

// Validate checks the tag-specific invariants of the record
func (c *ChangeRecord) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("change record id cannot be empty")
	}
	if !c.Tag.IsValid() {
		return fmt.Errorf("invalid change tag: %s", c.Tag)
	}

	switch c.Tag {
	case Added, Deleted:
		if len(c.Fields) != 0 {
			return fmt.Errorf("%s change for %s must not list fields", c.Tag, c.ID)
		}
	case Changed:
		if len(c.Fields) == 0 {
			return fmt.Errorf("changed record for %s must list at least one field", c.ID)
		}
	}
	return nil
}

// FieldNames returns the changed field names in sorted order
func (c *ChangeRecord) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line human readable description
func (c *ChangeRecord) Describe() string {
	switch c.Tag {
	case Added:
		return fmt.Sprintf("%s was added", c.ID)
	case Deleted:
		return fmt.Sprintf("%s was deleted", c.ID)
	default:
		return fmt.Sprintf("%s changed fields %v", c.ID, c.FieldNames())
	}
}

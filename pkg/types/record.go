package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a class of cloud resource tracked in a snapshot
type Kind string

const (
	KindInstances      Kind = "instances"
	KindImages         Kind = "images"
	KindVolumes        Kind = "volumes"
	KindTenants        Kind = "tenants"
	KindUsers          Kind = "users"
	KindSecurityGroups Kind = "security_groups"
)

// AllKinds lists every supported kind in reconciliation order.
// Dependents go first: instances release volumes, volumes reference images.
var AllKinds = []Kind{
	KindInstances,
	KindVolumes,
	KindImages,
	KindSecurityGroups,
	KindUsers,
	KindTenants,
}

// IsValid checks if the Kind is one of the supported kinds
func (k Kind) IsValid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// String returns the string representation of Kind
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts user input into a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown resource kind: %q", s)
	}
	return k, nil
}

// Record is the projected, JSON-native view of one resource.
// Values are limited to string, float64, bool, nil, []any and map[string]any.
type Record map[string]any

// ID returns the record's identifier or an empty string
func (r Record) ID() string {
	return r.String("id")
}

// String returns a string field, or an empty string if missing or not a string
func (r Record) String(field string) string {
	if r == nil {
		return ""
	}
	s, _ := r[field].(string)
	return s
}

// Fields returns the record's field names in sorted order
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Clone creates a deep copy of the record
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = cloneValue(v)
	}
	return clone
}

// Attachment is a volume attachment as recorded in a volume's "attachments" field
type Attachment struct {
	ServerID     string `json:"server_id"`
	Device       string `json:"device"`
	AttachmentID string `json:"attachment_id,omitempty"`
}

// Attachments decodes the "attachments" field of a volume record.
// Missing or malformed entries yield no attachments.
func (r Record) Attachments() []Attachment {
	raw, ok := r["attachments"]
	if !ok || raw == nil {
		return nil
	}
	var attachments []Attachment
	if err := convert(raw, &attachments); err != nil {
		return nil
	}
	return attachments
}

// Normalize converts an arbitrary value into its JSON-native form so that
// freshly captured values and values read back from disk compare equal.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func convert(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return val
	}
}

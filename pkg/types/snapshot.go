package types

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Top-level snapshot and report fields that Union can be told to skip.
// Kind names are accepted as well.
const (
	FieldTimestamp = "timestamp"
	FieldName      = "name"
)

// Snapshot represents a point-in-time capture of cloud resources, grouped by kind
type Snapshot struct {
	ID        string                     `json:"id"`
	Name      string                     `json:"name,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
	Resources map[Kind]map[string]Record `json:"resources"`
}

// NewSnapshot creates an empty snapshot with its own resource map
func NewSnapshot(id string, timestamp time.Time) *Snapshot {
	return &Snapshot{
		ID:        id,
		Timestamp: timestamp,
		Resources: make(map[Kind]map[string]Record),
	}
}

// Validate checks if the Snapshot has all required fields and valid values
func (s *Snapshot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("snapshot ID is required")
	}
	if s.Timestamp.IsZero() {
		return errors.New("snapshot timestamp is required")
	}
	if s.Resources == nil {
		return errors.New("snapshot resources cannot be nil")
	}
	for kind, records := range s.Resources {
		if !kind.IsValid() {
			return errors.New("snapshot contains unknown kind " + string(kind))
		}
		for id, record := range records {
			if record.ID() != id {
				return errors.New("record " + id + " of kind " + string(kind) + " has mismatched id")
			}
		}
	}
	return nil
}

// Kinds returns the kinds present in the snapshot in sorted order
func (s *Snapshot) Kinds() []Kind {
	kinds := make([]Kind, 0, len(s.Resources))
	for k := range s.Resources {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Records returns the id → record map of one kind, never nil
func (s *Snapshot) Records(kind Kind) map[string]Record {
	if records, ok := s.Resources[kind]; ok {
		return records
	}
	return map[string]Record{}
}

// Get returns a single record by kind and id
func (s *Snapshot) Get(kind Kind, id string) (Record, bool) {
	record, ok := s.Resources[kind][id]
	return record, ok
}

// Put stores a record under its kind, replacing any record with the same id.
// Only used while a snapshot is being assembled.
func (s *Snapshot) Put(kind Kind, record Record) error {
	id := record.ID()
	if id == "" {
		return errors.New("record of kind " + string(kind) + " has no id")
	}
	if s.Resources == nil {
		s.Resources = make(map[Kind]map[string]Record)
	}
	if s.Resources[kind] == nil {
		s.Resources[kind] = make(map[string]Record)
	}
	s.Resources[kind][id] = record
	return nil
}

// ResourceCount returns the number of records across all kinds
func (s *Snapshot) ResourceCount() int {
	count := 0
	for _, records := range s.Resources {
		count += len(records)
	}
	return count
}

// Union merges other into s. Records in other win on id collision.
// Excluded names are skipped: FieldTimestamp, FieldName or a kind name.
func (s *Snapshot) Union(other *Snapshot, exclude ...string) {
	if other == nil {
		return
	}
	skip := excludeSet(exclude)

	if !skip[FieldTimestamp] {
		s.Timestamp = other.Timestamp
	}
	if !skip[FieldName] && other.Name != "" {
		s.Name = other.Name
	}
	if s.Resources == nil {
		s.Resources = make(map[Kind]map[string]Record)
	}
	for kind, records := range other.Resources {
		if skip[string(kind)] {
			continue
		}
		if s.Resources[kind] == nil {
			s.Resources[kind] = make(map[string]Record, len(records))
		}
		for id, record := range records {
			s.Resources[kind][id] = record.Clone()
		}
	}
}

// Clone creates a deep copy of the snapshot
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{
		ID:        s.ID,
		Name:      s.Name,
		Timestamp: s.Timestamp,
		Resources: make(map[Kind]map[string]Record, len(s.Resources)),
	}
	for kind, records := range s.Resources {
		clone.Resources[kind] = make(map[string]Record, len(records))
		for id, record := range records {
			clone.Resources[kind][id] = record.Clone()
		}
	}
	return clone
}

// String returns a string representation of the snapshot
func (s *Snapshot) String() string {
	label := s.ID
	if s.Name != "" {
		label = s.Name + " (" + s.ID + ")"
	}
	return "snapshot " + label + " at " + s.Timestamp.Format(time.RFC3339)
}

func excludeSet(exclude []string) map[string]bool {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}
	return skip
}

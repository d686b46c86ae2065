package types

import (
	"fmt"
	"sort"
	"time"
)

// Outcome classifies how a divergence was handled
type Outcome string

const (
	// Fix means the divergence was repaired, or needed no action
	Fix Outcome = "FIX"
	// Conflict means an operator has to decide
	Conflict Outcome = "CONFLICT"
)

// IsValid checks if the Outcome is valid
func (o Outcome) IsValid() bool {
	return o == Fix || o == Conflict
}

// ReportEntry records the outcome of reconciling one resource id
type ReportEntry struct {
	ResourceID     string       `json:"resource_id" yaml:"resource_id"`
	Kind           Kind         `json:"kind" yaml:"kind"`
	Change         ChangeRecord `json:"change" yaml:"change"`
	Explanation    string       `json:"explanation" yaml:"explanation"`
	Classification Outcome      `json:"classification" yaml:"classification"`
}

// NewFix creates a FIX entry for a change
func NewFix(kind Kind, change ChangeRecord, format string, args ...any) ReportEntry {
	return newEntry(kind, change, Fix, fmt.Sprintf(format, args...))
}

// NewConflict creates a CONFLICT entry for a change
func NewConflict(kind Kind, change ChangeRecord, format string, args ...any) ReportEntry {
	return newEntry(kind, change, Conflict, fmt.Sprintf(format, args...))
}

func newEntry(kind Kind, change ChangeRecord, outcome Outcome, explanation string) ReportEntry {
	return ReportEntry{
		ResourceID:     change.ID,
		Kind:           kind,
		Change:         change,
		Explanation:    explanation,
		Classification: outcome,
	}
}

// Report aggregates reconciliation outcomes per kind and resource id
type Report struct {
	ID         string                          `json:"id" yaml:"id"`
	BaselineID string                          `json:"baseline_id,omitempty" yaml:"baseline_id,omitempty"`
	CurrentID  string                          `json:"current_id,omitempty" yaml:"current_id,omitempty"`
	Timestamp  time.Time                       `json:"timestamp" yaml:"timestamp"`
	Entries    map[Kind]map[string]ReportEntry `json:"entries" yaml:"entries"`
}

// NewReport creates an empty report with its own entry map
func NewReport(id string, timestamp time.Time) *Report {
	return &Report{
		ID:        id,
		Timestamp: timestamp,
		Entries:   make(map[Kind]map[string]ReportEntry),
	}
}

// Add stores an entry, replacing any earlier entry for the same kind and id
func (r *Report) Add(entry ReportEntry) {
	if r.Entries == nil {
		r.Entries = make(map[Kind]map[string]ReportEntry)
	}
	if r.Entries[entry.Kind] == nil {
		r.Entries[entry.Kind] = make(map[string]ReportEntry)
	}
	r.Entries[entry.Kind][entry.ResourceID] = entry
}

// Get returns the entry for a kind and id
func (r *Report) Get(kind Kind, id string) (ReportEntry, bool) {
	entry, ok := r.Entries[kind][id]
	return entry, ok
}

// Union merges other into r. Entries in other win on id collision.
// Excluded names are skipped: FieldTimestamp or a kind name.
func (r *Report) Union(other *Report, exclude ...string) {
	if other == nil {
		return
	}
	skip := excludeSet(exclude)

	if !skip[FieldTimestamp] {
		r.Timestamp = other.Timestamp
	}
	for kind, entries := range other.Entries {
		if skip[string(kind)] {
			continue
		}
		for _, entry := range entries {
			r.Add(entry)
		}
	}
}

// Len returns the number of entries across all kinds
func (r *Report) Len() int {
	n := 0
	for _, entries := range r.Entries {
		n += len(entries)
	}
	return n
}

// Sorted returns all entries ordered by kind then resource id
func (r *Report) Sorted() []ReportEntry {
	out := make([]ReportEntry, 0, r.Len())
	for _, entries := range r.Entries {
		for _, entry := range entries {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ResourceID < out[j].ResourceID
	})
	return out
}

// Conflicts returns the CONFLICT entries ordered by kind then resource id
func (r *Report) Conflicts() []ReportEntry {
	var conflicts []ReportEntry
	for _, entry := range r.Sorted() {
		if entry.Classification == Conflict {
			conflicts = append(conflicts, entry)
		}
	}
	return conflicts
}

// OutcomeCounts holds per-classification totals
type OutcomeCounts struct {
	Fixes     int `json:"fixes" yaml:"fixes"`
	Conflicts int `json:"conflicts" yaml:"conflicts"`
}

// Counts summarizes the report per kind
func (r *Report) Counts() map[Kind]OutcomeCounts {
	counts := make(map[Kind]OutcomeCounts, len(r.Entries))
	for kind, entries := range r.Entries {
		var c OutcomeCounts
		for _, entry := range entries {
			switch entry.Classification {
			case Fix:
				c.Fixes++
			case Conflict:
				c.Conflicts++
			}
		}
		counts[kind] = c
	}
	return counts
}

// Totals sums Counts over all kinds
func (r *Report) Totals() OutcomeCounts {
	var total OutcomeCounts
	for _, c := range r.Counts() {
		total.Fixes += c.Fixes
		total.Conflicts += c.Conflicts
	}
	return total
}

// HasConflicts reports whether any entry needs operator action
func (r *Report) HasConflicts() bool {
	return r.Totals().Conflicts > 0
}

// Validate checks if the Report has all required fields
func (r *Report) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("report ID cannot be empty")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("report timestamp cannot be zero")
	}
	for kind, entries := range r.Entries {
		for id, entry := range entries {
			if entry.ResourceID != id || entry.Kind != kind {
				return fmt.Errorf("entry %s/%s is filed under %s/%s", entry.Kind, entry.ResourceID, kind, id)
			}
			if !entry.Classification.IsValid() {
				return fmt.Errorf("entry %s/%s has invalid classification %q", kind, id, entry.Classification)
			}
		}
	}
	return nil
}

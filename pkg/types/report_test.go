package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestReport_AddLastWriterWins(t *testing.T) {
	r := NewReport("r-1", time.Now())
	change := ChangeRecord{ID: "vm-1", Tag: Added}

	r.Add(NewConflict(KindInstances, change, "first"))
	r.Add(NewFix(KindInstances, change, "second"))

	entry, ok := r.Get(KindInstances, "vm-1")
	require.True(t, ok)
	assert.Equal(t, Fix, entry.Classification)
	assert.Equal(t, "second", entry.Explanation)
	assert.Equal(t, 1, r.Len())
}

func TestReport_NewReportDoesNotShareEntries(t *testing.T) {
	a := NewReport("a", time.Now())
	b := NewReport("b", time.Now())

	a.Add(NewFix(KindImages, ChangeRecord{ID: "img-1", Tag: Added}, "deleted"))

	assert.Equal(t, 0, b.Len())
}

func TestReport_Union(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	a := NewReport("a", t1)
	a.Add(NewConflict(KindInstances, ChangeRecord{ID: "vm-1", Tag: Deleted}, "vm-1 was deleted"))

	b := NewReport("b", t2)
	b.Add(NewFix(KindInstances, ChangeRecord{ID: "vm-1", Tag: Added}, "vm-1 deleted"))
	b.Add(NewFix(KindVolumes, ChangeRecord{ID: "vol-1", Tag: Added}, "vol-1 deleted"))

	a.Union(b, FieldTimestamp)

	assert.Equal(t, t1, a.Timestamp)
	assert.Equal(t, 2, a.Len())
	entry, _ := a.Get(KindInstances, "vm-1")
	assert.Equal(t, Fix, entry.Classification, "later union overrides earlier entry")
}

func TestReport_UnionCommutativeOnDisjointIDs(t *testing.T) {
	ts := time.Now()
	mk := func(kind Kind, id string, outcome Outcome) *Report {
		r := NewReport(id, ts)
		r.Add(ReportEntry{ResourceID: id, Kind: kind, Classification: outcome, Explanation: id})
		return r
	}

	ab := mk(KindInstances, "vm-1", Fix)
	ab.Union(mk(KindImages, "img-1", Conflict))

	ba := mk(KindImages, "img-1", Conflict)
	ba.Union(mk(KindInstances, "vm-1", Fix))

	assert.Equal(t, ab.Entries, ba.Entries)
}

func TestReport_CountsAndConflicts(t *testing.T) {
	r := NewReport("r", time.Now())
	r.Add(NewFix(KindInstances, ChangeRecord{ID: "vm-2", Tag: Added}, "deleted"))
	r.Add(NewConflict(KindInstances, ChangeRecord{ID: "vm-1", Tag: Deleted}, "gone"))
	r.Add(NewConflict(KindImages, ChangeRecord{ID: "img-1", Tag: Changed}, "checksum"))

	counts := r.Counts()
	assert.Equal(t, OutcomeCounts{Fixes: 1, Conflicts: 1}, counts[KindInstances])
	assert.Equal(t, OutcomeCounts{Conflicts: 1}, counts[KindImages])
	assert.Equal(t, OutcomeCounts{Fixes: 1, Conflicts: 2}, r.Totals())
	assert.True(t, r.HasConflicts())

	conflicts := r.Conflicts()
	require.Len(t, conflicts, 2)
	assert.Equal(t, "img-1", conflicts[0].ResourceID)
	assert.Equal(t, "vm-1", conflicts[1].ResourceID)
}

func TestReport_SerializesAsNestedMapping(t *testing.T) {
	r := NewReport("r", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r.Add(NewConflict(KindInstances, ChangeRecord{
		ID:     "vm-1",
		Tag:    Changed,
		Fields: map[string]FieldChange{"name": {Previous: Absent, Current: "web"}},
	}, "rename"))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	entries := decoded["entries"].(map[string]any)
	entry := entries["instances"].(map[string]any)["vm-1"].(map[string]any)
	assert.Equal(t, "CONFLICT", entry["classification"])
	assert.Equal(t, "rename", entry["explanation"])

	fields := entry["change"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, map[string]any{"absent": true}, fields["name"].(map[string]any)["previous"])
}

func TestFieldChange_AbsentRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		marshal   func(any) ([]byte, error)
		unmarshal func([]byte, any) error
	}{
		{"json", json.Marshal, json.Unmarshal},
		{"yaml", yaml.Marshal, yaml.Unmarshal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := map[string]FieldChange{
				"name":   {Previous: Absent, Current: "web"},
				"status": {Previous: "<absent>", Current: Absent},
			}
			data, err := tt.marshal(in)
			require.NoError(t, err)

			var out map[string]FieldChange
			require.NoError(t, tt.unmarshal(data, &out))

			assert.True(t, IsAbsent(out["name"].Previous))
			assert.Equal(t, "web", out["name"].Current)
			assert.False(t, IsAbsent(out["status"].Previous), "a literal string is not the sentinel")
			assert.Equal(t, "<absent>", out["status"].Previous)
			assert.True(t, IsAbsent(out["status"].Current))
		})
	}
}

func TestReport_Validate(t *testing.T) {
	r := NewReport("r", time.Now())
	r.Add(NewFix(KindImages, ChangeRecord{ID: "img-1", Tag: Added}, "deleted"))
	assert.NoError(t, r.Validate())

	r.Entries[KindImages]["img-2"] = r.Entries[KindImages]["img-1"]
	assert.Error(t, r.Validate())

	assert.Error(t, NewReport("", time.Now()).Validate())
}

func TestChangeRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  ChangeRecord
		wantErr bool
	}{
		{name: "added", change: ChangeRecord{ID: "a", Tag: Added}},
		{name: "added with fields", change: ChangeRecord{ID: "a", Tag: Added, Fields: map[string]FieldChange{"x": {}}}, wantErr: true},
		{name: "changed without fields", change: ChangeRecord{ID: "a", Tag: Changed}, wantErr: true},
		{name: "bad tag", change: ChangeRecord{ID: "a", Tag: "moved"}, wantErr: true},
		{name: "missing id", change: ChangeRecord{Tag: Deleted}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("ChangeRecord.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAbsent(t *testing.T) {
	assert.True(t, IsAbsent(Absent))
	assert.False(t, IsAbsent(""))
	assert.False(t, IsAbsent(nil))
	assert.NotEqual(t, Absent, "")
}

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/palautus/internal/engine"
	"github.com/yairfalse/palautus/internal/rollback"
	"github.com/yairfalse/palautus/internal/storage"
	"github.com/yairfalse/palautus/pkg/types"
)

func testReport() *types.Report {
	report := types.NewReport("rep-1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	report.BaselineID = "snap-1"

	report.Add(types.NewFix(types.KindInstances, types.ChangeRecord{
		ID:     "vm-1",
		Tag:    types.Changed,
		Fields: map[string]types.FieldChange{"status": {Previous: "active", Current: "shutoff"}},
	}, "changed status %s -> %s", "shutoff", "active"))

	report.Add(types.NewConflict(types.KindImages, types.ChangeRecord{
		ID:  "img-1",
		Tag: types.Deleted,
	}, "image %s was deleted; re-upload it from the migration source", "img-1"))

	return report
}

func testChanges() map[types.Kind]map[string]types.ChangeRecord {
	return map[types.Kind]map[string]types.ChangeRecord{
		types.KindVolumes: {
			"vol-1": {
				ID:  "vol-1",
				Tag: types.Changed,
				Fields: map[string]types.FieldChange{
					"status":      {Previous: "in-use", Current: "available"},
					"attachments": {Previous: []any{map[string]any{"server_id": "vm-1"}}, Current: []any{}},
				},
			},
		},
		types.KindInstances: {
			"vm-9": {ID: "vm-9", Tag: types.Added},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{"yaml", FormatYAML, false},
		{"markdown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatter_ReportTable(t *testing.T) {
	f, err := NewFormatter("table", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Report(&buf, testReport()))
	out := buf.String()

	assert.Contains(t, out, "Reconciliation Report")
	assert.Contains(t, out, "snap-1")
	assert.Contains(t, out, "instances (1)")
	assert.Contains(t, out, "images (1)")
	assert.Contains(t, out, "changed status shutoff -> active")
	assert.Contains(t, out, "Summary: 1 fix, 1 conflict")
	assert.NotContains(t, out, "\x1b[", "buffers are not terminals")
	assert.Less(t, strings.Index(out, "instances"), strings.Index(out, "images"), "kinds follow reconcile order")
}

func TestFormatter_EmptyReportTable(t *testing.T) {
	f, err := NewFormatter("table", true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Report(&buf, types.NewReport("rep-2", time.Now())))
	assert.Contains(t, buf.String(), "No divergences")
}

func TestFormatter_ReportJSON(t *testing.T) {
	f, err := NewFormatter("json", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Report(&buf, testReport()))

	var decoded types.Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	entry, ok := decoded.Get(types.KindImages, "img-1")
	require.True(t, ok)
	assert.Equal(t, types.Conflict, entry.Classification)
	assert.Equal(t, types.Deleted, entry.Change.Tag)
}

func TestFormatter_ReportYAML(t *testing.T) {
	f, err := NewFormatter("yaml", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Report(&buf, testReport()))
	out := buf.String()

	assert.Contains(t, out, "baseline_id: snap-1")
	assert.Contains(t, out, "classification: CONFLICT")
	assert.Contains(t, out, "resource_id: vm-1")
}

func TestFormatter_DiffTable(t *testing.T) {
	f, err := NewFormatter("table", true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Diff(&buf, testChanges()))
	out := buf.String()

	assert.Contains(t, out, "+++ instances/vm-9 (not in baseline)")
	assert.Contains(t, out, "--- volumes/vol-1")
	assert.Contains(t, out, "-status: in-use")
	assert.Contains(t, out, "+status: available")
	assert.Contains(t, out, `-attachments: [{"server_id":"vm-1"}]`)
	assert.Contains(t, out, "1 additions, 0 deletions, 1 modifications")
	assert.Less(t, strings.Index(out, "@@ attachments @@"), strings.Index(out, "@@ status @@"))
}

func TestFormatter_DiffNoChanges(t *testing.T) {
	f, err := NewFormatter("table", true)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Diff(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestFormatter_DiffJSON(t *testing.T) {
	f, err := NewFormatter("json", false)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Diff(&buf, testChanges()))

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "instances", entries[0]["kind"])
	assert.Equal(t, "added", entries[0]["tag"])
	assert.Equal(t, "vol-1", entries[1]["id"])
}

func TestFormatter_Run(t *testing.T) {
	started := time.Now()
	result := &engine.Result{
		RunID:     "run-1",
		Directive: rollback.Continue,
		Report:    testReport(),
		Baseline:  &types.Snapshot{ID: "snap-1"},
		Failures: []engine.Failure{
			{Kind: types.KindVolumes, ResourceID: "vol-2", Message: "attach failed"},
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}

	t.Run("table", func(t *testing.T) {
		f, err := NewFormatter("table", true)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.Run(&buf, result))
		out := buf.String()
		assert.Contains(t, out, "Directive:")
		assert.Contains(t, out, "CONTINUE")
		assert.Contains(t, out, "Failures (1)")
		assert.Contains(t, out, "volumes/vol-2: attach failed")
		assert.Contains(t, out, "1.5s")
	})

	t.Run("json", func(t *testing.T) {
		f, err := NewFormatter("json", false)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, f.Run(&buf, result))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded["run_id"])
		assert.Equal(t, "snap-1", decoded["baseline_id"])
		totals := decoded["totals"].(map[string]any)
		assert.EqualValues(t, 1, totals["fixes"])
		assert.EqualValues(t, 1, totals["conflicts"])
		assert.Len(t, decoded["failures"], 1)
	})
}

func TestFormatter_Lists(t *testing.T) {
	f, err := NewFormatter("table", true)
	require.NoError(t, err)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, f.SnapshotList(&buf, nil))
	assert.Contains(t, buf.String(), "No snapshots found.")

	buf.Reset()
	require.NoError(t, f.SnapshotList(&buf, []storage.SnapshotInfo{{
		ID:            "snap-1",
		Name:          "pre-migration",
		Timestamp:     ts,
		ResourceCount: 3,
		Kinds:         map[string]int{"volumes": 1, "instances": 2},
		FileSize:      2048,
	}}))
	assert.Contains(t, buf.String(), "pre-migration")
	assert.Contains(t, buf.String(), "instances=2 volumes=1")
	assert.Contains(t, buf.String(), "2.0 KB")

	buf.Reset()
	require.NoError(t, f.ReportList(&buf, []storage.ReportInfo{{
		ID: "rep-1", BaselineID: "snap-1", Timestamp: ts, Fixes: 4, Conflicts: 1, FileSize: 100,
	}}))
	assert.Contains(t, buf.String(), "rep-1")
	assert.Contains(t, buf.String(), "100 B")

	buf.Reset()
	require.NoError(t, f.History(&buf, []storage.RunRecord{{
		RunID: "0123456789", BaselineID: "snap-1", Directive: "ABORT",
		Aborted: true, StartedAt: ts, FinishedAt: ts.Add(2 * time.Minute),
	}}))
	assert.Contains(t, buf.String(), "01234...")
	assert.Contains(t, buf.String(), "aborted")
	assert.Contains(t, buf.String(), "2m0s")
}

func TestUnixFormatter_NameOnlyAndStat(t *testing.T) {
	u := NewUnixFormatter(true)

	assert.Equal(t, "instances/vm-9\nvolumes/vol-1\n", string(u.FormatNameOnly(testChanges())))
	assert.Empty(t, u.FormatNameOnly(nil))

	stat := string(u.FormatStat(testChanges()))
	assert.Contains(t, stat, "instances | 1 change +1 -0 ~0")
	assert.Contains(t, stat, "2 kinds, 2 resources")
}

func TestSpinner_NonInteractive(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinner(&buf, "Capturing instances", true)

	s.Start()
	s.Update("Capturing volumes")
	s.Stop()
	s.Stop()

	assert.Equal(t, "Capturing instances...\nCapturing volumes...\n", buf.String())
}

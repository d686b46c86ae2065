package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/yairfalse/palautus/internal/engine"
	"github.com/yairfalse/palautus/internal/storage"
	"github.com/yairfalse/palautus/pkg/types"
)

// Format represents the available output formats
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// TimeFormat is used for timestamps in table output
const TimeFormat = "2006-01-02 15:04:05"

// ParseFormat converts a string to a Format
func ParseFormat(format string) (Format, error) {
	switch strings.ToLower(format) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}

// Formatter renders snapshots, reports and run summaries
type Formatter struct {
	format  Format
	noColor bool
}

// NewFormatter creates a formatter based on format type
func NewFormatter(format string, noColor bool) (*Formatter, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &Formatter{format: f, noColor: noColor}, nil
}

// Format returns the configured output format
func (f *Formatter) Format() Format {
	return f.format
}

// ColorEnabled reports whether table output to w should be colored
func (f *Formatter) ColorEnabled(w io.Writer) bool {
	if f.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// Report writes a reconciliation report
func (f *Formatter) Report(w io.Writer, report *types.Report) error {
	if f.format != FormatTable {
		return f.encode(w, report)
	}
	newTable(w, f.ColorEnabled(w)).report(report)
	return nil
}

// Run writes the result of a reconcile run: the report plus failures
func (f *Formatter) Run(w io.Writer, result *engine.Result) error {
	if f.format != FormatTable {
		return f.encode(w, runView(result))
	}
	t := newTable(w, f.ColorEnabled(w))
	t.report(result.Report)
	t.run(result)
	return nil
}

// Diff writes the divergences between a baseline and the live state
func (f *Formatter) Diff(w io.Writer, changes map[types.Kind]map[string]types.ChangeRecord) error {
	if f.format != FormatTable {
		return f.encode(w, diffView(changes))
	}
	NewUnixFormatter(!f.ColorEnabled(w)).WriteDiff(w, changes)
	return nil
}

// Snapshot writes a single snapshot
func (f *Formatter) Snapshot(w io.Writer, snapshot *types.Snapshot) error {
	if f.format != FormatTable {
		return f.encode(w, snapshot)
	}
	newTable(w, f.ColorEnabled(w)).snapshot(snapshot)
	return nil
}

// SnapshotList writes stored snapshot metadata
func (f *Formatter) SnapshotList(w io.Writer, snapshots []storage.SnapshotInfo) error {
	if f.format != FormatTable {
		return f.encode(w, snapshots)
	}
	newTable(w, f.ColorEnabled(w)).snapshotList(snapshots)
	return nil
}

// ReportList writes stored report metadata
func (f *Formatter) ReportList(w io.Writer, reports []storage.ReportInfo) error {
	if f.format != FormatTable {
		return f.encode(w, reports)
	}
	newTable(w, f.ColorEnabled(w)).reportList(reports)
	return nil
}

// History writes past runs
func (f *Formatter) History(w io.Writer, runs []storage.RunRecord) error {
	if f.format != FormatTable {
		return f.encode(w, runs)
	}
	newTable(w, f.ColorEnabled(w)).history(runs)
	return nil
}

func (f *Formatter) encode(w io.Writer, v any) error {
	switch f.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// runSummary is the machine-readable form of an engine.Result
type runSummary struct {
	RunID      string                             `json:"run_id" yaml:"run_id"`
	BaselineID string                             `json:"baseline_id" yaml:"baseline_id"`
	CurrentID  string                             `json:"current_id,omitempty" yaml:"current_id,omitempty"`
	Directive  string                             `json:"directive" yaml:"directive"`
	Restarts   int                                `json:"restarts" yaml:"restarts"`
	Aborted    bool                               `json:"aborted" yaml:"aborted"`
	Totals     types.OutcomeCounts                `json:"totals" yaml:"totals"`
	Counts     map[types.Kind]types.OutcomeCounts `json:"counts" yaml:"counts"`
	Failures   []engine.Failure                   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Report     *types.Report                      `json:"report" yaml:"report"`
}

func runView(result *engine.Result) runSummary {
	view := runSummary{
		RunID:     result.RunID,
		Directive: result.Directive.String(),
		Restarts:  result.Restarts,
		Aborted:   result.Aborted,
		Failures:  result.Failures,
		Report:    result.Report,
	}
	if result.Baseline != nil {
		view.BaselineID = result.Baseline.ID
	}
	if result.Current != nil {
		view.CurrentID = result.Current.ID
	}
	if result.Report != nil {
		view.Totals = result.Report.Totals()
		view.Counts = result.Report.Counts()
	}
	return view
}

// diffEntry is the machine-readable form of one divergence
type diffEntry struct {
	Kind   types.Kind                   `json:"kind" yaml:"kind"`
	ID     string                       `json:"id" yaml:"id"`
	Tag    types.ChangeTag              `json:"tag" yaml:"tag"`
	Fields map[string]types.FieldChange `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func diffView(changes map[types.Kind]map[string]types.ChangeRecord) []diffEntry {
	entries := make([]diffEntry, 0)
	for _, kind := range orderedKinds(changes) {
		for _, id := range sortedIDs(changes[kind]) {
			change := changes[kind][id]
			entries = append(entries, diffEntry{Kind: kind, ID: id, Tag: change.Tag, Fields: change.Fields})
		}
	}
	return entries
}

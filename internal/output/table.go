package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/yairfalse/palautus/internal/engine"
	"github.com/yairfalse/palautus/internal/storage"
	"github.com/yairfalse/palautus/pkg/types"
)

// table renders human readable output with tabwriter
type table struct {
	out      io.Writer
	colorize bool
}

func newTable(out io.Writer, colorize bool) *table {
	return &table{out: out, colorize: colorize}
}

func (t *table) paint(text string, attrs ...color.Attribute) string {
	c := color.New(attrs...)
	if t.colorize {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.Sprint(text)
}

func (t *table) outcome(o types.Outcome) string {
	switch o {
	case types.Fix:
		return t.paint(string(o), color.FgGreen, color.Bold)
	case types.Conflict:
		return t.paint(string(o), color.FgRed, color.Bold)
	default:
		return string(o)
	}
}

func (t *table) report(report *types.Report) {
	fmt.Fprintf(t.out, "%s\n", t.paint("Reconciliation Report", color.Bold))
	fmt.Fprintf(t.out, "=====================\n")

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", report.ID)
	if report.BaselineID != "" {
		fmt.Fprintf(w, "Baseline:\t%s\n", report.BaselineID)
	}
	if report.CurrentID != "" {
		fmt.Fprintf(w, "Current:\t%s\n", report.CurrentID)
	}
	fmt.Fprintf(w, "Timestamp:\t%s\n", report.Timestamp.Local().Format(TimeFormat))
	w.Flush()
	fmt.Fprintln(t.out)

	if report.Len() == 0 {
		fmt.Fprintln(t.out, "No divergences - live state matches the baseline.")
		return
	}

	for _, kind := range orderedKinds(report.Entries) {
		entries := report.Entries[kind]
		fmt.Fprintf(t.out, "%s (%d)\n", t.paint(string(kind), color.FgCyan, color.Bold), len(entries))

		w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  RESOURCE\tCHANGE\tOUTCOME\tEXPLANATION\n")
		for _, id := range sortedIDs(entries) {
			entry := entries[id]
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
				truncateString(id, 40),
				entry.Change.Tag,
				t.outcome(entry.Classification),
				entry.Explanation,
			)
		}
		w.Flush()
		fmt.Fprintln(t.out)
	}

	totals := report.Totals()
	fmt.Fprintf(t.out, "%s %s, %s\n",
		t.paint("Summary:", color.Bold),
		t.paint(plural(totals.Fixes, "fix", "fixes"), color.FgGreen),
		t.paint(plural(totals.Conflicts, "conflict", "conflicts"), color.FgRed),
	)
}

func (t *table) run(result *engine.Result) {
	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Run:\t%s\n", result.RunID)
	fmt.Fprintf(w, "Directive:\t%s\n", result.Directive)
	fmt.Fprintf(w, "Restarts:\t%d\n", result.Restarts)
	fmt.Fprintf(w, "Duration:\t%s\n", formatDuration(result.FinishedAt.Sub(result.StartedAt)))
	w.Flush()

	if len(result.Failures) > 0 {
		fmt.Fprintf(t.out, "\n%s\n", t.paint(fmt.Sprintf("Failures (%d)", len(result.Failures)), color.FgRed, color.Bold))
		for _, failure := range result.Failures {
			fmt.Fprintf(t.out, "  %s/%s: %s\n", failure.Kind, failure.ResourceID, failure.Message)
		}
	}
	if result.Aborted {
		fmt.Fprintf(t.out, "\n%s\n", t.paint("Run aborted after a failed repair; the report is partial.", color.FgYellow))
	}
}

func (t *table) snapshot(snapshot *types.Snapshot) {
	fmt.Fprintf(t.out, "%s\n", t.paint("Snapshot", color.Bold))
	fmt.Fprintf(t.out, "========\n")

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", snapshot.ID)
	if snapshot.Name != "" {
		fmt.Fprintf(w, "Name:\t%s\n", snapshot.Name)
	}
	fmt.Fprintf(w, "Timestamp:\t%s\n", snapshot.Timestamp.Local().Format(TimeFormat))
	fmt.Fprintf(w, "Resources:\t%d\n", snapshot.ResourceCount())
	w.Flush()
	fmt.Fprintln(t.out)

	for _, kind := range snapshot.Kinds() {
		records := snapshot.Records(kind)
		fmt.Fprintf(t.out, "%s (%d)\n", t.paint(string(kind), color.FgCyan, color.Bold), len(records))

		w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "  ID\tNAME\tSTATUS\n")
		for _, id := range sortedIDs(records) {
			record := records[id]
			fmt.Fprintf(w, "  %s\t%s\t%s\n",
				truncateString(id, 40),
				orDash(truncateString(record.String("name"), 30)),
				orDash(record.String("status")),
			)
		}
		w.Flush()
		fmt.Fprintln(t.out)
	}
}

func (t *table) snapshotList(snapshots []storage.SnapshotInfo) {
	if len(snapshots) == 0 {
		fmt.Fprintln(t.out, "No snapshots found.")
		return
	}

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tCREATED\tRESOURCES\tKINDS\tSIZE\n")
	for _, info := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			info.ID,
			orDash(info.Name),
			info.Timestamp.Local().Format(TimeFormat),
			info.ResourceCount,
			kindCounts(info.Kinds),
			formatFileSize(info.FileSize),
		)
	}
	w.Flush()
}

func (t *table) reportList(reports []storage.ReportInfo) {
	if len(reports) == 0 {
		fmt.Fprintln(t.out, "No reports found.")
		return
	}

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tBASELINE\tCREATED\tFIXES\tCONFLICTS\tSIZE\n")
	for _, info := range reports {
		conflicts := fmt.Sprintf("%d", info.Conflicts)
		if info.Conflicts > 0 {
			conflicts = t.paint(conflicts, color.FgRed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			info.ID,
			orDash(info.BaselineID),
			info.Timestamp.Local().Format(TimeFormat),
			info.Fixes,
			conflicts,
			formatFileSize(info.FileSize),
		)
	}
	w.Flush()
}

func (t *table) history(runs []storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(t.out, "No reconciliation runs recorded.")
		return
	}

	w := tabwriter.NewWriter(t.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STARTED\tRUN\tBASELINE\tDIRECTIVE\tFIXES\tCONFLICTS\tFAILURES\tDURATION\tSTATUS\n")
	for _, run := range runs {
		status := t.paint("ok", color.FgGreen)
		switch {
		case run.Aborted:
			status = t.paint("aborted", color.FgRed)
		case run.Conflicts > 0:
			status = t.paint("conflicts", color.FgYellow)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(TimeFormat),
			truncateString(run.RunID, 8),
			run.BaselineID,
			run.Directive,
			run.Fixes,
			run.Conflicts,
			run.Failures,
			formatDuration(run.Duration()),
			status,
		)
	}
	w.Flush()
}

// orderedKinds returns the keys of m in reconcile order, unknown kinds last
func orderedKinds[V any](m map[types.Kind]V) []types.Kind {
	seen := make(map[types.Kind]bool, len(m))
	kinds := make([]types.Kind, 0, len(m))
	for _, kind := range types.AllKinds {
		if _, ok := m[kind]; ok {
			kinds = append(kinds, kind)
			seen[kind] = true
		}
	}
	var extra []types.Kind
	for kind := range m {
		if !seen[kind] {
			extra = append(extra, kind)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(kinds, extra...)
}

func sortedIDs[V any](m map[string]V) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func kindCounts(kinds map[string]int) string {
	if len(kinds) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(kinds))
	for _, kind := range types.AllKinds {
		if n, ok := kinds[string(kind)]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, n))
		}
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// formatFileSize formats bytes as a human readable size
func formatFileSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

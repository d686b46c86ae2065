package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/yairfalse/palautus/internal/differ"
	"github.com/yairfalse/palautus/pkg/types"
)

// UnixFormatter provides simple Unix-style output similar to git diff
type UnixFormatter struct {
	noColor bool
}

// NewUnixFormatter creates a new Unix-style formatter
func NewUnixFormatter(noColor bool) *UnixFormatter {
	return &UnixFormatter{
		noColor: noColor,
	}
}

func (u *UnixFormatter) paint(text string, attr color.Attribute) string {
	c := color.New(attr)
	if u.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(text)
}

// WriteDiff writes changes in a git diff-like format. Nothing is written
// when there are no changes.
func (u *UnixFormatter) WriteDiff(w io.Writer, changes map[types.Kind]map[string]types.ChangeRecord) {
	if len(changes) == 0 {
		return
	}

	for _, kind := range orderedKinds(changes) {
		for _, id := range differ.SortedIDs(changes[kind]) {
			change := changes[kind][id]
			resource := fmt.Sprintf("%s/%s", kind, id)

			switch change.Tag {
			case types.Added:
				fmt.Fprintln(w, u.paint("+++ "+resource+" (not in baseline)", color.FgGreen))
			case types.Deleted:
				fmt.Fprintln(w, u.paint("--- "+resource+" (missing from live state)", color.FgRed))
			default:
				fmt.Fprintf(w, "--- %s\n+++ %s\n", resource, resource)
				for _, field := range change.FieldNames() {
					fc := change.Fields[field]
					fmt.Fprintln(w, u.paint(fmt.Sprintf("@@ %s @@", field), color.FgCyan))
					fmt.Fprintln(w, u.paint(fmt.Sprintf("-%s: %s", field, formatValue(fc.Previous)), color.FgRed))
					fmt.Fprintln(w, u.paint(fmt.Sprintf("+%s: %s", field, formatValue(fc.Current)), color.FgGreen))
				}
			}
			fmt.Fprintln(w)
		}
	}

	var total differ.Summary
	for _, s := range differ.Summarize(changes) {
		total.Added += s.Added
		total.Deleted += s.Deleted
		total.Changed += s.Changed
	}
	fmt.Fprintf(w, "%d additions, %d deletions, %d modifications\n", total.Added, total.Deleted, total.Changed)
}

// FormatNameOnly lists the diverged resources, one kind/id per line
func (u *UnixFormatter) FormatNameOnly(changes map[types.Kind]map[string]types.ChangeRecord) []byte {
	var resources []string
	for _, kind := range orderedKinds(changes) {
		for _, id := range differ.SortedIDs(changes[kind]) {
			resources = append(resources, fmt.Sprintf("%s/%s", kind, id))
		}
	}
	if len(resources) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(resources, "\n") + "\n")
}

// FormatStat provides statistics output (like git diff --stat)
func (u *UnixFormatter) FormatStat(changes map[types.Kind]map[string]types.ChangeRecord) []byte {
	if len(changes) == 0 {
		return []byte{}
	}

	var output strings.Builder
	summaries := differ.Summarize(changes)
	total := 0
	for _, kind := range orderedKinds(summaries) {
		s := summaries[kind]
		total += s.Total()
		output.WriteString(fmt.Sprintf(" %s | %s %s\n", kind, plural(s.Total(), "change", "changes"), s))
	}
	output.WriteString(fmt.Sprintf(" %s, %s\n", plural(len(summaries), "kind", "kinds"), plural(total, "resource", "resources")))
	return []byte(output.String())
}

func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any, []any:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

func plural(count int, singular, many string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, many)
}

package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tordrt/schemacheck/internal/report"
)

// MarkdownFormatter formats a report as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the report in markdown format
func (f *MarkdownFormatter) Format(r *report.Report) error {
	_, _ = fmt.Fprintln(f.writer, "# Consistency Check Report")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "- **Run:** %s\n", r.RunID)
	_, _ = fmt.Fprintf(f.writer, "- **Generated:** %s\n", r.GeneratedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(f.writer, "- **Tables:** %d\n", len(r.Tables))
	_, _ = fmt.Fprintln(f.writer)

	f.FormatSummary(r.Summary)

	_, _ = fmt.Fprintln(f.writer, "## Findings")
	_, _ = fmt.Fprintln(f.writer)
	for _, table := range r.Tables {
		f.FormatTable(r, table, "###")
	}

	if len(r.FixSuggestions) > 0 {
		_, _ = fmt.Fprintln(f.writer, "## Fix Suggestions")
		_, _ = fmt.Fprintln(f.writer)
		f.FormatFixes(r.FixSuggestions, "###")
	}
	return nil
}

// FormatSummary writes the per-severity count table (exported for use by multifile formatter)
func (f *MarkdownFormatter) FormatSummary(s report.Summary) {
	_, _ = fmt.Fprintln(f.writer, "## Summary")
	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintln(f.writer, "| Severity | Count |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|")
	for i := len(report.Severities) - 1; i >= 0; i-- {
		sev := report.Severities[i]
		_, _ = fmt.Fprintf(f.writer, "| %s | %d |\n", sev, s.Count(sev))
	}
	_, _ = fmt.Fprintf(f.writer, "| **Total** | %d |\n", s.Total)
	_, _ = fmt.Fprintln(f.writer)
}

// FormatTable writes the results of one table under a heading of the given level
func (f *MarkdownFormatter) FormatTable(r *report.Report, table, heading string) {
	_, _ = fmt.Fprintf(f.writer, "%s %s\n\n", heading, table)

	results := r.ResultsFor(table)
	if len(results) == 0 {
		_, _ = fmt.Fprintln(f.writer, "No results.")
		_, _ = fmt.Fprintln(f.writer)
		return
	}

	_, _ = fmt.Fprintln(f.writer, "| Severity | Check | Message | Details |")
	_, _ = fmt.Fprintln(f.writer, "|---|---|---|---|")
	for _, res := range results {
		details := detailText(res.Details)
		if loc := location(res); loc != "" {
			details = strings.TrimSpace(loc + " " + details)
		}
		_, _ = fmt.Fprintf(f.writer, "| %s | %s | %s | %s |\n",
			res.Severity, res.Check, cell(res.Message), cell(details))
	}
	_, _ = fmt.Fprintln(f.writer)
}

// FormatFixes writes fix suggestions with their generated content as code blocks
func (f *MarkdownFormatter) FormatFixes(fixes []report.FixSuggestion, heading string) {
	for _, fix := range fixes {
		_, _ = fmt.Fprintf(f.writer, "%s %s: %s\n\n", heading, fix.Table, fix.Kind)
		_, _ = fmt.Fprintf(f.writer, "%s%s\n\n", fix.Description, fixFlags(fix))
		if fix.Content == "" {
			continue
		}
		lang := "sql"
		if fix.Kind == report.FixYAML {
			lang = "yaml"
		}
		_, _ = fmt.Fprintf(f.writer, "```%s\n%s\n```\n\n", lang, strings.TrimRight(fix.Content, "\n"))
	}
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

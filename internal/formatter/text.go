package formatter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tordrt/schemacheck/internal/report"
)

// TextFormatter formats a report as compact console text
type TextFormatter struct {
	writer io.Writer
	color  bool
	styles map[report.Severity]lipgloss.Style
}

// NewTextFormatter creates a new text formatter. With color set, severity
// labels are styled.
func NewTextFormatter(w io.Writer, color bool) *TextFormatter {
	return &TextFormatter{
		writer: w,
		color:  color,
		styles: map[report.Severity]lipgloss.Style{
			report.SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
			report.SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			report.SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
			report.SeveritySuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		},
	}
}

// Format writes the findings, the summary and the fix suggestions
func (f *TextFormatter) Format(r *report.Report) error {
	_, _ = fmt.Fprintf(f.writer, "CONSISTENCY CHECK %s (%d tables, run %s)\n",
		r.GeneratedAt.Format(time.RFC3339), len(r.Tables), r.RunID)

	for _, table := range r.Tables {
		f.formatTable(r, table)
	}

	_, _ = fmt.Fprintln(f.writer)
	_, _ = fmt.Fprintf(f.writer, "SUMMARY: %s %d, %s %d, %s %d, %s %d (total %d)\n",
		f.label(report.SeverityError), r.Summary.Error,
		f.label(report.SeverityWarning), r.Summary.Warning,
		f.label(report.SeverityInfo), r.Summary.Info,
		f.label(report.SeveritySuccess), r.Summary.Success,
		r.Summary.Total)

	if len(r.FixSuggestions) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "FIX SUGGESTIONS:")
		for _, fix := range r.FixSuggestions {
			_, _ = fmt.Fprintf(f.writer, "  [%s] %s: %s%s\n", fix.Kind, fix.Table, fix.Description, fixFlags(fix))
			if fix.Content != "" {
				for _, line := range strings.Split(strings.TrimRight(fix.Content, "\n"), "\n") {
					_, _ = fmt.Fprintf(f.writer, "      %s\n", line)
				}
			}
		}
	}
	return nil
}

func (f *TextFormatter) formatTable(r *report.Report, table string) {
	var findings []report.CheckResult
	for _, res := range r.ResultsFor(table) {
		if res.Severity != report.SeveritySuccess {
			findings = append(findings, res)
		}
	}

	if len(findings) == 0 {
		_, _ = fmt.Fprintf(f.writer, "\nTABLE %s: %s\n", table, f.label(report.SeveritySuccess))
		return
	}
	_, _ = fmt.Fprintf(f.writer, "\nTABLE %s\n", table)
	for _, res := range findings {
		_, _ = fmt.Fprintf(f.writer, "  %s %s: %s\n", f.label(res.Severity), res.Check, res.Message)
		if loc := location(res); loc != "" {
			_, _ = fmt.Fprintf(f.writer, "    at %s\n", loc)
		}
		if details := detailText(res.Details); details != "" {
			_, _ = fmt.Fprintf(f.writer, "    %s\n", details)
		}
	}
}

func (f *TextFormatter) label(sev report.Severity) string {
	text := string(sev)
	if !f.color {
		return text
	}
	return f.styles[sev].Render(text)
}

// detailText renders details other than issue_type as key=value pairs in key order.
func detailText(d report.Details) string {
	var parts []string
	for _, k := range d.Keys() {
		if k == report.KeyIssueType {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s", k, d[k]))
	}
	return strings.Join(parts, " ")
}

func location(res report.CheckResult) string {
	switch {
	case res.File != "" && res.Line > 0:
		return fmt.Sprintf("%s:%d", res.File, res.Line)
	case res.File != "":
		return res.File
	}
	return ""
}

func fixFlags(fix report.FixSuggestion) string {
	var flags []string
	if fix.Critical {
		flags = append(flags, "critical")
	}
	if fix.BackupRequired {
		flags = append(flags, "backup required")
	}
	if len(flags) == 0 {
		return ""
	}
	return " (" + strings.Join(flags, ", ") + ")"
}

package formatter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tordrt/schemacheck/internal/report"
)

// MultiFileFormatter writes a report to multiple files in a directory
type MultiFileFormatter struct {
	OutputDir    string
	OutputFormat string // "text" or "markdown"
}

// NewMultiFileFormatter creates a new multi-file formatter
func NewMultiFileFormatter(outputDir, format string) *MultiFileFormatter {
	if format != FormatText {
		format = FormatMarkdown
	}
	return &MultiFileFormatter{
		OutputDir:    outputDir,
		OutputFormat: format,
	}
}

// Format writes the overview file and one file per table
func (f *MultiFileFormatter) Format(r *report.Report) error {
	if err := os.MkdirAll(f.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := f.writeFile("_overview", func(w io.Writer) { f.writeOverview(w, r) }); err != nil {
		return fmt.Errorf("failed to write overview: %w", err)
	}

	for _, table := range r.Tables {
		if err := f.writeFile(table, func(w io.Writer) { f.writeTable(w, r, table) }); err != nil {
			return fmt.Errorf("failed to write report file for %s: %w", table, err)
		}
	}
	return nil
}

func (f *MultiFileFormatter) writeFile(name string, write func(io.Writer)) error {
	file, err := os.Create(filepath.Join(f.OutputDir, name+f.getFileExtension()))
	if err != nil {
		return err
	}
	write(file)
	return file.Close()
}

func (f *MultiFileFormatter) writeOverview(w io.Writer, r *report.Report) {
	ext := f.getFileExtension()
	if f.OutputFormat == FormatText {
		_, _ = fmt.Fprintf(w, "CONSISTENCY OVERVIEW %s (run %s)\n", r.GeneratedAt.Format(time.RFC3339), r.RunID)
		_, _ = fmt.Fprintf(w, "Each table has a file: <table_name>%s\n\n", ext)
		for _, table := range r.Tables {
			_, _ = fmt.Fprintf(w, "%s %s\n", worst(r.ResultsFor(table)), table)
		}
		_, _ = fmt.Fprintf(w, "\nERROR %d, WARNING %d, INFO %d, SUCCESS %d (total %d)\n",
			r.Summary.Error, r.Summary.Warning, r.Summary.Info, r.Summary.Success, r.Summary.Total)
		return
	}

	md := NewMarkdownFormatter(w)
	_, _ = fmt.Fprintf(w, "# Consistency Overview\n\n")
	_, _ = fmt.Fprintf(w, "Run `%s` at %s. Each table has a corresponding file: `<table_name>%s`\n\n",
		r.RunID, r.GeneratedAt.Format(time.RFC3339), ext)
	md.FormatSummary(r.Summary)
	_, _ = fmt.Fprintf(w, "## Tables\n\n")
	for _, table := range r.Tables {
		results := r.ResultsFor(table)
		s := report.Summarize(results)
		_, _ = fmt.Fprintf(w, "- [%s](%s%s): %s (%d errors, %d warnings)\n",
			table, table, ext, worst(results), s.Error, s.Warning)
	}
}

func (f *MultiFileFormatter) writeTable(w io.Writer, r *report.Report, table string) {
	fixes := r.SuggestionsFor(table)
	if f.OutputFormat == FormatText {
		tf := NewTextFormatter(w, false)
		tf.formatTable(r, table)
		for _, fix := range fixes {
			_, _ = fmt.Fprintf(w, "  FIX [%s] %s%s\n", fix.Kind, fix.Description, fixFlags(fix))
		}
		return
	}

	md := NewMarkdownFormatter(w)
	md.FormatTable(r, table, "##")
	if len(fixes) > 0 {
		_, _ = fmt.Fprintf(w, "## Fix Suggestions\n\n")
		md.FormatFixes(fixes, "###")
	}
}

// worst returns the most severe severity among results, SUCCESS when empty.
func worst(results []report.CheckResult) report.Severity {
	sev := report.SeveritySuccess
	for _, res := range results {
		if res.Severity.Rank() > sev.Rank() {
			sev = res.Severity
		}
	}
	return sev
}

func (f *MultiFileFormatter) getFileExtension() string {
	if f.OutputFormat == FormatText {
		return ".txt"
	}
	return ".md"
}

// Package formatter renders consistency reports for the console and for files.
package formatter

import (
	"fmt"
	"io"

	"github.com/tordrt/schemacheck/internal/report"
)

// Output formats
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formatter renders a report. Implementations never modify it.
type Formatter interface {
	Format(r *report.Report) error
}

// New returns the single-stream formatter for a format name.
func New(format string, w io.Writer, color bool) (Formatter, error) {
	switch format {
	case FormatText, "":
		return NewTextFormatter(w, color), nil
	case FormatMarkdown:
		return NewMarkdownFormatter(w), nil
	case FormatJSON:
		return NewJSONFormatter(w), nil
	}
	return nil, fmt.Errorf("unsupported format: %s", format)
}

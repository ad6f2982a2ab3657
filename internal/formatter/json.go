package formatter

import (
	"encoding/json"
	"io"

	"github.com/tordrt/schemacheck/internal/report"
)

// JSONFormatter writes the report as indented JSON
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// Format encodes the report
func (f *JSONFormatter) Format(r *report.Report) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}

package schema

import "fmt"

// Source names used in errors and results
const (
	SourceDDL      = "ddl"
	SourceYAML     = "yaml"
	SourceMarkdown = "markdown"
	SourceRegistry = "entity_registry"
)

// ParseError reports malformed DDL, YAML or Markdown text.
type ParseError struct {
	Source string
	File   string
	Line   int
	Msg    string
}

func (e *ParseError) Error() string {
	loc := e.Source
	if e.File != "" {
		loc = e.File
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", e.File, e.Line)
		}
	}
	return fmt.Sprintf("parse %s: %s", loc, e.Msg)
}

// ValidationError reports a document that parsed but is structurally invalid.
type ValidationError struct {
	Source string
	File   string
	Field  string
	Msg    string
}

func (e *ValidationError) Error() string {
	loc := e.Source
	if e.File != "" {
		loc = e.File
	}
	if e.Field != "" {
		return fmt.Sprintf("validate %s: %s: %s", loc, e.Field, e.Msg)
	}
	return fmt.Sprintf("validate %s: %s", loc, e.Msg)
}

// FileOperationError reports an I/O failure on a single file.
type FileOperationError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileOperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileOperationError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid run configuration, such as a missing
// root directory. It is the only error kind that aborts a run.
type ConfigurationError struct {
	Setting string
	Msg     string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration %s: %s: %v", e.Setting, e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

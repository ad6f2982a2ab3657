// Package report holds the result values produced by a consistency run.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity of a single check result.
type Severity string

const (
	SeveritySuccess Severity = "SUCCESS"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Severities lists all severities from least to most severe.
var Severities = []Severity{SeveritySuccess, SeverityInfo, SeverityWarning, SeverityError}

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return 0
	}
}

// DetailKey is one entry of the fixed detail vocabulary.
type DetailKey string

const (
	KeyColumnName       DetailKey = "column_name"
	KeyIndexName        DetailKey = "index_name"
	KeyConstraintName   DetailKey = "constraint_name"
	KeyForeignKey       DetailKey = "foreign_key"
	KeyIssueType        DetailKey = "issue_type"
	KeyDDLValue         DetailKey = "ddl_value"
	KeyYAMLValue        DetailKey = "yaml_value"
	KeyExpectedValue    DetailKey = "expected_value"
	KeyTargetTable      DetailKey = "target_table"
	KeyTargetColumn     DetailKey = "target_column"
	KeyAvailableColumns DetailKey = "available_columns"
	KeySource           DetailKey = "source"
	KeyPresence         DetailKey = "presence"
	KeySection          DetailKey = "section"
)

var knownKeys = map[DetailKey]bool{
	KeyColumnName:       true,
	KeyIndexName:        true,
	KeyConstraintName:   true,
	KeyForeignKey:       true,
	KeyIssueType:        true,
	KeyDDLValue:         true,
	KeyYAMLValue:        true,
	KeyExpectedValue:    true,
	KeyTargetTable:      true,
	KeyTargetColumn:     true,
	KeyAvailableColumns: true,
	KeySource:           true,
	KeyPresence:         true,
	KeySection:          true,
}

// ValidKey reports whether k belongs to the detail vocabulary.
func ValidKey(k DetailKey) bool {
	return knownKeys[k]
}

// Details carries structured context for a result. Keys are restricted to
// the DetailKey vocabulary.
type Details map[DetailKey]string

// Set stores a value under a vocabulary key and returns d for chaining.
// It panics on keys outside the vocabulary.
func (d Details) Set(k DetailKey, v string) Details {
	if !ValidKey(k) {
		panic(fmt.Sprintf("report: unknown detail key %q", k))
	}
	d[k] = v
	return d
}

// Keys returns the populated keys in sorted order.
func (d Details) Keys() []DetailKey {
	keys := make([]DetailKey, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// CheckResult is one finding of one check for one table.
type CheckResult struct {
	Check    string   `json:"check"`
	Table    string   `json:"table"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  Details  `json:"details,omitempty"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// IssueType returns the issue_type detail, if any.
func (r CheckResult) IssueType() string {
	return r.Details[KeyIssueType]
}

// FixKind is the artifact a fix suggestion targets.
type FixKind string

const (
	FixDDL    FixKind = "ddl"
	FixYAML   FixKind = "yaml"
	FixInsert FixKind = "insert"
	FixAll    FixKind = "all"
)

// FixSuggestion is a generated remediation for one or more findings.
type FixSuggestion struct {
	Kind           FixKind `json:"kind"`
	Table          string  `json:"table"`
	Description    string  `json:"description"`
	Content        string  `json:"content,omitempty"`
	BackupRequired bool    `json:"backup_required"`
	Critical       bool    `json:"critical"`
}

// Summary counts results per severity.
type Summary struct {
	Success int `json:"success"`
	Info    int `json:"info"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Total   int `json:"total"`
}

// Count returns the count for one severity.
func (s Summary) Count(sev Severity) int {
	switch sev {
	case SeveritySuccess:
		return s.Success
	case SeverityInfo:
		return s.Info
	case SeverityWarning:
		return s.Warning
	case SeverityError:
		return s.Error
	}
	return 0
}

// Report is the complete output of one consistency run. Renderers must not
// mutate it.
type Report struct {
	RunID          string          `json:"run_id"`
	GeneratedAt    time.Time       `json:"generated_at"`
	Tables         []string        `json:"tables"`
	Summary        Summary         `json:"summary"`
	Results        []CheckResult   `json:"results"`
	FixSuggestions []FixSuggestion `json:"fix_suggestions"`
}

// HasErrors reports whether any result is an ERROR.
func (r *Report) HasErrors() bool {
	return r.Summary.Error > 0
}

// HasWarnings reports whether any result is a WARNING.
func (r *Report) HasWarnings() bool {
	return r.Summary.Warning > 0
}

// ResultsFor returns the results for one table, in report order.
func (r *Report) ResultsFor(table string) []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if res.Table == table {
			out = append(out, res)
		}
	}
	return out
}

// ResultsByCheck returns the results of one check, in report order.
func (r *Report) ResultsByCheck(check string) []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if res.Check == check {
			out = append(out, res)
		}
	}
	return out
}

// SuggestionsFor returns the fix suggestions for one table.
func (r *Report) SuggestionsFor(table string) []FixSuggestion {
	var out []FixSuggestion
	for _, fix := range r.FixSuggestions {
		if fix.Table == table {
			out = append(out, fix)
		}
	}
	return out
}

// ParseSeverity maps a case-insensitive name to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeveritySuccess:
		return SeveritySuccess, nil
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarning, "WARN":
		return SeverityWarning, nil
	case SeverityError:
		return SeverityError, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

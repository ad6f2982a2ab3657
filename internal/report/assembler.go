package report

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrFinalized is returned when an Assembler is used after Finalize.
var ErrFinalized = errors.New("report already finalized")

// Assembler collects results and fix suggestions during a run and produces
// the Report exactly once.
type Assembler struct {
	runID    string
	tables   []string
	results  []CheckResult
	fixes    []FixSuggestion
	finished bool
}

// NewAssembler creates an assembler with a fresh run ID.
func NewAssembler() *Assembler {
	return &Assembler{runID: uuid.NewString()}
}

// SetTables records the table roster of the run.
func (a *Assembler) SetTables(tables []string) {
	a.tables = append([]string(nil), tables...)
}

// Add appends results in order.
func (a *Assembler) Add(results ...CheckResult) error {
	if a.finished {
		return ErrFinalized
	}
	a.results = append(a.results, results...)
	return nil
}

// Suggest appends fix suggestions.
func (a *Assembler) Suggest(fixes ...FixSuggestion) error {
	if a.finished {
		return ErrFinalized
	}
	a.fixes = append(a.fixes, fixes...)
	return nil
}

// Results returns the results collected so far. The slice must not be modified.
func (a *Assembler) Results() []CheckResult {
	return a.results
}

// Finalize computes the summary and returns the Report. It can be called once.
func (a *Assembler) Finalize(now time.Time) (*Report, error) {
	if a.finished {
		return nil, ErrFinalized
	}
	a.finished = true

	r := &Report{
		RunID:          a.runID,
		GeneratedAt:    now,
		Tables:         a.tables,
		Results:        a.results,
		FixSuggestions: a.fixes,
		Summary:        Summarize(a.results),
	}
	if r.Tables == nil {
		r.Tables = []string{}
	}
	if r.Results == nil {
		r.Results = []CheckResult{}
	}
	if r.FixSuggestions == nil {
		r.FixSuggestions = []FixSuggestion{}
	}
	return r, nil
}

// Summarize counts results per severity.
func Summarize(results []CheckResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Severity {
		case SeveritySuccess:
			s.Success++
		case SeverityInfo:
			s.Info++
		case SeverityWarning:
			s.Warning++
		case SeverityError:
			s.Error++
		}
	}
	s.Total = len(results)
	return s
}

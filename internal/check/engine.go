// Package check compares the loaded schema sources of every table and turns
// each disagreement into a severity-tagged result.
//
// Stages run in a fixed order and each stage walks the roster in sorted
// order, so identical inputs always produce identical reports. Where DDL and
// YAML disagree, the YAML detail is treated as the intended design: something
// only the YAML declares is an ERROR (not yet implemented), something only the
// DDL declares is a WARNING (undocumented).
package check

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tordrt/schemacheck/internal/loader"
	"github.com/tordrt/schemacheck/internal/logging"
	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
)

// Check names, in execution order.
const (
	CheckLoad        = "load"
	CheckExistence   = "existence"
	CheckYAMLFormat  = "yaml_format"
	CheckColumns     = "columns"
	CheckIndexes     = "indexes"
	CheckConstraints = "constraints"
	CheckForeignKeys = "foreign_keys"
	CheckNaming      = "naming"
)

// Names lists every check in execution order.
var Names = []string{
	CheckLoad,
	CheckExistence,
	CheckYAMLFormat,
	CheckColumns,
	CheckIndexes,
	CheckConstraints,
	CheckForeignKeys,
	CheckNaming,
}

// Options configures a run.
type Options struct {
	// Checks selects the stages to run. Empty means all.
	Checks []string
	// Now stamps the report. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs the consistency checks.
type Engine struct {
	log     *slog.Logger
	now     func() time.Time
	enabled map[string]bool
}

type stage struct {
	name string
	run  func(r *run, table string) []report.CheckResult
}

var stages = []stage{
	{CheckLoad, (*run).checkLoad},
	{CheckExistence, (*run).checkExistence},
	{CheckYAMLFormat, (*run).checkYAMLFormat},
	{CheckColumns, (*run).checkColumns},
	{CheckIndexes, (*run).checkIndexes},
	{CheckConstraints, (*run).checkConstraints},
	{CheckForeignKeys, (*run).checkForeignKeys},
	{CheckNaming, (*run).checkNaming},
}

// NewEngine returns an engine. A nil logger discards output.
func NewEngine(opts Options, log *slog.Logger) *Engine {
	e := &Engine{
		log:     logging.OrDiscard(log),
		now:     opts.Now,
		enabled: make(map[string]bool),
	}
	if e.now == nil {
		e.now = time.Now
	}
	checks := opts.Checks
	if len(checks) == 0 {
		checks = Names
	}
	for _, name := range checks {
		e.enabled[name] = true
	}
	return e
}

// ValidateChecks rejects unknown check names.
func ValidateChecks(names []string) error {
	known := make(map[string]bool, len(Names))
	for _, n := range Names {
		known[n] = true
	}
	for _, n := range names {
		if !known[n] {
			return fmt.Errorf("unknown check %q", n)
		}
	}
	return nil
}

// run carries the state of one Engine.Run call.
type run struct {
	src *loader.Sources
	log *slog.Logger
}

// Run executes the enabled stages over src and returns the finalized report.
// It only fails on cancellation.
func (e *Engine) Run(ctx context.Context, src *loader.Sources) (*report.Report, error) {
	r := &run{src: src, log: e.log}
	roster := src.Roster()

	asm := report.NewAssembler()
	asm.SetTables(roster)

	for _, st := range stages {
		if !e.enabled[st.name] {
			continue
		}
		before := len(asm.Results())
		for _, table := range roster {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := asm.Add(st.run(r, table)...); err != nil {
				return nil, err
			}
		}
		e.log.Debug("check finished", "check", st.name, "results", len(asm.Results())-before)
	}

	if err := asm.Suggest(r.suggest(roster, asm.Results())...); err != nil {
		return nil, err
	}
	rep, err := asm.Finalize(e.now())
	if err != nil {
		return nil, err
	}
	e.log.Info("consistency check finished",
		"run_id", rep.RunID,
		"tables", len(roster),
		"errors", rep.Summary.Error,
		"warnings", rep.Summary.Warning)
	return rep, nil
}

// failed reports whether any source of the table failed to load. Such tables
// are reported once by the load stage and skipped by the comparisons.
func (r *run) failed(table string) bool {
	return r.src.Failed(table, schema.SourceDDL) || r.src.Failed(table, schema.SourceYAML)
}

// pair returns the DDL and YAML tables when both loaded.
func (r *run) pair(table string) (*schema.Table, *schema.Table, bool) {
	if r.failed(table) {
		return nil, nil, false
	}
	d, okD := r.src.DDL[table]
	y, okY := r.src.YAML[table]
	return d, y, okD && okY
}

func result(check, table string, sev report.Severity, issue, msg string) report.CheckResult {
	return report.CheckResult{
		Check:    check,
		Table:    table,
		Severity: sev,
		Message:  msg,
		Details:  report.Details{}.Set(report.KeyIssueType, issue),
	}
}

func success(check, table, msg string) report.CheckResult {
	return report.CheckResult{Check: check, Table: table, Severity: report.SeveritySuccess, Message: msg, Details: report.Details{}}
}

// checkLoad reports each recorded parse or validation failure of the table.
func (r *run) checkLoad(table string) []report.CheckResult {
	var out []report.CheckResult
	for _, f := range r.src.Failures {
		if f.Table != table {
			continue
		}
		res := result(CheckLoad, table, report.SeverityError, loadIssue(f.Err),
			fmt.Sprintf("%s source failed to load: %v", f.Source, f.Err))
		res.Details.Set(report.KeySource, f.Source)
		res.File = f.File
		if line := errorLine(f.Err); line > 0 {
			res.Line = line
		}
		out = append(out, res)
	}
	return out
}

package check

import (
	"fmt"

	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
	"github.com/tordrt/schemacheck/internal/yamlschema"
)

// suggest derives fix suggestions from the finished results, in result
// order, followed by one sample-data reminder per affected table.
func (r *run) suggest(roster []string, results []report.CheckResult) []report.FixSuggestion {
	var fixes []report.FixSuggestion
	needsInsertReview := make(map[string]bool)

	for _, res := range results {
		if res.Severity == report.SeverityError && (res.Check == CheckColumns || res.Check == CheckConstraints) {
			needsInsertReview[res.Table] = true
		}
		if fix, ok := r.fixFor(res); ok {
			fixes = append(fixes, fix)
		}
	}

	for _, table := range roster {
		if !needsInsertReview[table] {
			continue
		}
		fixes = append(fixes, report.FixSuggestion{
			Kind:           report.FixInsert,
			Table:          table,
			Description:    fmt.Sprintf("re-check sample data INSERT statements for %s against the corrected definition", table),
			BackupRequired: true,
		})
	}
	return fixes
}

func (r *run) fixFor(res report.CheckResult) (report.FixSuggestion, bool) {
	table := res.Table
	switch res.IssueType() {
	case IssueAbsent:
		return report.FixSuggestion{
			Kind:        report.FixAll,
			Table:       table,
			Description: fmt.Sprintf("create DDL, YAML detail and definition document for %s, or remove it from the target list", table),
			Critical:    true,
		}, true

	case IssueDDLMissing:
		y, ok := r.src.YAML[table]
		if !ok {
			return report.FixSuggestion{}, false
		}
		return report.FixSuggestion{
			Kind:        report.FixDDL,
			Table:       table,
			Description: fmt.Sprintf("create ddl/%s.sql from the YAML detail", table),
			Content:     ddl.Generate(y),
			Critical:    true,
		}, true

	case IssueYAMLMissing:
		d, ok := r.src.DDL[table]
		if !ok {
			return report.FixSuggestion{}, false
		}
		fix := report.FixSuggestion{
			Kind:        report.FixYAML,
			Table:       table,
			Description: fmt.Sprintf("create %s_details.yaml from the DDL and complete the documentation sections", table),
			Critical:    true,
		}
		if data, err := yamlschema.Marshal(d); err == nil {
			fix.Content = string(data)
		} else {
			r.log.Warn("cannot render YAML fix", "table", table, "error", err)
		}
		return fix, true

	case IssueYAMLOnlyColumn:
		y, ok := r.src.YAML[table]
		if !ok {
			return report.FixSuggestion{}, false
		}
		col := y.Column(res.Details[report.KeyColumnName])
		if col == nil {
			return report.FixSuggestion{}, false
		}
		return report.FixSuggestion{
			Kind:           report.FixDDL,
			Table:          table,
			Description:    fmt.Sprintf("add column %s to the DDL", col.Name),
			Content:        ddl.AddColumnSQL(table, *col),
			BackupRequired: true,
		}, true

	case IssueDDLOnlyColumn:
		return report.FixSuggestion{
			Kind:        report.FixYAML,
			Table:       table,
			Description: fmt.Sprintf("document column %s in the YAML detail", res.Details[report.KeyColumnName]),
		}, true

	case IssueMissingDDLFK:
		fk, ok := r.findForeignKey(table, res.Details[report.KeyForeignKey])
		if !ok {
			return report.FixSuggestion{}, false
		}
		return report.FixSuggestion{
			Kind:        report.FixDDL,
			Table:       table,
			Description: fmt.Sprintf("add foreign key %s to the DDL", fk),
			Content:     ddl.AddForeignKeySQL(table, fk),
		}, true
	}
	return report.FixSuggestion{}, false
}

// findForeignKey recovers the expected or YAML foreign key a result names.
func (r *run) findForeignKey(table, name string) (schema.ForeignKey, bool) {
	d, y, ok := r.pair(table)
	if !ok {
		return schema.ForeignKey{}, false
	}
	sets := r.foreignKeySets(d, y)
	for _, list := range [][]schema.ForeignKey{sets.expected, sets.yaml} {
		for _, fk := range list {
			if fk.String() == name {
				return fk, true
			}
		}
	}
	return schema.ForeignKey{}, false
}

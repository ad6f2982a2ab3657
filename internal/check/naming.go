package check

import (
	"fmt"
	"regexp"

	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
)

// Naming issue types
const (
	IssueTableNaming  = "table_naming"
	IssueColumnNaming = "column_naming"
)

var (
	tableNameRe  = regexp.MustCompile(`^(MST|TRN|HIS|SYS|WRK)_[A-Z][A-Za-z0-9]*$`)
	columnNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// checkNaming reports naming convention violations only; conforming tables
// produce no results.
func (r *run) checkNaming(table string) []report.CheckResult {
	if r.failed(table) {
		return nil
	}
	var out []report.CheckResult
	if !tableNameRe.MatchString(table) {
		res := result(CheckNaming, table, report.SeverityWarning, IssueTableNaming,
			fmt.Sprintf("table %s violates the naming convention", table))
		res.Details.Set(report.KeyExpectedValue, tableNameRe.String())
		out = append(out, res)
	}

	var cols *schema.Table
	if t, ok := r.src.DDL[table]; ok {
		cols = t
	} else if t, ok := r.src.YAML[table]; ok {
		cols = t
	}
	if cols == nil {
		return out
	}
	for _, col := range cols.Columns {
		if columnNameRe.MatchString(col.Name) {
			continue
		}
		res := result(CheckNaming, table, report.SeverityWarning, IssueColumnNaming,
			fmt.Sprintf("column %s violates the naming convention", col.Name))
		res.Details.Set(report.KeyColumnName, col.Name).
			Set(report.KeyExpectedValue, columnNameRe.String())
		out = append(out, res)
	}
	return out
}

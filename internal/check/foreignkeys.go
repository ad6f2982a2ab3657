package check

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
)

// Foreign key issue types
const (
	IssueMissingDDLFK     = "missing_ddl_fk"
	IssueMissingYAMLFK    = "missing_yaml_fk"
	IssueUndocumentedFK   = "undocumented_fk"
	IssueFKActionMismatch = "fk_action_mismatch"
	IssueFKUnresolved     = "fk_target_unresolved"
	IssueFKTargetTable    = "fk_target_table_missing"
	IssueFKTargetColumn   = "fk_target_column_missing"
)

// Prefixes tried, in order, when inferring the target of an *_id column.
var fkTargetPrefixes = []string{"MST_", "TRN_", "SYS_"}

// fkSets holds the foreign keys of one table from each point of view, keyed
// by ForeignKey.Key in document order.
type fkSets struct {
	expected   []schema.ForeignKey
	yaml       []schema.ForeignKey
	ddl        []schema.ForeignKey
	unresolved []string
	// declared marks YAML keys written out in foreign_keys or the registry,
	// as opposed to inferred from column flags with default actions.
	declared map[string]schema.ForeignKey
}

func keySet(fks []schema.ForeignKey) map[string]schema.ForeignKey {
	m := make(map[string]schema.ForeignKey, len(fks))
	for _, fk := range fks {
		m[fk.Key()] = fk
	}
	return m
}

func appendUnique(list []schema.ForeignKey, seen map[string]bool, fks ...schema.ForeignKey) []schema.ForeignKey {
	for _, fk := range fks {
		if !seen[fk.Key()] {
			seen[fk.Key()] = true
			list = append(list, fk)
		}
	}
	return list
}

// titleize turns "order_detail" into "OrderDetail".
func titleize(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// inferTarget resolves the table an *_id column refers to.
func inferTarget(column string, known map[string]bool) (string, bool) {
	if !strings.HasSuffix(column, "_id") {
		return "", false
	}
	base := titleize(strings.TrimSuffix(column, "_id"))
	if base == "" {
		return "", false
	}
	for _, prefix := range fkTargetPrefixes {
		if known[prefix+base] {
			return prefix + base, true
		}
	}
	return "", false
}

// inferredForeignKeys builds foreign keys from YAML columns flagged is_fk or
// carrying references. Columns whose target cannot be resolved are returned
// by name.
func inferredForeignKeys(y *schema.Table, known map[string]bool) ([]schema.ForeignKey, []string) {
	var fks []schema.ForeignKey
	var unresolved []string
	for _, col := range y.Columns {
		if !col.ForeignKey && col.References == "" {
			continue
		}
		fk := schema.ForeignKey{
			Columns:  []string{col.Name},
			OnUpdate: schema.ActionRestrict,
			OnDelete: schema.ActionRestrict,
		}
		if col.References != "" {
			table, column, found := strings.Cut(col.References, ".")
			if !found || column == "" {
				column = "id"
			}
			fk.RefTable, fk.RefColumns = table, []string{column}
			fks = append(fks, fk)
			continue
		}
		target, ok := inferTarget(col.Name, known)
		if !ok {
			if strings.HasSuffix(col.Name, "_id") {
				unresolved = append(unresolved, col.Name)
			}
			continue
		}
		fk.RefTable, fk.RefColumns = target, []string{"id"}
		fks = append(fks, fk)
	}
	return fks, unresolved
}

// foreignKeySets computes the expected, YAML and DDL foreign keys of a table.
// Expected keys come from the entity registry when it has records for the
// table, otherwise from the YAML column inference.
func (r *run) foreignKeySets(d, y *schema.Table) fkSets {
	known := r.src.KnownTables()
	inferred, unresolved := inferredForeignKeys(y, known)

	sets := fkSets{
		ddl:        append([]schema.ForeignKey(nil), d.ForeignKeys...),
		unresolved: unresolved,
		declared:   keySet(y.ForeignKeys),
	}
	seen := make(map[string]bool)
	sets.yaml = appendUnique(sets.yaml, seen, y.ForeignKeys...)
	sets.yaml = appendUnique(sets.yaml, seen, inferred...)

	var registry []schema.ForeignKey
	if r.src.Registry != nil {
		registry = r.src.Registry.RelationsFrom(y.Name)
	}
	if len(registry) > 0 {
		sets.expected = registry
		for k, fk := range keySet(registry) {
			if _, ok := sets.declared[k]; !ok {
				sets.declared[k] = fk
			}
		}
	} else {
		sets.expected = inferred
	}
	return sets
}

// checkForeignKeys compares expected, YAML and DDL foreign keys and verifies
// that every DDL and expected foreign key points at an existing DDL column.
func (r *run) checkForeignKeys(table string) []report.CheckResult {
	d, y, ok := r.pair(table)
	if !ok {
		return nil
	}
	sets := r.foreignKeySets(d, y)
	dKeys := keySet(sets.ddl)
	yKeys := keySet(sets.yaml)
	eKeys := keySet(sets.expected)

	var out []report.CheckResult
	add := func(sev report.Severity, issue string, fk schema.ForeignKey, msg string) report.Details {
		res := result(CheckForeignKeys, table, sev, issue, msg)
		res.Details.Set(report.KeyForeignKey, fk.String())
		if len(fk.Columns) > 0 {
			res.Details.Set(report.KeyColumnName, strings.Join(fk.Columns, ","))
		}
		if fk.RefTable != "" {
			res.Details.Set(report.KeyTargetTable, fk.RefTable)
		}
		out = append(out, res)
		return res.Details
	}

	// Everything the design expects or the YAML declares must exist in the DDL.
	seen := make(map[string]bool)
	for _, fk := range append(append([]schema.ForeignKey(nil), sets.expected...), sets.yaml...) {
		if seen[fk.Key()] {
			continue
		}
		seen[fk.Key()] = true
		if _, found := dKeys[fk.Key()]; !found {
			add(report.SeverityError, IssueMissingDDLFK, fk,
				fmt.Sprintf("missing DDL foreign key %s", fk))
		}
	}
	for _, fk := range sets.expected {
		if _, found := yKeys[fk.Key()]; !found {
			add(report.SeverityError, IssueMissingYAMLFK, fk,
				fmt.Sprintf("missing YAML foreign key %s", fk))
		}
	}
	// Anything the DDL or the YAML declares must be an expected relation.
	undocumented := make(map[string]bool)
	for _, fk := range append(append([]schema.ForeignKey(nil), sets.ddl...), sets.yaml...) {
		if _, found := eKeys[fk.Key()]; found || undocumented[fk.Key()] {
			continue
		}
		undocumented[fk.Key()] = true
		add(report.SeverityWarning, IssueUndocumentedFK, fk,
			fmt.Sprintf("undocumented foreign key %s: not an expected relation", fk))
	}
	for _, fk := range sets.ddl {
		_, inYAML := yKeys[fk.Key()]
		_, inExpected := eKeys[fk.Key()]
		if !inYAML && !inExpected {
			continue
		}
		if decl, found := sets.declared[fk.Key()]; found {
			if schema.NormalizeAction(decl.OnUpdate) != schema.NormalizeAction(fk.OnUpdate) ||
				schema.NormalizeAction(decl.OnDelete) != schema.NormalizeAction(fk.OnDelete) {
				add(report.SeverityWarning, IssueFKActionMismatch, fk,
					fmt.Sprintf("foreign key %s referential action mismatch", fk)).
					Set(report.KeyDDLValue, actionText(fk)).
					Set(report.KeyYAMLValue, actionText(decl))
			}
		}
	}

	for _, col := range sets.unresolved {
		res := result(CheckForeignKeys, table, report.SeverityWarning, IssueFKUnresolved,
			fmt.Sprintf("cannot infer the table referenced by %s", col))
		res.Details.Set(report.KeyColumnName, col).
			Set(report.KeyExpectedValue, strings.Join(candidates(col), ","))
		out = append(out, res)
	}

	checked := make(map[string]bool)
	for _, fk := range append(append([]schema.ForeignKey(nil), sets.ddl...), sets.expected...) {
		if checked[fk.Key()] {
			continue
		}
		checked[fk.Key()] = true
		out = append(out, r.referentialIntegrity(table, fk)...)
	}

	if len(out) == 0 {
		return []report.CheckResult{success(CheckForeignKeys, table, "foreign keys consistent")}
	}
	return out
}

// referentialIntegrity checks that the referenced table has DDL and exposes
// the referenced columns. Targets that failed to load or were excluded from
// the run are not judged.
func (r *run) referentialIntegrity(table string, fk schema.ForeignKey) []report.CheckResult {
	if r.src.Failed(fk.RefTable, schema.SourceDDL) || r.src.Excluded(fk.RefTable) {
		return nil
	}
	target, ok := r.src.DDL[fk.RefTable]
	if !ok {
		res := result(CheckForeignKeys, table, report.SeverityError, IssueFKTargetTable,
			fmt.Sprintf("foreign key %s references table %s which has no DDL", fk, fk.RefTable))
		res.Details.Set(report.KeyForeignKey, fk.String()).
			Set(report.KeyTargetTable, fk.RefTable)
		return []report.CheckResult{res}
	}
	var out []report.CheckResult
	for _, col := range fk.RefColumns {
		if target.HasColumn(col) {
			continue
		}
		res := result(CheckForeignKeys, table, report.SeverityError, IssueFKTargetColumn,
			fmt.Sprintf("foreign key %s references missing column %s.%s", fk, fk.RefTable, col))
		res.Details.Set(report.KeyForeignKey, fk.String()).
			Set(report.KeyTargetTable, fk.RefTable).
			Set(report.KeyTargetColumn, col).
			Set(report.KeyAvailableColumns, strings.Join(target.ColumnNames(), ","))
		out = append(out, res)
	}
	return out
}

func actionText(fk schema.ForeignKey) string {
	return "ON UPDATE " + schema.NormalizeAction(fk.OnUpdate) + " ON DELETE " + schema.NormalizeAction(fk.OnDelete)
}

func candidates(column string) []string {
	base := titleize(strings.TrimSuffix(column, "_id"))
	out := make([]string, len(fkTargetPrefixes))
	for i, p := range fkTargetPrefixes {
		out[i] = p + base
	}
	return out
}

package check

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/report"
	"github.com/tordrt/schemacheck/internal/schema"
)

// Column, index and constraint issue types
const (
	IssueDDLOnlyColumn    = "ddl_only_column"
	IssueYAMLOnlyColumn   = "yaml_only_column"
	IssueTypeMismatch     = "type_mismatch"
	IssueLengthMismatch   = "length_mismatch"
	IssueNullableMismatch = "nullable_mismatch"
	IssueDefaultMismatch  = "default_mismatch"
	IssueEnumMismatch     = "enum_mismatch"
	IssueUnknownType      = "unknown_type"

	IssueDDLOnlyIndex    = "ddl_only_index"
	IssueYAMLOnlyIndex   = "yaml_only_index"
	IssueIndexColumns    = "index_columns_mismatch"
	IssueIndexUnique     = "index_unique_mismatch"
	IssuePrimaryKey      = "primary_key_mismatch"
	IssuePrimaryKeyUndoc = "primary_key_undocumented"
	IssueDDLOnlyUnique   = "ddl_only_unique"
	IssueYAMLOnlyUnique  = "yaml_only_unique"
	IssueDDLOnlyCheck    = "ddl_only_check"
	IssueYAMLOnlyCheck   = "yaml_only_check"
)

// checkColumns diffs the column sets and compares shared columns attribute
// by attribute.
func (r *run) checkColumns(table string) []report.CheckResult {
	d, y, ok := r.pair(table)
	if !ok {
		return nil
	}
	var out []report.CheckResult
	add := func(sev report.Severity, issue, col, msg string) report.Details {
		res := result(CheckColumns, table, sev, issue, msg)
		res.Details.Set(report.KeyColumnName, col)
		out = append(out, res)
		return res.Details
	}

	for _, dc := range d.Columns {
		if !y.HasColumn(dc.Name) {
			add(report.SeverityWarning, IssueDDLOnlyColumn, dc.Name,
				fmt.Sprintf("DDL-only column %s: not documented in the YAML detail", dc.Name)).
				Set(report.KeyDDLValue, ddl.TypeSQL(dc))
		}
	}
	for _, yc := range y.Columns {
		if !d.HasColumn(yc.Name) {
			add(report.SeverityError, IssueYAMLOnlyColumn, yc.Name,
				fmt.Sprintf("YAML-only column %s: not implemented in the DDL", yc.Name)).
				Set(report.KeyYAMLValue, ddl.TypeSQL(yc))
		}
	}

	for _, dc := range d.Columns {
		yc := y.Column(dc.Name)
		if yc == nil {
			continue
		}
		name := dc.Name

		dType, yType := ddl.CanonicalType(dc.Type), ddl.CanonicalType(yc.Type)
		if dType != yType {
			add(report.SeverityError, IssueTypeMismatch, name,
				fmt.Sprintf("column %s data type mismatch: DDL %s, YAML %s", name, dc.Type, yc.Type)).
				Set(report.KeyDDLValue, ddl.TypeSQL(dc)).
				Set(report.KeyYAMLValue, ddl.TypeSQL(*yc))
		} else if dl, yl := ddl.LengthSpec(dc), ddl.LengthSpec(*yc); dl != "" && yl != "" && dl != yl {
			add(report.SeverityWarning, IssueLengthMismatch, name,
				fmt.Sprintf("column %s length mismatch: DDL %s, YAML %s", name, dl, yl)).
				Set(report.KeyDDLValue, dl).
				Set(report.KeyYAMLValue, yl)
		}

		if dc.Nullable != yc.Nullable {
			add(report.SeverityError, IssueNullableMismatch, name,
				fmt.Sprintf("column %s nullable mismatch: DDL %s, YAML %s", name, nullText(dc.Nullable), nullText(yc.Nullable))).
				Set(report.KeyDDLValue, nullText(dc.Nullable)).
				Set(report.KeyYAMLValue, nullText(yc.Nullable))
		}

		if (dc.DefaultValue != nil || yc.DefaultValue != nil) && !sameDefault(dc.DefaultValue, yc.DefaultValue) {
			add(report.SeverityWarning, IssueDefaultMismatch, name,
				fmt.Sprintf("column %s default mismatch: DDL %s, YAML %s", name, defaultText(dc.DefaultValue), defaultText(yc.DefaultValue))).
				Set(report.KeyDDLValue, defaultText(dc.DefaultValue)).
				Set(report.KeyYAMLValue, defaultText(yc.DefaultValue))
		}

		if (len(dc.EnumValues) > 0 || len(yc.EnumValues) > 0) && !sameSet(dc.EnumValues, yc.EnumValues) {
			add(report.SeverityError, IssueEnumMismatch, name,
				fmt.Sprintf("column %s ENUM values mismatch", name)).
				Set(report.KeyDDLValue, strings.Join(dc.EnumValues, ",")).
				Set(report.KeyYAMLValue, strings.Join(yc.EnumValues, ","))
		}
	}

	for _, dc := range d.Columns {
		if !ddl.KnownType(dc.Type) {
			add(report.SeverityWarning, IssueUnknownType, dc.Name,
				fmt.Sprintf("column %s uses unknown data type %s", dc.Name, dc.Type)).
				Set(report.KeyDDLValue, dc.Type)
		}
	}

	if len(out) == 0 {
		return []report.CheckResult{success(CheckColumns, table, "columns consistent")}
	}
	return out
}

func nullText(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func defaultText(v *string) string {
	if v == nil {
		return "(none)"
	}
	return *v
}

// sameDefault compares defaults case-insensitively and treats
// CURRENT_TIMESTAMP and CURRENT_TIMESTAMP() as equal.
func sameDefault(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	norm := func(s string) string {
		return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), "()")
	}
	return norm(*a) == norm(*b)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := schema.SortedCopy(a), schema.SortedCopy(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// ddlIndexes returns the DDL indexes as the YAML sees them: MySQL UNIQUE KEY
// clauses are constraints in the parsed DDL but documented as unique indexes,
// so a named UNIQUE constraint matching a YAML index name counts as one.
func ddlIndexes(d, y *schema.Table) ([]schema.Index, map[string]bool) {
	idx := append([]schema.Index(nil), d.Indexes...)
	folded := make(map[string]bool)
	for _, c := range d.ConstraintsOfKind(schema.ConstraintUnique) {
		if c.Name == "" || d.Index(c.Name) != nil || y.Index(c.Name) == nil {
			continue
		}
		idx = append(idx, schema.Index{Name: c.Name, Columns: c.Columns, Unique: true})
		folded[c.Name] = true
	}
	return idx, folded
}

// checkIndexes compares indexes by name.
func (r *run) checkIndexes(table string) []report.CheckResult {
	d, y, ok := r.pair(table)
	if !ok {
		return nil
	}
	dIdx, _ := ddlIndexes(d, y)
	byName := make(map[string]schema.Index, len(dIdx))
	for _, idx := range dIdx {
		byName[idx.Name] = idx
	}

	var out []report.CheckResult
	add := func(sev report.Severity, issue, name, msg string) report.Details {
		res := result(CheckIndexes, table, sev, issue, msg)
		res.Details.Set(report.KeyIndexName, name)
		out = append(out, res)
		return res.Details
	}

	for _, di := range dIdx {
		if y.Index(di.Name) == nil {
			add(report.SeverityWarning, IssueDDLOnlyIndex, di.Name,
				fmt.Sprintf("DDL-only index %s: not documented in the YAML detail", di.Name)).
				Set(report.KeyDDLValue, strings.Join(di.Columns, ","))
		}
	}
	for _, yi := range y.Indexes {
		di, found := byName[yi.Name]
		if !found {
			add(report.SeverityError, IssueYAMLOnlyIndex, yi.Name,
				fmt.Sprintf("YAML-only index %s: not implemented in the DDL", yi.Name)).
				Set(report.KeyYAMLValue, strings.Join(yi.Columns, ","))
			continue
		}
		if strings.Join(di.Columns, ",") != strings.Join(yi.Columns, ",") {
			add(report.SeverityError, IssueIndexColumns, yi.Name,
				fmt.Sprintf("index %s column mismatch", yi.Name)).
				Set(report.KeyDDLValue, strings.Join(di.Columns, ",")).
				Set(report.KeyYAMLValue, strings.Join(yi.Columns, ","))
		}
		if di.Unique != yi.Unique {
			add(report.SeverityError, IssueIndexUnique, yi.Name,
				fmt.Sprintf("index %s UNIQUE attribute mismatch", yi.Name)).
				Set(report.KeyDDLValue, fmt.Sprint(di.Unique)).
				Set(report.KeyYAMLValue, fmt.Sprint(yi.Unique))
		}
	}

	if len(out) == 0 {
		return []report.CheckResult{success(CheckIndexes, table, "indexes consistent")}
	}
	return out
}

// uniqueSets collects UNIQUE column tuples from table constraints and
// column-level UNIQUE flags, keyed by the sorted column list.
func uniqueSets(t *schema.Table, skip map[string]bool) (map[string]string, []string) {
	set := make(map[string]string)
	var order []string
	put := func(name string, cols []string) {
		key := strings.Join(schema.SortedCopy(cols), ",")
		if _, dup := set[key]; dup {
			return
		}
		set[key] = name
		order = append(order, key)
	}
	for _, c := range t.ConstraintsOfKind(schema.ConstraintUnique) {
		if !skip[c.Name] {
			put(c.Name, c.Columns)
		}
	}
	for _, col := range t.Columns {
		if col.Unique && !col.PrimaryKey {
			put("", []string{col.Name})
		}
	}
	return set, order
}

// checkConstraints compares the primary key, UNIQUE tuples and CHECK names.
func (r *run) checkConstraints(table string) []report.CheckResult {
	d, y, ok := r.pair(table)
	if !ok {
		return nil
	}
	var out []report.CheckResult
	add := func(sev report.Severity, issue, name, msg string) report.Details {
		res := result(CheckConstraints, table, sev, issue, msg)
		if name != "" {
			res.Details.Set(report.KeyConstraintName, name)
		}
		out = append(out, res)
		return res.Details
	}

	dpk, ypk := strings.Join(schema.SortedCopy(d.PrimaryKey), ","), strings.Join(schema.SortedCopy(y.PrimaryKey), ",")
	switch {
	case dpk == ypk:
	case ypk == "":
		add(report.SeverityWarning, IssuePrimaryKeyUndoc, "PRIMARY",
			"primary key not documented in the YAML detail").
			Set(report.KeyDDLValue, dpk)
	default:
		add(report.SeverityError, IssuePrimaryKey, "PRIMARY",
			fmt.Sprintf("primary key mismatch: DDL (%s), YAML (%s)", dpk, ypk)).
			Set(report.KeyDDLValue, dpk).
			Set(report.KeyYAMLValue, ypk)
	}

	_, folded := ddlIndexes(d, y)
	dUnique, dOrder := uniqueSets(d, folded)
	yUnique, yOrder := uniqueSets(y, nil)
	for _, key := range dOrder {
		if _, found := yUnique[key]; !found {
			add(report.SeverityWarning, IssueDDLOnlyUnique, dUnique[key],
				fmt.Sprintf("DDL-only UNIQUE constraint on (%s)", key)).
				Set(report.KeyDDLValue, key)
		}
	}
	for _, key := range yOrder {
		if _, found := dUnique[key]; !found {
			add(report.SeverityError, IssueYAMLOnlyUnique, yUnique[key],
				fmt.Sprintf("YAML-only UNIQUE constraint on (%s)", key)).
				Set(report.KeyYAMLValue, key)
		}
	}

	dChecks := checkNames(d)
	yChecks := checkNames(y)
	for _, c := range d.ConstraintsOfKind(schema.ConstraintCheck) {
		if !yChecks[c.Name] {
			add(report.SeverityWarning, IssueDDLOnlyCheck, c.Name,
				fmt.Sprintf("DDL-only CHECK constraint %s", c.Name)).
				Set(report.KeyDDLValue, c.Condition)
		}
	}
	for _, c := range y.ConstraintsOfKind(schema.ConstraintCheck) {
		if !dChecks[c.Name] {
			add(report.SeverityError, IssueYAMLOnlyCheck, c.Name,
				fmt.Sprintf("YAML-only CHECK constraint %s", c.Name)).
				Set(report.KeyYAMLValue, c.Condition)
		}
	}

	if len(out) == 0 {
		return []report.CheckResult{success(CheckConstraints, table, "constraints consistent")}
	}
	return out
}

func checkNames(t *schema.Table) map[string]bool {
	names := make(map[string]bool)
	for _, c := range t.ConstraintsOfKind(schema.ConstraintCheck) {
		names[c.Name] = true
	}
	return names
}

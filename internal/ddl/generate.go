package ddl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tordrt/schemacheck/internal/schema"
)

var bareDefaultRe = regexp.MustCompile(`(?i)^(-?\d+(\.\d+)?|NULL|TRUE|FALSE|CURRENT_TIMESTAMP(\(\d*\))?|CURRENT_DATE|CURRENT_TIME|NOW\(\)|\(.*\))$`)

// Generate renders a table as MySQL DDL: the CREATE TABLE statement followed
// by CREATE INDEX and ALTER TABLE ADD CONSTRAINT statements. Parse reads the
// output back into an equivalent table.
func Generate(t *schema.Table) string {
	var b strings.Builder

	if t.LogicalName != "" {
		fmt.Fprintf(&b, "-- %s (%s)\n", t.Name, t.LogicalName)
	}
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", t.Name)

	var defs []string
	for _, col := range t.Columns {
		defs = append(defs, "    "+ColumnSQL(col))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	for _, c := range t.Constraints {
		defs = append(defs, "    "+constraintSQL(c))
	}
	b.WriteString(strings.Join(defs, ",\n"))
	b.WriteString("\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci")
	comment := t.LogicalName
	if t.Comment != "" {
		comment = t.Comment
	}
	if comment != "" {
		fmt.Fprintf(&b, " COMMENT=%s", quote(comment))
	}
	b.WriteString(";\n")

	if len(t.Indexes) > 0 {
		b.WriteString("\n")
		for _, idx := range t.Indexes {
			b.WriteString(IndexSQL(t.Name, idx))
			b.WriteString("\n")
		}
	}

	if len(t.ForeignKeys) > 0 {
		b.WriteString("\n")
		for _, fk := range t.ForeignKeys {
			b.WriteString(AddForeignKeySQL(t.Name, fk))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ColumnSQL renders a single column definition.
func ColumnSQL(col schema.Column) string {
	parts := []string{col.Name, TypeSQL(col)}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.AutoIncrement {
		parts = append(parts, "AUTO_INCREMENT")
	}
	if col.Unique && !col.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if col.DefaultValue != nil {
		parts = append(parts, "DEFAULT "+defaultSQL(*col.DefaultValue))
	}
	if col.Comment != "" {
		parts = append(parts, "COMMENT "+quote(col.Comment))
	}
	return strings.Join(parts, " ")
}

// TypeSQL renders the data type of a column including its arguments.
func TypeSQL(col schema.Column) string {
	switch {
	case len(col.EnumValues) > 0:
		vals := make([]string, len(col.EnumValues))
		for i, v := range col.EnumValues {
			vals[i] = quote(v)
		}
		return fmt.Sprintf("%s(%s)", col.Type, strings.Join(vals, ","))
	case col.Precision != nil && col.Scale != nil:
		return fmt.Sprintf("%s(%d,%d)", col.Type, *col.Precision, *col.Scale)
	case col.Precision != nil:
		return fmt.Sprintf("%s(%d)", col.Type, *col.Precision)
	case col.Length != nil:
		return fmt.Sprintf("%s(%d)", col.Type, *col.Length)
	}
	return col.Type
}

// IndexSQL renders a CREATE [UNIQUE] INDEX statement.
func IndexSQL(table string, idx schema.Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s (%s);", kind, idx.Name, table, strings.Join(idx.Columns, ", "))
}

// AddForeignKeySQL renders an ALTER TABLE ADD CONSTRAINT ... FOREIGN KEY statement.
func AddForeignKeySQL(table string, fk schema.ForeignKey) string {
	name := fk.Name
	if name == "" {
		name = ForeignKeyName(table, fk)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s) ON UPDATE %s ON DELETE %s;",
		table, name,
		strings.Join(fk.Columns, ", "),
		fk.RefTable, strings.Join(fk.RefColumns, ", "),
		schema.NormalizeAction(fk.OnUpdate), schema.NormalizeAction(fk.OnDelete))
}

// AddColumnSQL renders an ALTER TABLE ADD COLUMN statement.
func AddColumnSQL(table string, col schema.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", table, ColumnSQL(col))
}

// ForeignKeyName derives the conventional name fk_<table>_<columns>.
func ForeignKeyName(table string, fk schema.ForeignKey) string {
	return "fk_" + strings.ToLower(table) + "_" + strings.Join(fk.Columns, "_")
}

func constraintSQL(c schema.Constraint) string {
	prefix := ""
	if c.Name != "" {
		prefix = "CONSTRAINT " + c.Name + " "
	}
	if c.Kind == schema.ConstraintCheck {
		return prefix + "CHECK (" + c.Condition + ")"
	}
	return prefix + "UNIQUE (" + strings.Join(c.Columns, ", ") + ")"
}

func defaultSQL(v string) string {
	if bareDefaultRe.MatchString(v) {
		return v
	}
	return quote(v)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// LengthSpec returns the length, precision or "precision,scale" of a column, or "".
func LengthSpec(col schema.Column) string {
	switch {
	case col.Precision != nil && col.Scale != nil:
		return strconv.Itoa(*col.Precision) + "," + strconv.Itoa(*col.Scale)
	case col.Precision != nil:
		return strconv.Itoa(*col.Precision)
	case col.Length != nil:
		return strconv.Itoa(*col.Length)
	}
	return ""
}

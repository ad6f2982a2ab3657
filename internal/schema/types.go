package schema

import (
	"sort"
	"strings"
)

// Referential actions for foreign keys
const (
	ActionRestrict = "RESTRICT"
	ActionCascade  = "CASCADE"
	ActionSetNull  = "SET NULL"
	ActionNoAction = "NO ACTION"
)

// Constraint kinds
const (
	ConstraintCheck  = "CHECK"
	ConstraintUnique = "UNIQUE"
)

// Table represents one table as described by a single source (DDL, YAML or Markdown).
// A Table is built once by a parser and treated as read-only afterwards.
type Table struct {
	Name        string
	LogicalName string
	Comment     string
	Columns     []Column
	Indexes     []Index
	ForeignKeys []ForeignKey
	Constraints []Constraint
	PrimaryKey  []string
}

// Column represents a table column
type Column struct {
	Name          string
	Type          string
	Length        *int
	Precision     *int
	Scale         *int
	Nullable      bool
	PrimaryKey    bool
	Unique        bool
	AutoIncrement bool
	DefaultValue  *string
	EnumValues    []string
	Comment       string

	// ForeignKey and References carry the YAML is_fk / references markers.
	ForeignKey bool
	References string
}

// Index represents a table index
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// ForeignKey represents a foreign key relationship
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
	OnUpdate   string
	OnDelete   string
}

// Constraint represents a table-level UNIQUE or CHECK constraint
type Constraint struct {
	Name      string
	Kind      string
	Columns   []string
	Condition string
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// HasColumn reports whether the table defines a column with the given name.
func (t *Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

// ColumnNames returns column names in definition order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Index returns the index with the given name, or nil.
func (t *Table) Index(name string) *Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// ConstraintsOfKind returns the table-level constraints of one kind in definition order.
func (t *Table) ConstraintsOfKind(kind string) []Constraint {
	var out []Constraint
	for _, c := range t.Constraints {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Key identifies a foreign key by what it links, independent of its name.
func (fk ForeignKey) Key() string {
	return strings.Join(fk.Columns, ",") + "->" + fk.RefTable + "(" + strings.Join(fk.RefColumns, ",") + ")"
}

// String renders the foreign key as "cols -> table(cols)".
func (fk ForeignKey) String() string {
	return "(" + strings.Join(fk.Columns, ", ") + ") -> " + fk.RefTable + "(" + strings.Join(fk.RefColumns, ", ") + ")"
}

// NormalizeAction upper-cases a referential action and defaults empty input to RESTRICT.
func NormalizeAction(action string) string {
	a := strings.Join(strings.Fields(strings.ToUpper(action)), " ")
	if a == "" {
		return ActionRestrict
	}
	return a
}

// ValidAction reports whether action is one of the supported referential actions.
func ValidAction(action string) bool {
	switch NormalizeAction(action) {
	case ActionRestrict, ActionCascade, ActionSetNull, ActionNoAction:
		return true
	}
	return false
}

// SortedCopy returns a sorted copy of names.
func SortedCopy(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	sort.Strings(out)
	return out
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

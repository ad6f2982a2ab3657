package yamlschema

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemacheck/internal/schema"
)

// ParseBytes decodes a detail document and normalizes it.
func ParseBytes(data []byte) (*schema.Table, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Parse(doc)
}

// Parse normalizes a decoded detail document into a table. The document is
// only read.
func Parse(doc map[string]any) (*schema.Table, error) {
	name := stringField(doc, KeyTableName)
	if name == "" {
		return nil, invalid(KeyTableName, "required field is missing")
	}
	logical := stringField(doc, KeyLogicalName)
	if logical == "" {
		return nil, invalid(KeyLogicalName, "required field is missing")
	}

	tmpl, err := Detect(doc)
	if err != nil {
		return nil, err
	}

	table := &schema.Table{
		Name:        name,
		LogicalName: logical,
		Comment:     stringField(doc, "comment"),
	}

	items, err := tmpl.columnItems()
	if err != nil {
		return nil, invalid(columnsKey(tmpl), err.Error())
	}
	if len(items) == 0 {
		return nil, invalid(columnsKey(tmpl), "column list is empty")
	}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		col, err := tmpl.normalizeColumn(item)
		if err != nil {
			return nil, invalid(fmt.Sprintf("%s[%d]", columnsKey(tmpl), i), err.Error())
		}
		if col.Name == "" {
			return nil, invalid(fmt.Sprintf("%s[%d].name", columnsKey(tmpl), i), "column name is missing")
		}
		if seen[col.Name] {
			return nil, invalid(fmt.Sprintf("%s[%d].name", columnsKey(tmpl), i), "duplicate column "+col.Name)
		}
		seen[col.Name] = true
		table.Columns = append(table.Columns, col)
	}

	if err := parsePrimaryKey(doc, table); err != nil {
		return nil, err
	}
	if err := parseIndexes(tmpl, table); err != nil {
		return nil, err
	}
	if err := parseConstraints(tmpl, table); err != nil {
		return nil, err
	}
	if err := parseForeignKeys(doc, table); err != nil {
		return nil, err
	}
	return table, nil
}

func invalid(field, msg string) error {
	return &schema.ValidationError{Source: schema.SourceYAML, Field: field, Msg: msg}
}

func columnsKey(t Template) string {
	if _, ok := t.(DetailedTemplate); ok {
		return KeyBusinessColumns
	}
	return KeyColumns
}

// parsePrimaryKey prefers an explicit primary_key list and falls back to
// columns flagged primary_key in declaration order.
func parsePrimaryKey(doc map[string]any, table *schema.Table) error {
	pk := stringList(doc, "primary_key", "primary_keys")
	if len(pk) == 0 {
		for _, col := range table.Columns {
			if col.PrimaryKey {
				pk = append(pk, col.Name)
			}
		}
		table.PrimaryKey = pk
		return nil
	}
	for _, name := range pk {
		col := table.Column(name)
		if col == nil {
			return invalid("primary_key", "unknown column "+name)
		}
		col.PrimaryKey = true
		col.Nullable = false
	}
	table.PrimaryKey = pk
	return nil
}

func parseIndexes(tmpl Template, table *schema.Table) error {
	items, err := tmpl.indexItems()
	if err != nil {
		return invalid("indexes", err.Error())
	}
	for i, item := range items {
		idx := schema.Index{
			Name:    stringField(item, "name"),
			Columns: stringList(item, "columns", "column"),
		}
		if idx.Name == "" || len(idx.Columns) == 0 {
			return invalid(fmt.Sprintf("indexes[%d]", i), "index needs name and columns")
		}
		if idx.Unique, _, err = boolField(item, "unique"); err != nil {
			return invalid(fmt.Sprintf("indexes[%d].unique", i), err.Error())
		}
		table.Indexes = append(table.Indexes, idx)
	}
	return nil
}

func parseConstraints(tmpl Template, table *schema.Table) error {
	items, err := tmpl.constraintItems()
	if err != nil {
		return invalid("constraints", err.Error())
	}
	for i, item := range items {
		c := schema.Constraint{
			Name:      stringField(item, "name"),
			Kind:      strings.ToUpper(stringField(item, "type", "kind")),
			Columns:   stringList(item, "columns", "column"),
			Condition: stringField(item, "condition", "check", "expression"),
		}
		if c.Kind == "" && c.Condition != "" {
			c.Kind = schema.ConstraintCheck
		}
		switch c.Kind {
		case schema.ConstraintCheck:
			if c.Name == "" {
				return invalid(fmt.Sprintf("constraints[%d].name", i), "CHECK constraint needs a name")
			}
		case schema.ConstraintUnique:
			if len(c.Columns) == 0 {
				return invalid(fmt.Sprintf("constraints[%d].columns", i), "UNIQUE constraint needs columns")
			}
		case "PRIMARY KEY", "FOREIGN KEY":
			// Covered by primary_key and foreign_keys.
			continue
		default:
			return invalid(fmt.Sprintf("constraints[%d].type", i), "unsupported constraint type "+c.Kind)
		}
		table.Constraints = append(table.Constraints, c)
	}
	return nil
}

// parseForeignKeys reads foreign_keys entries in either nested form
// (references: {table, columns}) or flat form (reference_table,
// reference_columns).
func parseForeignKeys(doc map[string]any, table *schema.Table) error {
	items, _, err := mapList(doc, "foreign_keys")
	if err != nil {
		return invalid("foreign_keys", err.Error())
	}
	for i, item := range items {
		fk := schema.ForeignKey{
			Name:       stringField(item, "name"),
			Columns:    stringList(item, "columns", "column"),
			RefTable:   stringField(item, "reference_table", "ref_table"),
			RefColumns: stringList(item, "reference_columns", "reference_column", "ref_columns"),
			OnUpdate:   strings.ToUpper(stringField(item, "on_update")),
			OnDelete:   strings.ToUpper(stringField(item, "on_delete")),
		}
		if ref, ok := item["references"].(map[string]any); ok {
			fk.RefTable = stringField(ref, "table")
			fk.RefColumns = stringList(ref, "columns", "column")
		}
		field := fmt.Sprintf("foreign_keys[%d]", i)
		if len(fk.Columns) == 0 || fk.RefTable == "" {
			return invalid(field, "foreign key needs columns and a referenced table")
		}
		if len(fk.RefColumns) == 0 {
			fk.RefColumns = []string{"id"}
		}
		if len(fk.RefColumns) != len(fk.Columns) {
			return invalid(field, "column and referenced column counts differ")
		}
		for _, action := range []string{fk.OnUpdate, fk.OnDelete} {
			if action != "" && !schema.ValidAction(action) {
				return invalid(field, "unsupported referential action "+action)
			}
		}
		fk.OnUpdate = schema.NormalizeAction(fk.OnUpdate)
		fk.OnDelete = schema.NormalizeAction(fk.OnDelete)
		for _, c := range fk.Columns {
			if !table.HasColumn(c) {
				return invalid(field, "unknown column "+c)
			}
		}
		table.ForeignKeys = append(table.ForeignKeys, fk)
	}
	return nil
}

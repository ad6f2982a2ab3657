// Package yamlschema normalizes per-table detail YAML documents into
// schema.Table values.
//
// Two document shapes exist. The detailed template lists columns under
// business_columns; the standard template lists them under columns. The shape
// is resolved once by Detect and each shape normalizes its own fields.
package yamlschema

import (
	"fmt"
	"strings"

	"github.com/tordrt/schemacheck/internal/ddl"
	"github.com/tordrt/schemacheck/internal/schema"
)

const (
	KeyTableName       = "table_name"
	KeyLogicalName     = "logical_name"
	KeyBusinessColumns = "business_columns"
	KeyColumns         = "columns"
)

// Template is the resolved shape of a detail document.
type Template interface {
	// Name returns "detailed" or "standard".
	Name() string
	columnItems() ([]map[string]any, error)
	normalizeColumn(item map[string]any) (schema.Column, error)
	indexItems() ([]map[string]any, error)
	constraintItems() ([]map[string]any, error)
}

// DetailedTemplate documents carry business_columns plus optional
// business_indexes / business_constraints sections.
type DetailedTemplate struct {
	doc map[string]any
}

// StandardTemplate documents carry columns plus optional indexes / constraints.
type StandardTemplate struct {
	doc map[string]any
}

// Detect resolves the template shape from key presence. business_columns wins
// when both keys are present.
func Detect(doc map[string]any) (Template, error) {
	if _, ok := doc[KeyBusinessColumns]; ok {
		return DetailedTemplate{doc: doc}, nil
	}
	if _, ok := doc[KeyColumns]; ok {
		return StandardTemplate{doc: doc}, nil
	}
	return nil, &schema.ValidationError{
		Source: schema.SourceYAML,
		Field:  KeyBusinessColumns,
		Msg:    "document has neither business_columns nor columns",
	}
}

func (DetailedTemplate) Name() string { return "detailed" }

func (t DetailedTemplate) columnItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, KeyBusinessColumns)
	return items, err
}

func (t DetailedTemplate) indexItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, "business_indexes", "indexes")
	return items, err
}

func (t DetailedTemplate) constraintItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, "business_constraints", "constraints")
	return items, err
}

// normalizeColumn reads a detailed column: name, logical, data_type, length,
// null, unique, default, enum_values, description, is_fk, references.
func (DetailedTemplate) normalizeColumn(item map[string]any) (schema.Column, error) {
	col := schema.Column{
		Name:       stringField(item, "name"),
		Comment:    stringField(item, "logical", "description", "comment"),
		References: stringField(item, "references"),
	}
	if err := normalizeType(&col, item, "data_type", "type"); err != nil {
		return col, err
	}
	if err := normalizeFlags(&col, item, []string{"null", "nullable"}); err != nil {
		return col, err
	}
	return col, nil
}

func (StandardTemplate) Name() string { return "standard" }

func (t StandardTemplate) columnItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, KeyColumns)
	return items, err
}

func (t StandardTemplate) indexItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, "indexes")
	return items, err
}

func (t StandardTemplate) constraintItems() ([]map[string]any, error) {
	items, _, err := mapList(t.doc, "constraints")
	return items, err
}

// normalizeColumn reads a standard column: name, type, nullable, primary_key,
// unique, default, comment, length, enum_values, is_fk, references.
func (StandardTemplate) normalizeColumn(item map[string]any) (schema.Column, error) {
	col := schema.Column{
		Name:       stringField(item, "name"),
		Comment:    stringField(item, "comment", "description", "logical"),
		References: stringField(item, "references"),
	}
	if err := normalizeType(&col, item, "type", "data_type"); err != nil {
		return col, err
	}
	if err := normalizeFlags(&col, item, []string{"nullable", "null"}); err != nil {
		return col, err
	}
	return col, nil
}

// normalizeType splits "VARCHAR(50)" style types and applies explicit
// length / precision / scale / enum_values overrides.
func normalizeType(col *schema.Column, item map[string]any, typeKeys ...string) error {
	base, args := ddl.SplitType(stringField(item, typeKeys...))
	if base == "" {
		return fmt.Errorf("column %s: missing type", col.Name)
	}
	ddl.ApplyType(col, base, args)

	// length: "10,2" carries precision and scale together.
	if s, ok := item["length"].(string); ok && strings.Contains(s, ",") {
		col.Length, col.Precision, col.Scale = nil, nil, nil
		ddl.ApplyType(col, col.Type, s)
		return applyEnum(col, item)
	}

	length, err := intField(item, "length", "max_length")
	if err != nil {
		return fmt.Errorf("column %s: length: %w", col.Name, err)
	}
	precision, err := intField(item, "precision")
	if err != nil {
		return fmt.Errorf("column %s: precision: %w", col.Name, err)
	}
	scale, err := intField(item, "scale")
	if err != nil {
		return fmt.Errorf("column %s: scale: %w", col.Name, err)
	}
	switch {
	case precision != nil:
		col.Precision, col.Scale, col.Length = precision, scale, nil
	case length != nil && ddl.CanonicalType(col.Type) == "DECIMAL":
		col.Precision, col.Length = length, nil
		if scale != nil {
			col.Scale = scale
		}
	case length != nil:
		col.Length = length
	}
	return applyEnum(col, item)
}

func applyEnum(col *schema.Column, item map[string]any) error {
	if values := stringList(item, "enum_values", "values"); len(values) > 0 {
		col.EnumValues = values
		if col.Type == "" || col.Type == "VARCHAR" {
			col.Type = "ENUM"
		}
	}
	return nil
}

func normalizeFlags(col *schema.Column, item map[string]any, nullKeys []string) error {
	nullable, found, err := boolField(item, nullKeys...)
	if err != nil {
		return fmt.Errorf("column %s: nullable: %w", col.Name, err)
	}
	col.Nullable = !found || nullable

	if col.PrimaryKey, _, err = boolField(item, "primary_key", "pk", "is_pk"); err != nil {
		return fmt.Errorf("column %s: primary_key: %w", col.Name, err)
	}
	if col.Unique, _, err = boolField(item, "unique"); err != nil {
		return fmt.Errorf("column %s: unique: %w", col.Name, err)
	}
	if col.AutoIncrement, _, err = boolField(item, "auto_increment"); err != nil {
		return fmt.Errorf("column %s: auto_increment: %w", col.Name, err)
	}
	if col.ForeignKey, _, err = boolField(item, "is_fk", "fk", "foreign_key"); err != nil {
		return fmt.Errorf("column %s: is_fk: %w", col.Name, err)
	}
	if col.References != "" {
		col.ForeignKey = true
	}

	if v, ok := lookup(item, "default"); ok {
		s := scalarString(v)
		if !strings.EqualFold(s, "NULL") {
			col.DefaultValue = &s
		}
	}
	if col.PrimaryKey {
		col.Nullable = false
	}
	return nil
}

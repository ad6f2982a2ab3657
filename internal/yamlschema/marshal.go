package yamlschema

import (
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemacheck/internal/schema"
)

type standardDoc struct {
	TableName   string          `yaml:"table_name"`
	LogicalName string          `yaml:"logical_name"`
	Comment     string          `yaml:"comment,omitempty"`
	Columns     []standardCol   `yaml:"columns"`
	PrimaryKey  []string        `yaml:"primary_key,omitempty,flow"`
	Indexes     []standardIndex `yaml:"indexes,omitempty"`
	ForeignKeys []standardFK    `yaml:"foreign_keys,omitempty"`
	Constraints []standardCons  `yaml:"constraints,omitempty"`
}

type standardCol struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Length        *int     `yaml:"length,omitempty"`
	Precision     *int     `yaml:"precision,omitempty"`
	Scale         *int     `yaml:"scale,omitempty"`
	Nullable      bool     `yaml:"nullable"`
	PrimaryKey    bool     `yaml:"primary_key,omitempty"`
	Unique        bool     `yaml:"unique,omitempty"`
	AutoIncrement bool     `yaml:"auto_increment,omitempty"`
	Default       *string  `yaml:"default,omitempty"`
	EnumValues    []string `yaml:"enum_values,omitempty,flow"`
	Comment       string   `yaml:"comment,omitempty"`
	IsFK          bool     `yaml:"is_fk,omitempty"`
	References    string   `yaml:"references,omitempty"`
}

type standardIndex struct {
	Name    string   `yaml:"name"`
	Columns []string `yaml:"columns,flow"`
	Unique  bool     `yaml:"unique"`
}

type standardFK struct {
	Name       string      `yaml:"name,omitempty"`
	Columns    []string    `yaml:"columns,flow"`
	References standardRef `yaml:"references"`
	OnUpdate   string      `yaml:"on_update"`
	OnDelete   string      `yaml:"on_delete"`
}

type standardRef struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns,flow"`
}

type standardCons struct {
	Name      string   `yaml:"name,omitempty"`
	Type      string   `yaml:"type"`
	Columns   []string `yaml:"columns,omitempty,flow"`
	Condition string   `yaml:"condition,omitempty"`
}

// Marshal renders a table as a standard-template detail document.
func Marshal(t *schema.Table) ([]byte, error) {
	doc := standardDoc{
		TableName:   t.Name,
		LogicalName: t.LogicalName,
		Comment:     t.Comment,
		PrimaryKey:  t.PrimaryKey,
	}
	if doc.LogicalName == "" {
		doc.LogicalName = t.Name
	}
	for _, c := range t.Columns {
		doc.Columns = append(doc.Columns, standardCol{
			Name:          c.Name,
			Type:          c.Type,
			Length:        c.Length,
			Precision:     c.Precision,
			Scale:         c.Scale,
			Nullable:      c.Nullable,
			PrimaryKey:    c.PrimaryKey,
			Unique:        c.Unique,
			AutoIncrement: c.AutoIncrement,
			Default:       c.DefaultValue,
			EnumValues:    c.EnumValues,
			Comment:       c.Comment,
			IsFK:          c.ForeignKey,
			References:    c.References,
		})
	}
	for _, idx := range t.Indexes {
		doc.Indexes = append(doc.Indexes, standardIndex{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique})
	}
	for _, fk := range t.ForeignKeys {
		doc.ForeignKeys = append(doc.ForeignKeys, standardFK{
			Name:       fk.Name,
			Columns:    fk.Columns,
			References: standardRef{Table: fk.RefTable, Columns: fk.RefColumns},
			OnUpdate:   schema.NormalizeAction(fk.OnUpdate),
			OnDelete:   schema.NormalizeAction(fk.OnDelete),
		})
	}
	for _, c := range t.Constraints {
		doc.Constraints = append(doc.Constraints, standardCons{Name: c.Name, Type: c.Kind, Columns: c.Columns, Condition: c.Condition})
	}
	return yaml.Marshal(&doc)
}

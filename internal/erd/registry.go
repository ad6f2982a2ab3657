// Package erd reads the entity-relationship registry: the list of known
// entities and the explicit foreign-key relationships between them.
package erd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemacheck/internal/schema"
)

// DefaultFileName is the registry file looked up under the YAML root.
const DefaultFileName = "entity_relationships.yaml"

// Entity is one registered table.
type Entity struct {
	TableName   string `yaml:"table_name"`
	LogicalName string `yaml:"logical_name"`
	Description string `yaml:"description"`
}

// Relationship is one explicit foreign-key record. The singular column
// fields are accepted for single-column keys.
type Relationship struct {
	Name          string   `yaml:"name"`
	SourceTable   string   `yaml:"source_table"`
	SourceColumns []string `yaml:"source_columns"`
	SourceColumn  string   `yaml:"source_column"`
	TargetTable   string   `yaml:"target_table"`
	TargetColumns []string `yaml:"target_columns"`
	TargetColumn  string   `yaml:"target_column"`
	OnUpdate      string   `yaml:"on_update"`
	OnDelete      string   `yaml:"on_delete"`
}

type document struct {
	Entities      []Entity       `yaml:"entities"`
	Relationships []Relationship `yaml:"relationships"`
}

// Registry is the parsed registry document. It is read-only after Parse.
type Registry struct {
	entities  map[string]Entity
	relations map[string][]schema.ForeignKey
}

// Load reads and parses a registry file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &schema.FileOperationError{Path: path, Op: "open", Err: err}
		}
		return nil, &schema.FileOperationError{Path: path, Op: "read", Err: err}
	}
	reg, err := Parse(data)
	if err != nil {
		var perr *schema.ParseError
		if errors.As(err, &perr) {
			perr.File = path
		}
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			verr.File = path
		}
		return nil, err
	}
	return reg, nil
}

// Parse decodes a registry document.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &schema.ParseError{Source: schema.SourceRegistry, Msg: err.Error()}
	}

	reg := &Registry{
		entities:  make(map[string]Entity, len(doc.Entities)),
		relations: make(map[string][]schema.ForeignKey),
	}
	for i, e := range doc.Entities {
		if e.TableName == "" {
			return nil, &schema.ValidationError{Source: schema.SourceRegistry, Field: fmt.Sprintf("entities[%d].table_name", i), Msg: "required field is missing"}
		}
		reg.entities[e.TableName] = e
	}
	for i, r := range doc.Relationships {
		fk, err := r.foreignKey()
		if err != nil {
			return nil, &schema.ValidationError{Source: schema.SourceRegistry, Field: fmt.Sprintf("relationships[%d]", i), Msg: err.Error()}
		}
		reg.relations[r.SourceTable] = append(reg.relations[r.SourceTable], fk)
	}
	return reg, nil
}

func (r Relationship) foreignKey() (schema.ForeignKey, error) {
	cols := r.SourceColumns
	if len(cols) == 0 && r.SourceColumn != "" {
		cols = []string{r.SourceColumn}
	}
	refCols := r.TargetColumns
	if len(refCols) == 0 && r.TargetColumn != "" {
		refCols = []string{r.TargetColumn}
	}
	if len(refCols) == 0 {
		refCols = []string{"id"}
	}
	switch {
	case r.SourceTable == "" || r.TargetTable == "":
		return schema.ForeignKey{}, fmt.Errorf("source_table and target_table are required")
	case len(cols) == 0:
		return schema.ForeignKey{}, fmt.Errorf("source_columns is required")
	case len(cols) != len(refCols):
		return schema.ForeignKey{}, fmt.Errorf("source and target column counts differ")
	}
	for _, a := range []string{r.OnUpdate, r.OnDelete} {
		if a != "" && !schema.ValidAction(a) {
			return schema.ForeignKey{}, fmt.Errorf("unsupported referential action %q", a)
		}
	}
	return schema.ForeignKey{
		Name:       r.Name,
		Columns:    cols,
		RefTable:   r.TargetTable,
		RefColumns: refCols,
		OnUpdate:   schema.NormalizeAction(r.OnUpdate),
		OnDelete:   schema.NormalizeAction(r.OnDelete),
	}, nil
}

// Has reports whether a table is registered as an entity or takes part in a
// relationship.
func (r *Registry) Has(table string) bool {
	if _, ok := r.entities[table]; ok {
		return true
	}
	if _, ok := r.relations[table]; ok {
		return true
	}
	for _, fks := range r.relations {
		for _, fk := range fks {
			if strings.EqualFold(fk.RefTable, table) {
				return true
			}
		}
	}
	return false
}

// Tables returns every table named by the registry, sorted.
func (r *Registry) Tables() []string {
	set := make(map[string]bool)
	for name := range r.entities {
		set[name] = true
	}
	for src, fks := range r.relations {
		set[src] = true
		for _, fk := range fks {
			set[fk.RefTable] = true
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RelationsFrom returns the explicit foreign keys whose source is table, in
// document order.
func (r *Registry) RelationsFrom(table string) []schema.ForeignKey {
	fks := r.relations[table]
	out := make([]schema.ForeignKey, len(fks))
	copy(out, fks)
	return out
}

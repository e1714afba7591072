package schema

import (
	"fmt"
	"sort"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/unicode/norm"
)

// Lookup resolves entity names to schemas.
//
// This is the only capability the parser and the lowering compiler need.
// Implementations must be safe for concurrent reads.
type Lookup interface {
	Schema(name string) (*Schema, bool)
}

// EntityDef is the declarative form of an entity, as written in schema files.
type EntityDef struct {
	Name         string           `json:"name"`
	Table        string           `json:"table,omitempty"`
	ID           string           `json:"id,omitempty"`
	Columns      []ColumnDef      `json:"columns"`
	Associations []AssociationDef `json:"associations,omitempty"`
}

// ColumnDef declares a column.
type ColumnDef struct {
	Name   string `json:"name"`
	Field  string `json:"field,omitempty"`
	RefKey bool   `json:"ref_key,omitempty"`
}

// AssociationDef declares an association. Ref names the related entity.
//
// Key defaults when left empty:
//   - BelongsTo: RefKey = <association>_id
//   - HasOne, HasMany: RefKey = <current entity>_id
//   - BelongsToMany: MiddleKey = <current entity>_id, RefMiddleKey = <ref entity>_id
type AssociationDef struct {
	Name         string          `json:"name"`
	Type         AssociationType `json:"type"`
	Ref          string          `json:"ref"`
	Required     bool            `json:"required,omitempty"`
	RefKey       string          `json:"ref_key,omitempty"`
	Middle       string          `json:"middle,omitempty"`
	MiddleKey    string          `json:"middle_key,omitempty"`
	RefMiddleKey string          `json:"ref_middle_key,omitempty"`
}

// Registry is an immutable set of resolved schemas.
type Registry struct {
	schemas map[string]*Schema
}

var _ Lookup = (*Registry)(nil)

// NewRegistry validates the definitions and resolves every association.
// Returns the first validation error; use Validate to collect all of them.
func NewRegistry(defs ...EntityDef) (*Registry, error) {
	normalized := make([]EntityDef, len(defs))
	for i, def := range defs {
		normalized[i] = applyDefaults(def)
	}

	if errs := Validate(normalized); len(errs) > 0 {
		return nil, errs[0]
	}

	r := &Registry{schemas: make(map[string]*Schema, len(normalized))}
	for _, def := range normalized {
		r.schemas[def.Name] = newSchema(def)
	}

	// Second pass: associations may reference entities declared later.
	for _, def := range normalized {
		current := r.schemas[def.Name]
		for _, ad := range def.Associations {
			ref := r.schemas[ad.Ref]
			a := &Association{
				Name:         ad.Name,
				Type:         ad.Type,
				Required:     ad.Required,
				Ref:          ref,
				Current:      current,
				RefKey:       ad.RefKey,
				RefID:        ref.ID(),
				Middle:       ad.Middle,
				MiddleKey:    ad.MiddleKey,
				RefMiddleKey: ad.RefMiddleKey,
			}
			current.associations = append(current.associations, a)
			current.assocIndex[a.Name] = a
		}
	}

	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for fixtures.
func MustRegistry(defs ...EntityDef) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(fmt.Sprintf("schema: %v", err))
	}
	return r
}

// Schema implements Lookup.
func (r *Registry) Schema(name string) (*Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns all entity names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newSchema(def EntityDef) *Schema {
	s := &Schema{
		Name:        def.Name,
		Table:       def.Table,
		idColumn:    def.ID,
		columnIndex: make(map[string]*Column, len(def.Columns)),
		assocIndex:  make(map[string]*Association, len(def.Associations)),
	}
	for _, cd := range def.Columns {
		c := &Column{Name: cd.Name, Field: cd.Field, RefKey: cd.RefKey}
		s.columns = append(s.columns, c)
		s.columnIndex[c.Name] = c
	}
	return s
}

// applyDefaults fills in derived names. It never overrides explicit values.
func applyDefaults(def EntityDef) EntityDef {
	out := def
	out.Name = normalize(def.Name)
	if out.Table == "" {
		out.Table = inflect.Underscore(out.Name)
	}
	out.ID = normalize(def.ID)
	if out.ID == "" {
		out.ID = "id"
	}

	out.Columns = make([]ColumnDef, len(def.Columns))
	for i, cd := range def.Columns {
		cd.Name = normalize(cd.Name)
		if cd.Field == "" {
			cd.Field = inflect.Underscore(cd.Name)
		}
		out.Columns[i] = cd
	}

	out.Associations = make([]AssociationDef, len(def.Associations))
	for i, ad := range def.Associations {
		ad.Name = normalize(ad.Name)
		ad.Ref = normalize(ad.Ref)
		switch ad.Type {
		case BelongsTo:
			if ad.RefKey == "" {
				ad.RefKey = foreignKey(ad.Name)
			}
		case HasOne, HasMany:
			if ad.RefKey == "" {
				ad.RefKey = foreignKey(out.Name)
			}
		case BelongsToMany:
			if ad.MiddleKey == "" {
				ad.MiddleKey = foreignKey(out.Name)
			}
			if ad.RefMiddleKey == "" {
				ad.RefMiddleKey = foreignKey(ad.Ref)
			}
		}
		out.Associations[i] = ad
	}
	return out
}

func foreignKey(name string) string {
	return inflect.Underscore(name) + "_id"
}

// normalize applies NFC so that identifiers typed in queries match
// identifiers declared in schema files regardless of input composition.
func normalize(name string) string {
	return norm.NFC.String(name)
}

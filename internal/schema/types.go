package schema

import "fmt"

// AssociationType is the cardinality of a declared relationship.
type AssociationType int

const (
	// BelongsTo: the current entity stores the foreign key (user.role_id).
	BelongsTo AssociationType = iota + 1
	// HasOne: the related entity stores the foreign key, at most one row.
	HasOne
	// HasMany: the related entity stores the foreign key, any number of rows.
	HasMany
	// BelongsToMany: both sides are linked through a middle table.
	BelongsToMany
)

var associationTypeNames = map[AssociationType]string{
	BelongsTo:     "belongsTo",
	HasOne:        "hasOne",
	HasMany:       "hasMany",
	BelongsToMany: "belongsToMany",
}

// String returns the name used in schema files.
func (t AssociationType) String() string {
	if name, ok := associationTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AssociationType(%d)", int(t))
}

// ToMany reports whether joining the association can multiply rows.
func (t AssociationType) ToMany() bool {
	return t == HasMany || t == BelongsToMany
}

// ParseAssociationType maps a schema-file name to an AssociationType.
func ParseAssociationType(name string) (AssociationType, error) {
	for t, n := range associationTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown association type %q", name)
}

// Column is a single scalar attribute of an entity.
type Column struct {
	Name   string // name used in queries
	Field  string // storage column name
	RefKey bool   // foreign key column, excluded from wildcard expansion
}

// Association is a resolved relationship from one entity to another.
//
// RefKey is a storage field name whose owner depends on Type:
//   - BelongsTo: field on the current entity (user.role_id)
//   - HasOne, HasMany: field on the related entity (user.role_id for role→users)
//
// Middle, MiddleKey and RefMiddleKey are only set for BelongsToMany.
// MiddleKey points at the current entity, RefMiddleKey at the related one.
type Association struct {
	Name     string
	Type     AssociationType
	Required bool

	Ref     *Schema // related entity
	Current *Schema // entity declaring the association
	RefKey  string
	RefID   *Column // id column of Ref

	Middle       string
	MiddleKey    string
	RefMiddleKey string
}

// Schema is the metadata of one entity.
type Schema struct {
	Name  string
	Table string

	idColumn     string
	columns      []*Column
	columnIndex  map[string]*Column
	associations []*Association
	assocIndex   map[string]*Association
}

// ID returns the identifier column.
func (s *Schema) ID() *Column {
	return s.columnIndex[s.idColumn]
}

// Column returns the named column.
func (s *Schema) Column(name string) (*Column, bool) {
	c, ok := s.columnIndex[name]
	return c, ok
}

// ContainsColumn reports whether name is a column of the entity.
func (s *Schema) ContainsColumn(name string) bool {
	_, ok := s.columnIndex[name]
	return ok
}

// Columns returns the columns in declaration order.
func (s *Schema) Columns() []*Column {
	return s.columns
}

// ColumnNames returns the column names in declaration order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Association returns the named association.
func (s *Schema) Association(name string) (*Association, bool) {
	a, ok := s.assocIndex[name]
	return a, ok
}

// ContainsAssociation reports whether name is an association of the entity.
func (s *Schema) ContainsAssociation(name string) bool {
	_, ok := s.assocIndex[name]
	return ok
}

// Associations returns the associations in declaration order.
func (s *Schema) Associations() []*Association {
	return s.associations
}

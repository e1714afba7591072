package sqlast

// Statement is a complete SQL statement.
//
// This is a sealed interface - only types in this package implement it:
//   - *Insert
//   - *Update
//   - *Delete
//   - *Query
type Statement interface {
	statementNode()
}

// Insert adds one row. Columns[i] is bound to the named parameter Params[i].
type Insert struct {
	Table   string
	Columns []string
	Params  []string
}

// Update modifies rows matching Where. A nil Where matches every row.
type Update struct {
	Table string
	Sets  []Assign
	Where Expr
}

// Assign sets a storage field to a named parameter.
type Assign struct {
	Field string
	Param string
}

// Delete removes rows matching Where. A nil Where matches every row.
type Delete struct {
	Table string
	Where Expr
}

// Query is a select statement.
//
// An empty Select means every column of From. Where is a conjunction: each
// entry is ANDed with the others. Page is nil when no pagination applies.
type Query struct {
	Select []Column
	From   Form
	Joins  []Join
	Where  []Expr
	Orders []Order
	Page   *Page
}

func (*Insert) statementNode() {}
func (*Update) statementNode() {}
func (*Delete) statementNode() {}
func (*Query) statementNode()  {}

// Column is a storage field qualified by the path alias of the entity level
// it belongs to. An empty Path leaves the field unqualified.
//
// Count marks the aggregate COUNT(DISTINCT path.field).
type Column struct {
	Field string
	Path  string
	Count bool
}

// Form is the source of a Query's rows.
//
// This is a sealed interface - only types in this package implement it:
//   - *TableForm: a base table
//   - *SubqueryForm: a derived table
type Form interface {
	formNode()
}

// TableForm reads a base table, aliased as Alias when Alias is non-empty.
type TableForm struct {
	Table string
	Alias string
}

// SubqueryForm reads the rows of Query, aliased as Alias.
type SubqueryForm struct {
	Query *Query
	Alias string
}

func (*TableForm) formNode()    {}
func (*SubqueryForm) formNode() {}

// JoinKind selects inner or left outer join semantics.
type JoinKind int

const (
	InnerJoin JoinKind = iota + 1
	LeftJoin
)

func (k JoinKind) String() string {
	if k == InnerJoin {
		return "INNER JOIN"
	}
	return "LEFT JOIN"
}

// Join attaches Table under the alias Path.
type Join struct {
	Table string
	Path  string
	Kind  JoinKind
	On    Expr
}

// Sort is an ordering direction.
type Sort string

const (
	Asc  Sort = "asc"
	Desc Sort = "desc"
)

// Order sorts by one or more columns sharing one direction.
type Order struct {
	Columns []Column
	Sort    Sort
}

// Page bounds a result. Limit 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

// HasLimit reports whether p requests a bounded number of rows.
func (p *Page) HasLimit() bool {
	return p != nil && p.Limit > 0
}

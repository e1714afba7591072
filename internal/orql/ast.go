package orql

import (
	"fmt"
	"strconv"

	"github.com/roach88/orql/internal/schema"
)

// Operation is the statement kind selected by the leading name of a query.
type Operation int

const (
	OpAdd Operation = iota + 1
	OpUpdate
	OpDelete
	OpQuery
	OpCount
)

// operationNames is the fixed name table used by the parser.
// "get" is accepted as an alias of "query".
var operationNames = map[string]Operation{
	"add":    OpAdd,
	"update": OpUpdate,
	"delete": OpDelete,
	"query":  OpQuery,
	"get":    OpQuery,
	"count":  OpCount,
}

func (op Operation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpQuery:
		return "query"
	case OpCount:
		return "count"
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// LookupOperation resolves an operation name.
func LookupOperation(name string) (Operation, bool) {
	op, ok := operationNames[name]
	return op, ok
}

// Query is the root of a parsed ORQL statement.
//
// A Query is immutable once returned by the parser and carries no execution
// state, so it may be cached and shared between goroutines.
type Query struct {
	Op   Operation
	Root *RefItem
}

// Item is a member of an item list.
//
// This is a sealed interface - only types in this package implement it:
//   - *ColumnItem: a selected column
//   - *RefItem: a nested association
//   - *AllItem: the '*' marker, expanded by the parser and never present
//     in a returned AST
type Item interface {
	ItemName() string
	itemNode()
}

// ColumnItem selects a column of the enclosing entity.
type ColumnItem struct {
	Column *schema.Column
}

func (c *ColumnItem) ItemName() string { return c.Column.Name }
func (*ColumnItem) itemNode()          {}

// AllItem is the wildcard marker.
type AllItem struct{}

func (*AllItem) ItemName() string { return "*" }
func (*AllItem) itemNode()        {}

// RefKind distinguishes single-object from array shaped references.
type RefKind int

const (
	// ObjectRef yields at most one related row (root {...}, BelongsTo, HasOne).
	ObjectRef RefKind = iota + 1
	// ArrayRef yields any number of rows (root [...], HasMany, BelongsToMany).
	ArrayRef
)

func (k RefKind) String() string {
	if k == ArrayRef {
		return "array"
	}
	return "object"
}

// RefItem is an entity level of the item tree: the query root or a nested
// association. Association is nil only for the root.
type RefItem struct {
	Name        string
	Schema      *schema.Schema
	Association *schema.Association
	Kind        RefKind
	Children    []Item
	Where       *Where
}

func (r *RefItem) ItemName() string { return r.Name }
func (*RefItem) itemNode()          {}

// IsArray reports whether the item is array shaped.
func (r *RefItem) IsArray() bool { return r.Kind == ArrayRef }

// Where holds the optional filter expression and orderings of a RefItem.
type Where struct {
	Expr   Expr
	Orders []Order
}

// Sort is an ordering direction.
type Sort string

const (
	Asc  Sort = "asc"
	Desc Sort = "desc"
)

// Order groups one or more columns sharing one sort direction.
type Order struct {
	Columns []*schema.Column
	Sort    Sort
}

// Expr is a boolean expression.
//
// This is a sealed interface - only types in this package implement it:
//   - *AndExpr, *OrExpr: binary connectives
//   - *NestExpr: a parenthesised expression
//   - *CompareExpr: column <op> operand
type Expr interface {
	exprNode()
}

type AndExpr struct {
	Left, Right Expr
}

type OrExpr struct {
	Left, Right Expr
}

type NestExpr struct {
	Inner Expr
}

// CompareExpr compares a column of the current entity to an operand.
type CompareExpr struct {
	Left  *schema.Column
	Op    Op
	Right Operand
}

func (*AndExpr) exprNode()     {}
func (*OrExpr) exprNode()      {}
func (*NestExpr) exprNode()    {}
func (*CompareExpr) exprNode() {}

// Op is a comparison operator.
type Op string

const (
	OpEq   Op = "="
	OpGt   Op = ">"
	OpGe   Op = ">="
	OpLt   Op = "<"
	OpLe   Op = "<="
	OpNe   Op = "<>"
	OpLike Op = "like"
)

// Operand is the right-hand side of a comparison.
//
// This is a sealed interface - only types in this package implement it:
//   - *ColumnOperand: another column of the same entity
//   - *ParamOperand: a named parameter bound at execution time
//   - Value: a literal
type Operand interface {
	operandNode()
}

type ColumnOperand struct {
	Column *schema.Column
}

type ParamOperand struct {
	Name string
}

func (*ColumnOperand) operandNode() {}
func (*ParamOperand) operandNode()  {}

// Value is a literal. Only IntValue, FloatValue, BoolValue, StringValue and
// NullValue implement it.
type Value interface {
	Operand
	valueNode()
	// Native returns the Go value: int64, float64, bool, string or nil.
	Native() any
}

type IntValue int64

type FloatValue float64

type BoolValue bool

type StringValue string

type NullValue struct{}

func (IntValue) operandNode()    {}
func (FloatValue) operandNode()  {}
func (BoolValue) operandNode()   {}
func (StringValue) operandNode() {}
func (NullValue) operandNode()   {}

func (IntValue) valueNode()    {}
func (FloatValue) valueNode()  {}
func (BoolValue) valueNode()   {}
func (StringValue) valueNode() {}
func (NullValue) valueNode()   {}

func (v IntValue) Native() any    { return int64(v) }
func (v FloatValue) Native() any  { return float64(v) }
func (v BoolValue) Native() any   { return bool(v) }
func (v StringValue) Native() any { return string(v) }
func (NullValue) Native() any     { return nil }

func (v IntValue) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v FloatValue) String() string  { return strconv.FormatFloat(float64(v), 'g', -1, 64) }
func (v BoolValue) String() string   { return strconv.FormatBool(bool(v)) }
func (v StringValue) String() string { return strconv.Quote(string(v)) }
func (NullValue) String() string     { return "null" }

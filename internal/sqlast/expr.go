package sqlast

// Expr is a boolean SQL expression.
//
// This is a sealed interface - only types in this package implement it:
//   - *And, *Or: binary connectives
//   - *Nest: explicit parentheses
//   - *Compare: column <op> operand
type Expr interface {
	exprNode()
}

type And struct {
	Left, Right Expr
}

type Or struct {
	Left, Right Expr
}

type Nest struct {
	Inner Expr
}

type Compare struct {
	Left  Column
	Op    Op
	Right Operand
}

func (*And) exprNode()     {}
func (*Or) exprNode()      {}
func (*Nest) exprNode()    {}
func (*Compare) exprNode() {}

// Op is a comparison operator.
type Op string

const (
	Eq   Op = "="
	Gt   Op = ">"
	Ge   Op = ">="
	Lt   Op = "<"
	Le   Op = "<="
	Ne   Op = "<>"
	Like Op = "like"
)

// Operand is the right-hand side of a Compare.
//
// This is a sealed interface - only types in this package implement it:
//   - ColumnRef: another column
//   - Param: a named parameter bound at execution time
//   - Literal: an inline value
type Operand interface {
	operandNode()
}

// ColumnRef wraps a Column as an operand.
type ColumnRef struct {
	Column Column
}

// Param is a named placeholder.
type Param struct {
	Name string
}

// Literal is an inline value: int64, float64, bool, string or nil.
type Literal struct {
	Value any
}

func (ColumnRef) operandNode() {}
func (Param) operandNode()     {}
func (Literal) operandNode()   {}

// Conjoin folds exprs into a right-leaning chain of And nodes. It returns nil
// for an empty slice.
func Conjoin(exprs []Expr) Expr {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	}
	return &And{Left: exprs[0], Right: Conjoin(exprs[1:])}
}

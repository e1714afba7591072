package querysql

import (
	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/sqlast"
)

var sqlOps = map[orql.Op]sqlast.Op{
	orql.OpEq:   sqlast.Eq,
	orql.OpGt:   sqlast.Gt,
	orql.OpGe:   sqlast.Ge,
	orql.OpLt:   sqlast.Lt,
	orql.OpLe:   sqlast.Le,
	orql.OpNe:   sqlast.Ne,
	orql.OpLike: sqlast.Like,
}

// genExpr translates an expression node for node, qualifying every column
// with path.
func genExpr(e orql.Expr, path string) (sqlast.Expr, error) {
	switch e := e.(type) {
	case *orql.AndExpr:
		l, r, err := genPair(e.Left, e.Right, path)
		if err != nil {
			return nil, err
		}
		return &sqlast.And{Left: l, Right: r}, nil
	case *orql.OrExpr:
		l, r, err := genPair(e.Left, e.Right, path)
		if err != nil {
			return nil, err
		}
		return &sqlast.Or{Left: l, Right: r}, nil
	case *orql.NestExpr:
		inner, err := genExpr(e.Inner, path)
		if err != nil {
			return nil, err
		}
		return &sqlast.Nest{Inner: inner}, nil
	case *orql.CompareExpr:
		return genCompare(e, path)
	}
	return nil, genErrorf(path, "unknown expression %T", e)
}

func genPair(left, right orql.Expr, path string) (sqlast.Expr, sqlast.Expr, error) {
	l, err := genExpr(left, path)
	if err != nil {
		return nil, nil, err
	}
	r, err := genExpr(right, path)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

// genCompare resolves the right side as a column, then a parameter, then a
// literal.
func genCompare(e *orql.CompareExpr, path string) (sqlast.Expr, error) {
	if e.Left == nil {
		return nil, genErrorf(path, "comparison without column")
	}
	op, ok := sqlOps[e.Op]
	if !ok {
		return nil, genErrorf(path, "unknown operator %q", e.Op)
	}

	var right sqlast.Operand
	switch r := e.Right.(type) {
	case *orql.ColumnOperand:
		right = sqlast.ColumnRef{Column: sqlast.Column{Field: r.Column.Field, Path: path}}
	case *orql.ParamOperand:
		right = sqlast.Param{Name: r.Name}
	case orql.Value:
		right = sqlast.Literal{Value: r.Native()}
	default:
		return nil, genErrorf(path, "unknown operand %T", e.Right)
	}

	return &sqlast.Compare{
		Left:  sqlast.Column{Field: e.Left.Field, Path: path},
		Op:    op,
		Right: right,
	}, nil
}

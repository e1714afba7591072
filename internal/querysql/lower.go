package querysql

import (
	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/sqlast"
)

// PathSeparator joins association names onto their parent's path.
const PathSeparator = "."

// Lower dispatches q to the entry point for its operation.
func Lower(q *orql.Query, page *sqlast.Page) (sqlast.Statement, error) {
	if q == nil {
		return nil, genErrorf("", "nil query")
	}
	switch q.Op {
	case orql.OpAdd:
		return ToAdd(q.Root)
	case orql.OpUpdate:
		return ToUpdate(q.Root)
	case orql.OpDelete:
		return ToDelete(q.Root)
	case orql.OpQuery, orql.OpCount:
		return ToQuery(q.Op, q.Root, page)
	}
	return nil, genErrorf("", "unknown operation %s", q.Op)
}

// ToAdd lowers an add. Direct column children are inserted from parameters
// named after the column; a BelongsTo child inserts its foreign key from a
// parameter named after the key. Other associations are not cascaded.
func ToAdd(root *orql.RefItem) (*sqlast.Insert, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	assigns, err := assignments(root)
	if err != nil {
		return nil, err
	}

	ins := &sqlast.Insert{Table: root.Schema.Table}
	for _, a := range assigns {
		ins.Columns = append(ins.Columns, a.Field)
		ins.Params = append(ins.Params, a.Param)
	}
	return ins, nil
}

// ToUpdate lowers an update. Sets follow the same rule as ToAdd.
func ToUpdate(root *orql.RefItem) (*sqlast.Update, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	sets, err := assignments(root)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, genErrorf(root.Schema.Table, "update of %q selects no columns", root.Name)
	}
	where, err := rootWhere(root)
	if err != nil {
		return nil, err
	}
	return &sqlast.Update{Table: root.Schema.Table, Sets: sets, Where: where}, nil
}

// ToDelete lowers a delete.
func ToDelete(root *orql.RefItem) (*sqlast.Delete, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	where, err := rootWhere(root)
	if err != nil {
		return nil, err
	}
	return &sqlast.Delete{Table: root.Schema.Table, Where: where}, nil
}

// ToQuery lowers a query or count. page may be nil.
func ToQuery(op orql.Operation, root *orql.RefItem, page *sqlast.Page) (*sqlast.Query, error) {
	if op != orql.OpQuery && op != orql.OpCount {
		return nil, genErrorf("", "ToQuery called with operation %s", op)
	}
	if err := checkRoot(root); err != nil {
		return nil, err
	}
	p, err := collect(op, traverse(root))
	if err != nil {
		return nil, err
	}
	return assemble(op, root, p, page), nil
}

func checkRoot(root *orql.RefItem) error {
	if root == nil {
		return genErrorf("", "nil root")
	}
	if root.Schema == nil {
		return genErrorf(root.Name, "root %q has no schema", root.Name)
	}
	return nil
}

func rootWhere(root *orql.RefItem) (sqlast.Expr, error) {
	if root.Where == nil || root.Where.Expr == nil {
		return nil, nil
	}
	return genExpr(root.Where.Expr, root.Schema.Table)
}

// assignments collects the (field, param) pairs written by add and update.
func assignments(root *orql.RefItem) ([]sqlast.Assign, error) {
	var out []sqlast.Assign
	for _, child := range root.Children {
		switch c := child.(type) {
		case *orql.ColumnItem:
			out = append(out, sqlast.Assign{Field: c.Column.Field, Param: c.Column.Name})
		case *orql.RefItem:
			if c.Association == nil {
				return nil, genErrorf(root.Schema.Table, "association %q has no metadata", c.Name)
			}
			if c.Association.Type == schema.BelongsTo {
				key := c.Association.RefKey
				out = append(out, sqlast.Assign{Field: key, Param: key})
			}
		case *orql.AllItem:
			return nil, genErrorf(root.Schema.Table, "unexpanded wildcard")
		default:
			return nil, genErrorf(root.Schema.Table, "unknown item %T", child)
		}
	}
	return out, nil
}

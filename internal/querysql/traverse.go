package querysql

import (
	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/sqlast"
)

// middleSeparator joins a many-to-many middle table onto its association
// path. Item names cannot contain it, so the alias never collides with a
// nested association.
const middleSeparator = "#"

// frame is one entity level of the item tree, tagged with its path.
type frame struct {
	item *orql.RefItem
	path string
	root bool
}

// traverse lists the entity levels of the tree depth first, parents before
// children and siblings in declared order.
func traverse(root *orql.RefItem) []frame {
	var frames []frame
	stack := []frame{{item: root, path: root.Schema.Table, root: true}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		frames = append(frames, f)

		// Push in reverse so the first child is popped first.
		for i := len(f.item.Children) - 1; i >= 0; i-- {
			child, ok := f.item.Children[i].(*orql.RefItem)
			if !ok {
				continue
			}
			stack = append(stack, frame{item: child, path: f.path + PathSeparator + child.Name})
		}
	}
	return frames
}

// plan is the result of folding the frames of a query. It is never mutated
// after collect returns.
type plan struct {
	selects    []sqlast.Column
	joins      []sqlast.Join
	where      []sqlast.Expr // nested levels only
	orders     []sqlast.Order
	rootExpr   sqlast.Expr
	rootOrders []sqlast.Order
	fanOut     bool
}

// collect folds frames into a plan.
func collect(op orql.Operation, frames []frame) (plan, error) {
	var p plan
	for _, f := range frames {
		if err := p.visit(op, f); err != nil {
			return plan{}, err
		}
	}
	return p, nil
}

func (p *plan) visit(op orql.Operation, f frame) error {
	s := f.item.Schema
	if s == nil {
		return genErrorf(f.path, "%q has no schema", f.item.Name)
	}

	if w := f.item.Where; w != nil {
		if w.Expr != nil {
			e, err := genExpr(w.Expr, f.path)
			if err != nil {
				return err
			}
			if f.root {
				p.rootExpr = e
			} else {
				p.where = append(p.where, e)
			}
		}
		for _, o := range w.Orders {
			order := genOrder(o, f.path)
			if f.root {
				p.rootOrders = append(p.rootOrders, order)
			}
			p.orders = append(p.orders, order)
		}
	}

	id := s.ID()
	hasID := false
	for _, child := range f.item.Children {
		switch c := child.(type) {
		case *orql.ColumnItem:
			if c.Column.Name == id.Name {
				hasID = true
			}
			if op != orql.OpCount {
				p.selects = append(p.selects, sqlast.Column{Field: c.Column.Field, Path: f.path})
			}
		case *orql.RefItem:
			a := c.Association
			if a == nil || a.Ref == nil {
				return genErrorf(f.path, "association %q has no metadata", c.Name)
			}
			if a.Type.ToMany() && len(c.Children) > 0 {
				p.fanOut = true
			}
			p.joins = append(p.joins, joinsFor(a, f.path, f.path+PathSeparator+c.Name)...)
		case *orql.AllItem:
			return genErrorf(f.path, "unexpanded wildcard")
		default:
			return genErrorf(f.path, "unknown item %T", child)
		}
	}

	// Every level that selects anything carries its id, including levels
	// with only associations: rows are grouped by it when shaped.
	if len(f.item.Children) > 0 && !hasID && op != orql.OpCount {
		p.selects = append(p.selects, sqlast.Column{Field: id.Field, Path: f.path})
	}
	return nil
}

// joinsFor synthesizes the joins attaching an association at childPath.
func joinsFor(a *schema.Association, currentPath, childPath string) []sqlast.Join {
	kind := sqlast.LeftJoin
	if a.Required {
		kind = sqlast.InnerJoin
	}
	currentID := a.Current.ID().Field

	switch a.Type {
	case schema.HasOne, schema.HasMany:
		// role hasMany user: user.role_id = role.id
		return []sqlast.Join{{
			Table: a.Ref.Table,
			Path:  childPath,
			Kind:  kind,
			On:    eqColumns(a.RefKey, childPath, currentID, currentPath),
		}}
	case schema.BelongsTo:
		// user belongsTo role: role.id = user.role_id
		return []sqlast.Join{{
			Table: a.Ref.Table,
			Path:  childPath,
			Kind:  kind,
			On:    eqColumns(a.RefID.Field, childPath, a.RefKey, currentPath),
		}}
	case schema.BelongsToMany:
		// post belongsToMany tag via post_tag:
		// post_tag.post_id = post.id, then tag.id = post_tag.tag_id
		middlePath := childPath + middleSeparator + a.Middle
		return []sqlast.Join{
			{
				Table: a.Middle,
				Path:  middlePath,
				Kind:  kind,
				On:    eqColumns(a.MiddleKey, middlePath, currentID, currentPath),
			},
			{
				Table: a.Ref.Table,
				Path:  childPath,
				Kind:  kind,
				On:    eqColumns(a.RefID.Field, childPath, a.RefMiddleKey, middlePath),
			},
		}
	}
	return nil
}

func eqColumns(leftField, leftPath, rightField, rightPath string) sqlast.Expr {
	return &sqlast.Compare{
		Left:  sqlast.Column{Field: leftField, Path: leftPath},
		Op:    sqlast.Eq,
		Right: sqlast.ColumnRef{Column: sqlast.Column{Field: rightField, Path: rightPath}},
	}
}

func genOrder(o orql.Order, path string) sqlast.Order {
	cols := make([]sqlast.Column, len(o.Columns))
	for i, c := range o.Columns {
		cols[i] = sqlast.Column{Field: c.Field, Path: path}
	}
	sort := sqlast.Asc
	if o.Sort == orql.Desc {
		sort = sqlast.Desc
	}
	return sqlast.Order{Columns: cols, Sort: sort}
}

// assemble builds the final select from a plan.
func assemble(op orql.Operation, root *orql.RefItem, p plan, page *sqlast.Page) *sqlast.Query {
	table := root.Schema.Table
	from := &sqlast.TableForm{Table: table, Alias: table}

	withRoot := func() []sqlast.Expr {
		if p.rootExpr == nil {
			return p.where
		}
		return append([]sqlast.Expr{p.rootExpr}, p.where...)
	}

	switch {
	case op == orql.OpCount:
		return &sqlast.Query{
			Select: []sqlast.Column{{Field: root.Schema.ID().Field, Path: table, Count: true}},
			From:   from,
			Joins:  p.joins,
			Where:  withRoot(),
			Page:   page,
		}

	case p.fanOut && page.HasLimit():
		// A limit over joined rows would count duplicated roots; page the
		// root table in a derived table instead.
		inner := &sqlast.Query{
			From:   &sqlast.TableForm{Table: table},
			Orders: p.rootOrders,
			Page:   page,
		}
		if p.rootExpr != nil {
			inner.Where = []sqlast.Expr{p.rootExpr}
		}
		// Joins do not preserve the derived table's order, so the root
		// orders are repeated outside.
		return &sqlast.Query{
			Select: p.selects,
			From:   &sqlast.SubqueryForm{Query: inner, Alias: table},
			Joins:  p.joins,
			Where:  p.where,
			Orders: p.orders,
		}

	case !p.fanOut && !page.HasLimit() && !root.IsArray():
		forced := &sqlast.Page{Limit: 1}
		if page != nil {
			forced.Offset = page.Offset
		}
		return &sqlast.Query{
			Select: p.selects,
			From:   from,
			Joins:  p.joins,
			Where:  withRoot(),
			Orders: p.orders,
			Page:   forced,
		}
	}

	return &sqlast.Query{
		Select: p.selects,
		From:   from,
		Joins:  p.joins,
		Where:  withRoot(),
		Orders: p.orders,
		Page:   page,
	}
}

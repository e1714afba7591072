package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/orql/internal/sqlast"
)

// Dialect names a SQL flavour supported by the renderer.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

// Dialects lists every supported dialect.
var Dialects = []Dialect{SQLite, Postgres, MySQL}

// ParseDialect validates a dialect name.
func ParseDialect(name string) (Dialect, error) {
	for _, d := range Dialects {
		if string(d) == name {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dialect %q (want sqlite, postgres or mysql)", name)
}

// Rendered is statement text plus the parameter names bound to its
// placeholders, in placeholder order.
type Rendered struct {
	SQL    string
	Params []string
}

// Renderer turns SQL AST statements into text for one dialect.
//
// Values in the AST are rendered inline; named parameters become positional
// placeholders (? or $n). Select columns are aliased "<path>.<field>" so
// rows can be shaped back into nested objects.
type Renderer struct {
	Dialect Dialect
}

// NewRenderer creates a Renderer for d.
func NewRenderer(d Dialect) *Renderer {
	return &Renderer{Dialect: d}
}

// Quote quotes an identifier for the renderer's dialect.
func (r *Renderer) Quote(name string) string {
	w := &writer{dialect: r.Dialect}
	return w.ident(name)
}

// Render renders stmt.
func (r *Renderer) Render(stmt sqlast.Statement) (Rendered, error) {
	if stmt == nil {
		return Rendered{}, fmt.Errorf("cannot render nil statement")
	}
	w := &writer{dialect: r.Dialect, positions: map[string]int{}}

	var err error
	switch s := stmt.(type) {
	case *sqlast.Insert:
		err = w.insert(s)
	case *sqlast.Update:
		err = w.update(s)
	case *sqlast.Delete:
		err = w.delete(s)
	case *sqlast.Query:
		err = w.query(s)
	default:
		err = fmt.Errorf("unsupported statement type: %T", stmt)
	}
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{SQL: w.b.String(), Params: w.params}, nil
}

// CountAlias is the result column name of a count query.
const CountAlias = "count"

type writer struct {
	dialect   Dialect
	b         strings.Builder
	params    []string
	positions map[string]int // postgres: param name -> $n
}

func (w *writer) write(parts ...string) {
	for _, p := range parts {
		w.b.WriteString(p)
	}
}

func (w *writer) ident(name string) string {
	if w.dialect == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (w *writer) column(c sqlast.Column) string {
	if c.Path == "" {
		return w.ident(c.Field)
	}
	return w.ident(c.Path) + "." + w.ident(c.Field)
}

// placeholder records a parameter use and returns its placeholder text.
// Postgres reuses $n for repeated names.
func (w *writer) placeholder(name string) string {
	if w.dialect != Postgres {
		w.params = append(w.params, name)
		return "?"
	}
	n, ok := w.positions[name]
	if !ok {
		w.params = append(w.params, name)
		n = len(w.params)
		w.positions[name] = n
	}
	return "$" + strconv.Itoa(n)
}

func (w *writer) literal(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case string:
		return "'" + w.escapeString(v) + "'", nil
	}
	return "", fmt.Errorf("unsupported literal type: %T", v)
}

// escapeString doubles single quotes, and backslashes for MySQL where they
// are escape characters by default.
func (w *writer) escapeString(s string) string {
	if w.dialect == MySQL {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	return strings.ReplaceAll(s, "'", "''")
}

func (w *writer) insert(s *sqlast.Insert) error {
	if len(s.Columns) != len(s.Params) {
		return fmt.Errorf("insert into %s: %d columns but %d params", s.Table, len(s.Columns), len(s.Params))
	}
	w.write("INSERT INTO ", w.ident(s.Table))
	if len(s.Columns) == 0 {
		if w.dialect == MySQL {
			w.write(" () VALUES ()")
		} else {
			w.write(" DEFAULT VALUES")
		}
		return nil
	}

	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = w.ident(c)
	}
	vals := make([]string, len(s.Params))
	for i, p := range s.Params {
		vals[i] = w.placeholder(p)
	}
	w.write(" (", strings.Join(cols, ", "), ") VALUES (", strings.Join(vals, ", "), ")")
	return nil
}

func (w *writer) update(s *sqlast.Update) error {
	if len(s.Sets) == 0 {
		return fmt.Errorf("update %s: no assignments", s.Table)
	}
	sets := make([]string, len(s.Sets))
	for i, a := range s.Sets {
		sets[i] = w.ident(a.Field) + " = " + w.placeholder(a.Param)
	}
	w.write("UPDATE ", w.ident(s.Table), " SET ", strings.Join(sets, ", "))
	return w.where(nonNil(s.Where))
}

func (w *writer) delete(s *sqlast.Delete) error {
	w.write("DELETE FROM ", w.ident(s.Table))
	return w.where(nonNil(s.Where))
}

func nonNil(e sqlast.Expr) []sqlast.Expr {
	if e == nil {
		return nil
	}
	return []sqlast.Expr{e}
}

func (w *writer) query(q *sqlast.Query) error {
	w.write("SELECT ")
	if len(q.Select) == 0 {
		w.write("*")
	}
	for i, c := range q.Select {
		if i > 0 {
			w.write(", ")
		}
		if c.Count {
			w.write("COUNT(DISTINCT ", w.column(c), ") AS ", w.ident(CountAlias))
			continue
		}
		w.write(w.column(c))
		if c.Path != "" {
			w.write(" AS ", w.ident(c.Path+PathSeparator+c.Field))
		}
	}

	w.write(" FROM ")
	if err := w.form(q.From); err != nil {
		return err
	}

	for _, j := range q.Joins {
		w.write(" ", j.Kind.String(), " ", w.ident(j.Table), " AS ", w.ident(j.Path), " ON ")
		if err := w.expr(j.On, false); err != nil {
			return err
		}
	}

	if err := w.where(q.Where); err != nil {
		return err
	}

	if len(q.Orders) > 0 {
		w.write(" ORDER BY ")
		first := true
		for _, o := range q.Orders {
			dir := " ASC"
			if o.Sort == sqlast.Desc {
				dir = " DESC"
			}
			for _, c := range o.Columns {
				if !first {
					w.write(", ")
				}
				first = false
				w.write(w.column(c), dir)
			}
		}
	}

	w.page(q.Page)
	return nil
}

func (w *writer) form(f sqlast.Form) error {
	switch f := f.(type) {
	case *sqlast.TableForm:
		w.write(w.ident(f.Table))
		if f.Alias != "" && f.Alias != f.Table {
			w.write(" AS ", w.ident(f.Alias))
		}
		return nil
	case *sqlast.SubqueryForm:
		w.write("(")
		if err := w.query(f.Query); err != nil {
			return err
		}
		w.write(") AS ", w.ident(f.Alias))
		return nil
	}
	return fmt.Errorf("unsupported form type: %T", f)
}

func (w *writer) where(exprs []sqlast.Expr) error {
	if len(exprs) == 0 {
		return nil
	}
	w.write(" WHERE ")
	for i, e := range exprs {
		if i > 0 {
			w.write(" AND ")
		}
		if err := w.expr(e, len(exprs) > 1); err != nil {
			return err
		}
	}
	return nil
}

// expr writes e. An Or under an And is parenthesized; underAnd reports
// whether the caller is such a context.
func (w *writer) expr(e sqlast.Expr, underAnd bool) error {
	switch e := e.(type) {
	case *sqlast.And:
		if err := w.expr(e.Left, true); err != nil {
			return err
		}
		w.write(" AND ")
		return w.expr(e.Right, true)
	case *sqlast.Or:
		if underAnd {
			w.write("(")
		}
		if err := w.expr(e.Left, false); err != nil {
			return err
		}
		w.write(" OR ")
		if err := w.expr(e.Right, false); err != nil {
			return err
		}
		if underAnd {
			w.write(")")
		}
		return nil
	case *sqlast.Nest:
		w.write("(")
		if err := w.expr(e.Inner, false); err != nil {
			return err
		}
		w.write(")")
		return nil
	case *sqlast.Compare:
		return w.compare(e)
	}
	return fmt.Errorf("unsupported expression type: %T", e)
}

func (w *writer) compare(c *sqlast.Compare) error {
	left := w.column(c.Left)

	switch r := c.Right.(type) {
	case sqlast.ColumnRef:
		w.write(left, " ", sqlOp(c.Op), " ", w.column(r.Column))
	case sqlast.Param:
		w.write(left, " ", sqlOp(c.Op), " ", w.placeholder(r.Name))
	case sqlast.Literal:
		if r.Value == nil && c.Op == sqlast.Eq {
			w.write(left, " IS NULL")
			return nil
		}
		if r.Value == nil && c.Op == sqlast.Ne {
			w.write(left, " IS NOT NULL")
			return nil
		}
		lit, err := w.literal(r.Value)
		if err != nil {
			return err
		}
		w.write(left, " ", sqlOp(c.Op), " ", lit)
	default:
		return fmt.Errorf("unsupported operand type: %T", c.Right)
	}
	return nil
}

func sqlOp(op sqlast.Op) string {
	if op == sqlast.Like {
		return "LIKE"
	}
	return string(op)
}

// maxUint64 is MySQL's documented "no limit" row count.
const maxUint64 = "18446744073709551615"

func (w *writer) page(p *sqlast.Page) {
	if p == nil || (p.Limit <= 0 && p.Offset <= 0) {
		return
	}
	switch {
	case p.Limit > 0:
		w.write(" LIMIT ", strconv.Itoa(p.Limit))
	case w.dialect == SQLite:
		w.write(" LIMIT -1")
	case w.dialect == MySQL:
		w.write(" LIMIT ", maxUint64)
	}
	if p.Offset > 0 {
		w.write(" OFFSET ", strconv.Itoa(p.Offset))
	}
}

package orql

import (
	"fmt"
	"strconv"

	"github.com/roach88/orql/internal/schema"
)

// Parse parses ORQL source text into a validated AST.
//
// Every entity, column and association name is resolved against schemas while
// parsing; an unresolved name is a SyntaxError. Parse is pure and does not
// cache; memoization is owned by the compiler package.
func Parse(src string, schemas schema.Lookup) (*Query, error) {
	return ParseTokens(NewLexer(src), schemas)
}

// ParseTokens parses a query from an arbitrary token source.
func ParseTokens(ts TokenSource, schemas schema.Lookup) (q *Query, err error) {
	p := &parser{ts: ts, schemas: schemas}

	// Grammar helpers abort via panic(*SyntaxError), the same scheme as
	// text/template/parse's errorf/recover pair. Only *SyntaxError is
	// recovered and no partially built AST escapes.
	defer func() {
		if r := recover(); r != nil {
			se, ok := r.(*SyntaxError)
			if !ok {
				panic(r)
			}
			q, err = nil, se
		}
	}()

	p.walk()
	q = p.parseQuery()
	if p.tok.Kind != EOF {
		p.failf("unexpected %s after end of query", p.tok)
	}
	return q, nil
}

type parser struct {
	ts      TokenSource
	schemas schema.Lookup
	tok     Token
}

func (p *parser) walk() {
	p.tok = p.ts.Next()
	if p.tok.Kind == ILLEGAL {
		p.failf("%s", p.tok.Text)
	}
}

func (p *parser) failf(format string, args ...any) {
	p.failAt(p.tok.Offset, format, args...)
}

func (p *parser) failAt(offset int, format string, args ...any) {
	panic(&SyntaxError{Message: fmt.Sprintf(format, args...), Offset: offset})
}

func (p *parser) is(kind TokenKind) bool {
	return p.tok.Kind == kind
}

// match consumes a token of the given kind and returns its text.
func (p *parser) match(kind TokenKind) string {
	if p.tok.Kind != kind {
		p.failf("expect %s actual %s", kind, p.tok)
	}
	text := p.tok.Text
	p.walk()
	return text
}

// matchName consumes a NAME and also returns its offset for error reporting.
func (p *parser) matchName() (string, int) {
	offset := p.tok.Offset
	return p.match(NAME), offset
}

// Reql := NAME RootItem
func (p *parser) parseQuery() *Query {
	opName, offset := p.matchName()
	op, ok := LookupOperation(opName)
	if !ok {
		p.failAt(offset, "unknown operation %q", opName)
	}
	return &Query{Op: op, Root: p.parseRoot()}
}

// RootItem := NAME ( '(' Where ')' )? ( ':' ('{' Items '}' | '[' Items ']') )?
func (p *parser) parseRoot() *RefItem {
	name, offset := p.matchName()
	s, ok := p.schemas.Schema(name)
	if !ok {
		p.failAt(offset, "unknown entity %q", name)
	}

	var where *Where
	if p.is(OPEN_PAREN) {
		p.walk()
		where = p.parseWhere(s)
		p.match(CLOSE_PAREN)
	}

	root := &RefItem{Name: name, Schema: s, Kind: ObjectRef, Where: where}

	switch {
	case p.is(COLON):
		p.walk()
		kind, children, ok := p.parseShape(s)
		if !ok {
			p.failf("expect { or [ actual %s", p.tok)
		}
		root.Kind, root.Children = kind, children
	case p.is(EOF):
		// Bare root: no projected fields.
		root.Children = []Item{}
	default:
		p.failf("miss object or array: expect : actual %s", p.tok)
	}

	return root
}

// parseShape parses '{' Items '}' or '[' Items ']'. ok is false when neither
// opening token is present; nothing is consumed in that case.
func (p *parser) parseShape(s *schema.Schema) (RefKind, []Item, bool) {
	switch {
	case p.is(OPEN_CURLY):
		p.walk()
		items := p.parseItems(s)
		p.match(CLOSE_CURLY)
		return ObjectRef, items, true
	case p.is(OPEN_BRACKET):
		p.walk()
		items := p.parseItems(s)
		p.match(CLOSE_BRACKET)
		return ArrayRef, items, true
	}
	return 0, nil, false
}

// Items := Item (',' Item)*
//
// '*' records an expansion position; '!' names are excluded from the
// expansion and never selected themselves.
func (p *parser) parseItems(s *schema.Schema) []Item {
	items := []Item{}
	allPosition := -1
	ignores := map[string]bool{}

	for {
		ignore := false
		if p.is(NOT) {
			p.walk()
			ignore = true
		}

		item := p.parseItem(s)
		switch {
		case ignore:
			ignores[item.ItemName()] = true
		case isAll(item):
			allPosition = len(items)
		default:
			items = append(items, item)
		}

		if !p.is(COMMA) {
			break
		}
		p.walk()
	}

	if allPosition < 0 {
		return items
	}

	expanded := make([]Item, 0, len(items)+len(s.Columns()))
	expanded = append(expanded, items[:allPosition]...)
	for _, c := range s.Columns() {
		if ignores[c.Name] || c.RefKey {
			continue
		}
		expanded = append(expanded, &ColumnItem{Column: c})
	}
	expanded = append(expanded, items[allPosition:]...)
	return expanded
}

func isAll(item Item) bool {
	_, ok := item.(*AllItem)
	return ok
}

// Item := '*' | NAME ( Where? (':' ('{' Items '}' | '[' Items ']'))? )?
func (p *parser) parseItem(parent *schema.Schema) Item {
	if p.is(ALL) {
		p.walk()
		return &AllItem{}
	}

	name, offset := p.matchName()
	if c, ok := parent.Column(name); ok {
		return &ColumnItem{Column: c}
	}

	a, ok := parent.Association(name)
	if !ok {
		p.failAt(offset, "entity %q has no column or association %q", parent.Name, name)
	}

	ref := &RefItem{
		Name:        name,
		Schema:      a.Ref,
		Association: a,
		Kind:        ObjectRef,
		Children:    []Item{},
		Where:       p.parseWhere(a.Ref),
	}
	if a.Type.ToMany() {
		ref.Kind = ArrayRef
	}

	if p.is(COLON) {
		p.walk()
		_, children, ok := p.parseShape(a.Ref)
		if !ok {
			p.failf("expect { or [ actual %s", p.tok)
		}
		ref.Children = children
	}

	return ref
}

// Where := Expr? ( 'order' Orders )?
func (p *parser) parseWhere(s *schema.Schema) *Where {
	w := &Where{}
	if p.is(OPEN_PAREN) || p.is(NAME) {
		w.Expr = p.parseExpr(s)
	}
	if p.is(ORDER) {
		p.walk()
		w.Orders = p.parseOrders(s)
	}
	return w
}

// Orders := Order (',' Order)*
func (p *parser) parseOrders(s *schema.Schema) []Order {
	var orders []Order
	for {
		orders = append(orders, p.parseOrder(s))
		if !p.is(COMMA) {
			return orders
		}
		p.walk()
	}
}

// Order := NAME+ ('asc' | 'desc')?
func (p *parser) parseOrder(s *schema.Schema) Order {
	order := Order{Sort: Asc}
	for {
		order.Columns = append(order.Columns, p.parseColumn(s))
		if p.is(NAME) && (p.tok.Text == string(Asc) || p.tok.Text == string(Desc)) {
			order.Sort = Sort(p.tok.Text)
			p.walk()
			return order
		}
		if !p.is(NAME) {
			return order
		}
	}
}

// Expr := Term ('||' Expr)?
func (p *parser) parseExpr(s *schema.Schema) Expr {
	left := p.parseTerm(s)
	if p.is(OR) {
		p.walk()
		return &OrExpr{Left: left, Right: p.parseExpr(s)}
	}
	return left
}

// Term := Factor ('&&' Term)?
func (p *parser) parseTerm(s *schema.Schema) Expr {
	left := p.parseFactor(s)
	if p.is(AND) {
		p.walk()
		return &AndExpr{Left: left, Right: p.parseTerm(s)}
	}
	return left
}

// Factor := '(' Expr ')' | Column Op (Column | PARAM | Value)
func (p *parser) parseFactor(s *schema.Schema) Expr {
	if p.is(OPEN_PAREN) {
		p.walk()
		inner := p.parseExpr(s)
		p.match(CLOSE_PAREN)
		return &NestExpr{Inner: inner}
	}

	left := p.parseColumn(s)
	op := p.parseOp()

	switch {
	case p.is(NAME):
		return &CompareExpr{Left: left, Op: op, Right: &ColumnOperand{Column: p.parseColumn(s)}}
	case p.is(PARAM):
		return &CompareExpr{Left: left, Op: op, Right: &ParamOperand{Name: p.match(PARAM)}}
	}
	return &CompareExpr{Left: left, Op: op, Right: p.parseValue()}
}

var compareOps = map[TokenKind]Op{
	EQ:   OpEq,
	GT:   OpGt,
	GE:   OpGe,
	LT:   OpLt,
	LE:   OpLe,
	NE:   OpNe,
	LIKE: OpLike,
}

func (p *parser) parseOp() Op {
	op, ok := compareOps[p.tok.Kind]
	if !ok {
		p.failf("expect op actual %s", p.tok)
	}
	p.walk()
	return op
}

func (p *parser) parseValue() Value {
	tok := p.tok
	switch tok.Kind {
	case INT:
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			p.failf("invalid int %s", tok.Text)
		}
		p.walk()
		return IntValue(n)
	case FLOAT:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.failf("invalid float %s", tok.Text)
		}
		p.walk()
		return FloatValue(f)
	case BOOL:
		p.walk()
		return BoolValue(tok.Text == "true")
	case STRING:
		p.walk()
		return StringValue(tok.Text)
	case NULL:
		p.walk()
		return NullValue{}
	}
	p.failf("expect value actual %s", tok)
	return nil
}

func (p *parser) parseColumn(s *schema.Schema) *schema.Column {
	name, offset := p.matchName()
	c, ok := s.Column(name)
	if !ok {
		p.failAt(offset, "entity %q has no column %q", s.Name, name)
	}
	return c
}

package compiler

import (
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/schema"
	"github.com/roach88/orql/internal/sqlast"
)

// Compiler parses, lowers and renders ORQL queries against one schema set.
// It is safe for concurrent use.
type Compiler struct {
	schemas schema.Lookup
	logger  *slog.Logger

	parsed  Cache[string, *orql.Query]
	lowered Cache[lowerKey, sqlast.Statement]
	group   singleflight.Group
}

// lowerKey identifies a lowering by AST identity. Structurally equal but
// distinct ASTs do not share an entry.
type lowerKey struct {
	query *orql.Query
	page  sqlast.Page
	paged bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for cache and pipeline diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Compiler resolving names through schemas.
func New(schemas schema.Lookup, opts ...Option) *Compiler {
	c := &Compiler{
		schemas: schemas,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schemas returns the lookup the compiler resolves names against.
func (c *Compiler) Schemas() schema.Lookup {
	return c.schemas
}

// Parse returns the AST for src. Identical text always yields the same
// *orql.Query. Failed parses are not cached.
func (c *Compiler) Parse(src string) (*orql.Query, error) {
	if q, ok := c.parsed.Load(src); ok {
		c.logger.Debug("parse cache hit", "source", src)
		return q, nil
	}

	v, err, shared := c.group.Do(src, func() (any, error) {
		// Another caller may have published it since the miss above.
		if q, ok := c.parsed.peek(src); ok {
			return q, nil
		}
		q, err := orql.Parse(src, c.schemas)
		if err != nil {
			return nil, err
		}
		actual, _ := c.parsed.LoadOrStore(src, q)
		return actual, nil
	})
	if err != nil {
		c.logger.Debug("parse failed", "source", src, "error", err)
		return nil, err
	}

	c.logger.Debug("parse cache miss", "source", src, "shared", shared)
	return v.(*orql.Query), nil
}

// Lower returns the SQL AST for q. page is ignored for add, update and
// delete.
func (c *Compiler) Lower(q *orql.Query, page *sqlast.Page) (sqlast.Statement, error) {
	if q == nil {
		return nil, fmt.Errorf("lower: nil query")
	}

	key := lowerKey{query: q}
	if page != nil && (q.Op == orql.OpQuery || q.Op == orql.OpCount) {
		key.page, key.paged = *page, true
	}

	if stmt, ok := c.lowered.Load(key); ok {
		c.logger.Debug("lower cache hit", "op", q.Op.String(), "entity", q.Root.Name)
		return stmt, nil
	}

	var p *sqlast.Page
	if key.paged {
		// Lower from the key's copy so later changes to *page by the
		// caller cannot reach the cached statement.
		pg := key.page
		p = &pg
	}
	stmt, err := querysql.Lower(q, p)
	if err != nil {
		return nil, err
	}

	actual, _ := c.lowered.LoadOrStore(key, stmt)
	c.logger.Debug("lower cache miss", "op", q.Op.String(), "entity", q.Root.Name, "statement", fmt.Sprintf("%T", stmt))
	return actual, nil
}

// Compiled is the result of compiling one query.
type Compiled struct {
	Source    string
	Query     *orql.Query
	Statement sqlast.Statement
}

// Compile parses and lowers src.
func (c *Compiler) Compile(src string, page *sqlast.Page) (*Compiled, error) {
	q, err := c.Parse(src)
	if err != nil {
		return nil, err
	}
	stmt, err := c.Lower(q, page)
	if err != nil {
		return nil, fmt.Errorf("lower %q: %w", src, err)
	}
	return &Compiled{Source: src, Query: q, Statement: stmt}, nil
}

// Render renders a compiled statement for dialect.
func (c *Compiler) Render(out *Compiled, dialect querysql.Dialect) (querysql.Rendered, error) {
	if out == nil {
		return querysql.Rendered{}, fmt.Errorf("render: nil compiled query")
	}
	r, err := querysql.NewRenderer(dialect).Render(out.Statement)
	if err != nil {
		return querysql.Rendered{}, fmt.Errorf("render %q: %w", out.Source, err)
	}
	return r, nil
}

// Stats reports the parse and lowering cache counters.
func (c *Compiler) Stats() (parsed, lowered CacheStats) {
	return c.parsed.Stats(), c.lowered.Stats()
}

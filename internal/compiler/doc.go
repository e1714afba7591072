// Package compiler is the entry point that turns ORQL text into SQL.
//
// A Compiler binds a schema lookup to two memo caches: parsed queries keyed
// by exact source text, and lowered statements keyed by the identity of the
// parsed query plus the requested page. Both caches are unbounded and never
// invalidated; build a new Compiler when the schemas change.
//
//	c := compiler.New(registry, compiler.WithLogger(logger))
//	out, err := c.Compile("get user(id = $id): {name}", nil)
//	sql, err := c.Render(out, querysql.SQLite)
package compiler

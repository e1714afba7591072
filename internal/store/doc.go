// Package store executes compiled ORQL statements through database/sql and
// shapes joined result rows back into nested objects.
//
// # Drivers
//
// Open registers and selects the driver for a renderer dialect:
//
//   - sqlite:   github.com/mattn/go-sqlite3 (driver "sqlite3")
//   - postgres: github.com/lib/pq           (driver "postgres")
//   - mysql:    github.com/go-sql-driver/mysql (driver "mysql")
//
// SQLite connections get the same pragmas on every open: WAL journal,
// NORMAL synchronous, a 5 second busy timeout and foreign keys on. The pool
// is limited to one connection so in-memory databases survive between
// statements.
//
// # Shaping
//
// Select columns are aliased "<path>.<field>". Shape groups rows per entity
// level by the level's id column (present whenever the level selects data),
// turns object-shaped levels into a map or nil and array-shaped levels into
// a slice. Rows where every column of a joined level is NULL are the
// unmatched side of a left join and produce no object.
package store

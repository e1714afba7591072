package store

import (
	"context"
	"fmt"

	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/sqlast"
)

// Result is the outcome of running one statement.
//
// Data is set for queries: a map[string]any (or nil) for an object-shaped
// root, a []map[string]any for an array-shaped root. Count is set for
// counts. RowsAffected and LastInsertID are set for writes; LastInsertID is
// zero when the driver does not report one.
type Result struct {
	SQL          string `json:"sql"`
	Data         any    `json:"data,omitempty"`
	Count        *int64 `json:"count,omitempty"`
	RowsAffected int64  `json:"rows_affected,omitempty"`
	LastInsertID int64  `json:"last_insert_id,omitempty"`
}

// MissingParamError reports a placeholder with no bound value.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing value for parameter %q", e.Name)
}

// Bind orders params by the placeholders of r.
func Bind(r querysql.Rendered, params map[string]any) ([]any, error) {
	args := make([]any, len(r.Params))
	for i, name := range r.Params {
		v, ok := params[name]
		if !ok {
			return nil, &MissingParamError{Name: name}
		}
		args[i] = v
	}
	return args, nil
}

// Run renders stmt, binds params and executes it. q must be the query stmt
// was lowered from; it drives result shaping.
func (s *Store) Run(ctx context.Context, q *orql.Query, stmt sqlast.Statement, params map[string]any) (*Result, error) {
	if q == nil || q.Root == nil {
		return nil, fmt.Errorf("run: nil query")
	}
	r, err := s.renderer.Render(stmt)
	if err != nil {
		return nil, err
	}
	args, err := Bind(r, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("executing statement", "op", q.Op.String(), "entity", q.Root.Name, "sql", r.SQL, "args", len(args))

	res := &Result{SQL: r.SQL}
	if _, ok := stmt.(*sqlast.Query); !ok {
		if err := s.exec(ctx, res, r.SQL, args); err != nil {
			return nil, err
		}
		return res, nil
	}
	if q.Op == orql.OpCount {
		if err := s.count(ctx, res, r.SQL, args); err != nil {
			return nil, err
		}
		return res, nil
	}

	columns, rows, err := s.query(ctx, r.SQL, args)
	if err != nil {
		return nil, err
	}
	res.Data, err = Shape(q.Root, columns, rows)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("statement returned rows", "rows", len(rows))
	return res, nil
}

func (s *Store) exec(ctx context.Context, res *Result, query string, args []any) error {
	out, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	if n, err := out.RowsAffected(); err == nil {
		res.RowsAffected = n
	}
	// lib/pq does not implement LastInsertId.
	if id, err := out.LastInsertId(); err == nil {
		res.LastInsertID = id
	}
	return nil
}

func (s *Store) count(ctx context.Context, res *Result, query string, args []any) error {
	var v any
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return fmt.Errorf("count: %w", err)
	}
	n, err := toInt64(v)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	res.Count = &n
	return nil
}

func (s *Store) query(ctx context.Context, query string, args []any) ([]string, [][]any, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			vals[i] = normalize(v)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows: %w", err)
	}
	return columns, out, nil
}

// normalize converts driver byte slices to strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case []byte:
		var out int64
		_, err := fmt.Sscan(string(n), &out)
		return out, err
	case string:
		var out int64
		_, err := fmt.Sscan(n, &out)
		return out, err
	}
	return 0, fmt.Errorf("unexpected count type %T", v)
}

package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/store"
)

func sampleTrace() []TraceEvent {
	count := int64(2)
	return []TraceEvent{
		{
			Step:  1,
			Op:    "query",
			Query: "get tag(id = $id): {name}",
			SQL: map[string]string{
				"sqlite":   `SELECT "tag"."name" AS "tag.name" FROM "tag" WHERE "tag"."id" = ? LIMIT 1`,
				"postgres": `SELECT "tag"."name" AS "tag.name" FROM "tag" WHERE "tag"."id" = $1 LIMIT 1`,
			},
		},
		{Step: 2, Op: "count", Query: "count tag", Count: &count},
		{Step: 3, Op: "query", Query: "get tag: {nope}", Error: "syntax error"},
		{Step: 4, Op: "query", Query: "get tag: [name]"},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, SQL: `"tag"."id" = ?`})
	assert.NoError(t, err)
}

func TestAssertTraceContains_Dialect(t *testing.T) {
	trace := sampleTrace()
	assert.NoError(t, assertTraceContains(trace, Assertion{Type: AssertTraceContains, Dialect: "postgres", SQL: "= $1"}))
	assert.Error(t, assertTraceContains(trace, Assertion{Type: AssertTraceContains, Dialect: "mysql", SQL: "SELECT"}))
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{Type: AssertTraceContains, SQL: "DELETE"})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, AssertTraceContains, assertErr.Type)
	assert.Contains(t, assertErr.Expected, `sqlite SQL containing "DELETE"`)
	assert.Equal(t, "not found in trace", assertErr.Actual)
	assert.Len(t, assertErr.Trace, 4)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	// Failed steps are not counted.
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: "query", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: "delete", Count: 0}))

	err := assertTraceCount(trace, Assertion{Type: AssertTraceCount, Op: "count", Count: 3})
	require.Error(t, err)
	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "3 successful count steps", assertErr.Expected)
	assert.Equal(t, "1 steps", assertErr.Actual)
}

func TestMatchData(t *testing.T) {
	actual := []map[string]any{
		{"id": int64(1), "name": "admin", "users": []map[string]any{
			{"id": int64(1), "name": "alice"},
		}},
		{"id": int64(2), "name": "guest", "users": []map[string]any{}},
	}

	tests := []struct {
		name     string
		expected any
		want     bool
	}{
		{"subset of objects", []any{map[string]any{"name": "admin"}, map[string]any{"id": 2}}, true},
		{"nested arrays", []any{
			map[string]any{"users": []any{map[string]any{"name": "alice"}}},
			map[string]any{"users": []any{}},
		}, true},
		{"length mismatch", []any{map[string]any{"name": "admin"}}, false},
		{"value mismatch", []any{map[string]any{"name": "root"}, map[string]any{}}, false},
		{"missing key", []any{map[string]any{"email": "x"}, map[string]any{}}, false},
		{"object expected", map[string]any{"name": "admin"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchData(actual, tt.expected))
		})
	}

	assert.True(t, matchData(nil, nil))
	assert.False(t, matchData(map[string]any{}, nil))
	assert.True(t, matchData(map[string]any{"role": nil}, map[string]any{"role": nil}))
}

func TestScalarEqual(t *testing.T) {
	assert.True(t, scalarEqual("a", "a"))
	assert.True(t, scalarEqual("a", []byte("a")))
	assert.False(t, scalarEqual("a", "b"))

	assert.True(t, scalarEqual(1, int64(1)))
	assert.True(t, scalarEqual(int64(1), int64(1)))
	assert.True(t, scalarEqual(2, float64(2)))
	assert.False(t, scalarEqual(1, "1"))

	assert.True(t, scalarEqual(2.5, float64(2.5)))
	assert.True(t, scalarEqual(3.0, int64(3)))

	assert.True(t, scalarEqual(true, true))
	assert.True(t, scalarEqual(true, int64(1)))
	assert.True(t, scalarEqual(false, int64(0)))
	assert.False(t, scalarEqual(true, "true"))

	assert.True(t, scalarEqual(nil, nil))
	assert.False(t, scalarEqual(nil, "value"))
	assert.False(t, scalarEqual("value", nil))
}

func TestBuildWhereClause(t *testing.T) {
	sql, args, err := buildWhereClause(nil)
	require.NoError(t, err)
	assert.Empty(t, sql)
	assert.Nil(t, args)

	sql, args, err = buildWhereClause(map[string]any{"name": "go", "id": 1, "bio": nil})
	require.NoError(t, err)
	assert.Equal(t, "bio IS NULL AND id = ? AND name = ?", sql)
	assert.Equal(t, []any{1, "go"}, args)
}

func TestBuildWhereClause_InvalidColumnName(t *testing.T) {
	for _, col := range []string{"id; DROP TABLE tag", "1id", "na-me", ""} {
		_, _, err := buildWhereClause(map[string]any{col: 1})
		assert.Error(t, err, col)
	}
}

func TestFormatWhereClause(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhereClause(nil))
	assert.Equal(t, "id=1 AND name=go", formatWhereClause(map[string]any{"name": "go", "id": 1}))
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 successful add steps",
		Actual:   "0 steps",
		Trace:    []TraceEvent{{Step: 1, Query: "count tag"}},
	}
	assert.Equal(t, "Assertion failed: trace_count\n"+
		"  Expected: 1 successful add steps\n"+
		"  Actual: 0 steps\n"+
		"\nFull trace:\n"+
		"  [1] count tag\n", err.Error())
}

// Integration tests for assertFinalState with a real database

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(querysql.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.ExecScript(context.Background(), `
		CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, qty INTEGER, active INTEGER);
		INSERT INTO items (id, name, qty, active) VALUES (1, 'widget', 10, 1), (2, 'gadget', 0, 0), (3, 'gadget', 5, 1);
	`))
	return st
}

func TestAssertFinalState(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		assertion Assertion
		actual    string // empty means pass
	}{
		{
			name:      "row found",
			assertion: Assertion{Table: "items", Where: map[string]any{"id": 1}, Expect: map[string]any{"name": "widget", "qty": 10, "active": true}},
		},
		{
			name:      "multiple where conditions",
			assertion: Assertion{Table: "items", Where: map[string]any{"name": "gadget", "active": 1}, Expect: map[string]any{"qty": 5}},
		},
		{
			name:      "row not found",
			assertion: Assertion{Table: "items", Where: map[string]any{"id": 9}, Expect: map[string]any{"qty": 1}},
			actual:    "row not found",
		},
		{
			name:      "ambiguous",
			assertion: Assertion{Table: "items", Where: map[string]any{"name": "gadget"}, Expect: map[string]any{"qty": 1}},
			actual:    "multiple rows matched (assertion is ambiguous)",
		},
		{
			name:      "value mismatch",
			assertion: Assertion{Table: "items", Where: map[string]any{"id": 1}, Expect: map[string]any{"qty": 11}},
			actual:    `field "qty" = 10 (type int64)`,
		},
		{
			name:      "missing column",
			assertion: Assertion{Table: "items", Where: map[string]any{"id": 1}, Expect: map[string]any{"color": "red"}},
			actual:    `field "color" not present in result columns: [id name qty active]`,
		},
		{
			name:      "table not found",
			assertion: Assertion{Table: "ghosts", Expect: map[string]any{"x": 1}},
			actual:    "query error: no such table: ghosts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertFinalState
			err := assertFinalState(ctx, st, tt.assertion)
			if tt.actual == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assertErr, ok := err.(*AssertionError)
			require.True(t, ok, "expected *AssertionError, got %T", err)
			assert.Equal(t, tt.actual, assertErr.Actual)
		})
	}
}

func TestAssertFinalState_InvalidTableName(t *testing.T) {
	st := setupTestStore(t)
	err := assertFinalState(context.Background(), st, Assertion{Table: "items; DROP TABLE items", Expect: map[string]any{"x": 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestEvaluateAssertions(t *testing.T) {
	st := setupTestStore(t)
	result := &Result{Trace: sampleTrace()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, SQL: "LIMIT 1"},
		{Type: AssertTraceCount, Op: "add", Count: 1},
		{Type: AssertFinalState, Table: "items", Where: map[string]any{"id": 2}, Expect: map[string]any{"active": false}},
		{Type: "trace_order"},
	}, &AssertionContext{Store: st, Ctx: context.Background()})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertion[1] (trace_count)")
	assert.Contains(t, errs[1], "assertion[3] (trace_order): unknown assertion type: trace_order")
}

func TestEvaluateAssertions_FinalStateWithoutContext_Fail(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Table: "items", Expect: map[string]any{"x": 1}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "final_state assertion requires a store")
}

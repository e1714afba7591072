package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/orql/internal/querysql"
	"github.com/roach88/orql/internal/store"
	"github.com/roach88/orql/internal/testutil"
)

// seededDB creates a SQLite database file holding the blog fixture.
func seededDB(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "blog.db")
	st, err := store.Open(querysql.SQLite, dbPath)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.ExecScript(context.Background(), testutil.DDL+testutil.Seed))
	return dbPath
}

func executeRun(t *testing.T, rootOpts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	_, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas}, "count user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "db")
}

func TestRunQueryObject(t *testing.T) {
	db := seededDB(t)

	out, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"get user(id = $id): {name, role: {name}}", "--db", db, "--param", "id=1")
	require.NoError(t, err)

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, map[string]any{
		"id":   float64(1),
		"name": "alice",
		"role": map[string]any{"id": float64(1), "name": "admin"},
	}, data)
}

func TestRunQueryArrayJSON(t *testing.T) {
	db := seededDB(t)

	rootOpts := &RootOptions{Format: "json", Schemas: testSchemas, TraceIDs: NewFixedGenerator("run-1")}
	out, _, err := executeRun(t, rootOpts, "get role(order id): [name, users order id: [name]]", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status  string    `json:"status"`
		Data    RunResult `json:"data"`
		TraceID string    `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.TraceID)
	assert.Equal(t, "query", resp.Data.Op)
	assert.Contains(t, resp.Data.SQL, `LEFT JOIN "user" AS "role.users"`)

	roles, ok := resp.Data.Data.([]any)
	require.True(t, ok, "expected array, got %T", resp.Data.Data)
	require.Len(t, roles, 2)
	admin := roles[0].(map[string]any)
	assert.Equal(t, "admin", admin["name"])
	assert.Len(t, admin["users"], 2)
	guest := roles[1].(map[string]any)
	assert.Equal(t, []any{map[string]any{"id": float64(3), "name": "carol"}}, guest["users"])
}

func TestRunQueryNoMatch(t *testing.T) {
	db := seededDB(t)

	out, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"get user(id = 99): {name}", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "null\n", out)
}

func TestRunCount(t *testing.T) {
	db := seededDB(t)

	out, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"count user(name like $q)", "--db", db, "--param", "q=%a%")
	require.NoError(t, err)
	assert.Equal(t, "count: 2\n", out)
}

func TestRunWrites(t *testing.T) {
	db := seededDB(t)
	rootOpts := &RootOptions{Format: "text", Schemas: testSchemas}

	out, _, err := executeRun(t, rootOpts, "add tag: {name}", "--db", db, "--param", "name=rust")
	require.NoError(t, err)
	assert.Equal(t, "rows affected: 1\nlast insert id: 3\n", out)

	out, _, err = executeRun(t, rootOpts, "update tag(id = $id): {name}", "--db", db, "--param", "id=3", "--param", "name=zig")
	require.NoError(t, err)
	assert.Equal(t, "rows affected: 1\n", out[:len("rows affected: 1\n")])

	out, _, err = executeRun(t, rootOpts, "get tag(id = 3): {name}", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "zig"`)

	out, _, err = executeRun(t, rootOpts, "delete tag(id = $id)", "--db", db, "--param", "$id=3")
	require.NoError(t, err)
	assert.Contains(t, out, "rows affected: 1\n")
}

func TestRunWithPage(t *testing.T) {
	db := seededDB(t)

	out, _, err := executeRun(t, &RootOptions{Format: "json", Schemas: testSchemas},
		"get post(order id): [title]", "--db", db, "--limit", "2", "--offset", "1")
	require.NoError(t, err)

	var resp struct {
		Data RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []any{
		map[string]any{"id": float64(2), "title": "again"},
		map[string]any{"id": float64(3), "title": "hi"},
	}, resp.Data.Data)
}

func TestRunMissingParam(t *testing.T) {
	db := seededDB(t)

	out, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"get tag(id = $id): {name}", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E203]")
	assert.Contains(t, out, `missing value for parameter "id"`)
}

func TestRunInvalidParam(t *testing.T) {
	_, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"count tag", "--db", "unused.db", "--param", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidParam)
}

func TestRunSyntaxError(t *testing.T) {
	db := seededDB(t)

	_, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas}, "get tag: {", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeSyntax)
}

func TestRunDatabaseError(t *testing.T) {
	// A fresh database has none of the fixture tables.
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	out, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas}, "count tag", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E301]")
	assert.Contains(t, out, "no such table")
}

func TestRunUnreachableDatabase(t *testing.T) {
	_, _, err := executeRun(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"count tag", "--db", filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeDatabase)
}

func TestRunLogsToStderr(t *testing.T) {
	db := seededDB(t)

	_, errOut, err := executeRun(t, &RootOptions{Format: "json", Schemas: testSchemas, Verbose: true}, "count tag", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, errOut, "executing statement")
	assert.Contains(t, errOut, "level=DEBUG")
}

func TestParseParams(t *testing.T) {
	params, err := ParseParams([]string{"id=1", "name=alice", "active=true", "score=2.5", "bio=null", "$q=%a%", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":     1,
		"name":   "alice",
		"active": true,
		"score":  2.5,
		"bio":    nil,
		"q":      "%a%",
		"empty":  nil,
	}, params)

	params, err = ParseParams([]string{`title="a=b"`})
	require.NoError(t, err)
	assert.Equal(t, "a=b", params["title"])

	params, err = ParseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)
}

func TestParseParams_Invalid(t *testing.T) {
	for _, pair := range []string{"noequals", "=1", "list=[1, 2]", "obj={a: 1}"} {
		_, err := ParseParams([]string{pair})
		assert.Error(t, err, pair)
	}
}

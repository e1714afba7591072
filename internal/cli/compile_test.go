package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchemas = "testdata/schemas"

func executeCompile(t *testing.T, rootOpts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func TestCompileQuery(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"get user(id = $id): {name, role: {name}}")
	require.NoError(t, err)

	assert.Equal(t, "-- query (sqlite)\n"+
		`SELECT "user"."name" AS "user.name", "user"."id" AS "user.id", "user.role"."name" AS "user.role.name", "user.role"."id" AS "user.role.id" `+
		`FROM "user" INNER JOIN "role" AS "user.role" ON "user.role"."id" = "user"."role_id" WHERE "user"."id" = ? LIMIT 1`+"\n"+
		"-- params: id\n", out)
}

func TestCompileQueryJSON(t *testing.T) {
	rootOpts := &RootOptions{Format: "json", Schemas: testSchemas, Dialect: "mysql", TraceIDs: NewFixedGenerator("t-1")}
	out, _, err := executeCompile(t, rootOpts, "update tag(id = $id): {name}")
	require.NoError(t, err)

	var resp struct {
		Status  string            `json:"status"`
		Data    CompilationResult `json:"data"`
		TraceID string            `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "t-1", resp.TraceID)
	assert.Equal(t, CompilationResult{
		Query:   "update tag(id = $id): {name}",
		Op:      "update",
		Dialect: "mysql",
		SQL:     "UPDATE `tag` SET `name` = ? WHERE `tag`.`id` = ?",
		Params:  []string{"name", "id"},
	}, resp.Data)
}

func TestCompileCount(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas}, "count user")
	require.NoError(t, err)
	assert.Equal(t, "-- count (sqlite)\n"+`SELECT COUNT(DISTINCT "user"."id") AS "count" FROM "user"`+"\n", out)
}

func TestCompileWithPage(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas, Dialect: "postgres"},
		"get tag(order id): [name]", "--limit", "5", "--offset", "10")
	require.NoError(t, err)
	assert.Contains(t, out, `ORDER BY "tag"."id" ASC LIMIT 5 OFFSET 10`)
}

func TestCompileNegativePage(t *testing.T) {
	_, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"get tag: [name]", "--limit", "-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "must be non-negative")
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"add tag: {name}", "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote compiled query to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "add", result.Op)
	assert.Equal(t, `INSERT INTO "tag" ("name") VALUES (?)`, result.SQL)
	assert.Equal(t, []string{"name"}, result.Params)
}

func TestCompileOutputWriteFailure(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "missing", "compiled.json")

	_, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas},
		"count tag", "--output", outputFile)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeWriteFailed)
}

func TestCompileSyntaxError(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas}, "get user: {nope}")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E201]")
	assert.Contains(t, out, `entity "user" has no column or association "nope"`)
}

func TestCompileSyntaxErrorJSON(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "json", Schemas: testSchemas}, "get ghost: {id}")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSyntax, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, `unknown entity "ghost"`)
	assert.NotEmpty(t, resp.TraceID)
}

func TestCompileNonExistentSchemas(t *testing.T) {
	out, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: "/nonexistent/schemas"}, "count user")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
	assert.Contains(t, out, "schema directory not found")
}

func TestCompileEmptySchemas(t *testing.T) {
	_, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: t.TempDir()}, "count user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
}

func TestCompileInvalidDialect(t *testing.T) {
	_, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas, Dialect: "oracle"}, "count user")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeInvalidDialect)
}

func TestCompileVerboseOutput(t *testing.T) {
	out, errOut, err := executeCompile(t, &RootOptions{Format: "json", Schemas: testSchemas, Verbose: true}, "count tag")
	require.NoError(t, err)

	// Verbose logs go to stderr so stdout stays valid JSON.
	assert.Contains(t, errOut, "Loaded 5 entities from 1 CUE file(s)")
	assert.Contains(t, errOut, "Compiled count on tag")
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
}

func TestCompileMissingArg(t *testing.T) {
	_, _, err := executeCompile(t, &RootOptions{Format: "text", Schemas: testSchemas})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestPageFlags(t *testing.T) {
	assert.Nil(t, pageFlags(0, 0))

	p := pageFlags(10, 0)
	require.NotNil(t, p)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = pageFlags(0, 3)
	require.NotNil(t, p)
	assert.Equal(t, 3, p.Offset)
	assert.False(t, p.HasLimit())
}

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/orql/internal/orql"
	"github.com/roach88/orql/internal/testutil"
)

func parse(t *testing.T, src string) *orql.Query {
	t.Helper()
	q, err := orql.Parse(src, testutil.Schemas())
	require.NoError(t, err)
	return q
}

func TestShape_NestedArraysAndObjects(t *testing.T) {
	q := parse(t, "get user: [name, role: {name}, posts: [title]]")
	columns := []string{"user.name", "user.id", "user.role.name", "user.role.id", "user.posts.title", "user.posts.id"}
	rows := [][]any{
		{"alice", int64(1), "admin", int64(1), "hello", int64(1)},
		{"alice", int64(1), "admin", int64(1), "again", int64(2)},
		{"bob", int64(2), "admin", int64(1), nil, nil},
	}

	got, err := Shape(q.Root, columns, rows)
	require.NoError(t, err)

	assert.Equal(t, []map[string]any{
		{
			"name": "alice", "id": int64(1),
			"role": map[string]any{"name": "admin", "id": int64(1)},
			"posts": []map[string]any{
				{"title": "hello", "id": int64(1)},
				{"title": "again", "id": int64(2)},
			},
		},
		{
			"name": "bob", "id": int64(2),
			"role":  map[string]any{"name": "admin", "id": int64(1)},
			"posts": []map[string]any{},
		},
	}, got)
}

func TestShape_ObjectRoot(t *testing.T) {
	q := parse(t, "get user(id = $id): {name, info: {bio}}")
	columns := []string{"user.name", "user.id", "user.info.bio", "user.info.id"}

	got, err := Shape(q.Root, columns, [][]any{{"bob", int64(2), nil, nil}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "bob", "id": int64(2), "info": nil}, got)

	got, err = Shape(q.Root, columns, nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShape_EmptyArrayRoot(t *testing.T) {
	q := parse(t, "get user: [name]")
	got, err := Shape(q.Root, []string{"user.name", "user.id"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{}, got)
}

func TestShape_GroupsAssociationOnlyLevelByID(t *testing.T) {
	// posts selects only an association; its id still separates the posts.
	q := parse(t, "get user: [name, posts: [tags: [name]]]")
	columns := []string{"user.name", "user.id", "user.posts.id", "user.posts.tags.name", "user.posts.tags.id"}
	rows := [][]any{
		{"alice", int64(1), int64(1), "go", int64(1)},
		{"alice", int64(1), int64(1), "sql", int64(2)},
		{"alice", int64(1), int64(2), "go", int64(1)},
	}

	got, err := Shape(q.Root, columns, rows)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{
		"name": "alice", "id": int64(1),
		"posts": []map[string]any{
			{"id": int64(1), "tags": []map[string]any{
				{"name": "go", "id": int64(1)},
				{"name": "sql", "id": int64(2)},
			}},
			{"id": int64(2), "tags": []map[string]any{
				{"name": "go", "id": int64(1)},
			}},
		},
	}}, got)
}

func TestShape_KeyedByValuesWithoutID(t *testing.T) {
	q := parse(t, "get user: [name]")
	rows := [][]any{{"alice"}, {"alice"}, {"bob"}}

	got, err := Shape(q.Root, []string{"user.name"}, rows)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"name": "alice"}, {"name": "bob"}}, got)
}

func TestShape_Errors(t *testing.T) {
	q := parse(t, "get user: [name]")

	_, err := Shape(q.Root, []string{"name"}, nil)
	assert.ErrorContains(t, err, "not path qualified")

	_, err = Shape(q.Root, []string{"ghost.name"}, nil)
	assert.ErrorContains(t, err, `unknown path "ghost"`)

	_, err = Shape(q.Root, []string{"user.nope"}, nil)
	assert.ErrorContains(t, err, `no field "nope"`)

	_, err = Shape(nil, nil, nil)
	assert.Error(t, err)
}

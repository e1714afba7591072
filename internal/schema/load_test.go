package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCUE(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

func loadErrCode(t *testing.T, err error) string {
	t.Helper()
	if loadErr, ok := err.(*LoadError); ok {
		return loadErr.Code
	}
	if verr, ok := err.(ValidationError); ok {
		return verr.Code
	}
	t.Fatalf("unexpected error type %T: %v", err, err)
	return ""
}

func TestLoadDir_Blog(t *testing.T) {
	result, errs := LoadDir("testdata/blog", LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result.Registry)

	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, []string{"info", "post", "role", "tag", "user"}, result.Registry.Names())

	user, ok := result.Registry.Schema("user")
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name", "roleId"}, user.ColumnNames())
	roleID, _ := user.Column("roleId")
	assert.Equal(t, "role_id", roleID.Field)

	posts, _ := user.Association("posts")
	require.NotNil(t, posts)
	assert.Equal(t, HasMany, posts.Type)
	assert.Equal(t, "author_id", posts.RefKey)

	post, _ := result.Registry.Schema("post")
	tags, _ := post.Association("tags")
	require.NotNil(t, tags)
	assert.Equal(t, "post_tag", tags.Middle)
	assert.Equal(t, "tag", tags.Ref.Name)
}

func TestLoadDir_NotFound(t *testing.T) {
	_, errs := LoadDir(filepath.Join(t.TempDir(), "missing"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, loadErrCode(t, errs[0]))
}

func TestLoadDir_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "file.cue", "package test\n")

	_, errs := LoadDir(filepath.Join(dir, "file.cue"), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, loadErrCode(t, errs[0]))
}

func TestLoadDir_NoFiles(t *testing.T) {
	_, errs := LoadDir(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoFiles, loadErrCode(t, errs[0]))
}

func TestLoadDir_NoEntities(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "empty.cue", "package test\n\nother: 1\n")

	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoEntities, loadErrCode(t, errs[0]))
}

func TestLoadDir_CompileErrors(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "bad.cue", `package test

entity: a: {table: "a"}
entity: b: {
	columns: {id: {}}
	associations: {x: {ref: "a"}}
}
`)

	t.Run("fail fast", func(t *testing.T) {
		result, errs := LoadDir(dir, LoadModeFailFast)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeColumns, loadErrCode(t, errs[0]))
		assert.Nil(t, result.Registry)
	})

	t.Run("collect all", func(t *testing.T) {
		result, errs := LoadDir(dir, LoadModeCollectAll)
		require.Len(t, errs, 2)
		assert.Equal(t, ErrCodeColumns, loadErrCode(t, errs[0]))
		assert.Equal(t, ErrCodeAssociation, loadErrCode(t, errs[1]))
		assert.Contains(t, errs[1].Error(), "entity.b")
		assert.Nil(t, result.Registry)
	})
}

func TestLoadDir_ValidationErrors(t *testing.T) {
	dir := t.TempDir()
	writeCUE(t, dir, "refs.cue", `package test

entity: a: {
	columns: {id: {}}
	associations: {
		b: {type: "belongsTo", ref: "b"}
		c: {type: "hasMany", ref: "c"}
	}
}
`)

	_, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownRef, loadErrCode(t, errs[0]))

	_, errs = LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.Equal(t, ErrUnknownRef, loadErrCode(t, err))
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	writeCUE(t, dir, "b.cue", "package test\n")
	writeCUE(t, dir, "a.cue", "package test\n")
	writeCUE(t, dir, "notes.txt", "skip")
	writeCUE(t, filepath.Join(dir, "nested"), "c.cue", "package test\n")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "b.cue"),
		filepath.Join(dir, "nested", "c.cue"),
	}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeColumns, MapFieldToErrorCode("columns"))
	assert.Equal(t, ErrCodeColumns, MapFieldToErrorCode("columns.id"))
	assert.Equal(t, ErrCodeAssociation, MapFieldToErrorCode("associations.role.type"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("cue"))
}

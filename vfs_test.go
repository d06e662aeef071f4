package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCreateFileVersions(t *testing.T) {
	fs := NewVFS(zaptest.NewLogger(t))

	f, err := fs.CreateFile("/Scripts/a.ts", "one")
	require.NoError(t, err)
	assert.Equal(t, 0, f.Version)
	assert.Equal(t, "/Scripts/a.ts", f.Path)

	f, err = fs.CreateFile("/Scripts/a.ts", "one")
	require.NoError(t, err)
	assert.Equal(t, 0, f.Version, "identical content is not a new version")

	f, err = fs.CreateFile("/Scripts/a.ts", "two")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Version)
	assert.Equal(t, "two", f.Raw)
	assert.False(t, f.HasCompiled)
}

func TestDirectoryLinks(t *testing.T) {
	fs := NewVFS(nil)
	f, err := fs.CreateFile("/Scripts/lib/deep/x.ts", "")
	require.NoError(t, err)

	dir := f.Dir()
	assert.Equal(t, "deep", dir.Name())
	assert.Equal(t, "lib", dir.Parent().Name())
	assert.Equal(t, "Scripts", dir.Parent().Parent().Name())
	assert.Same(t, fs.Root(), dir.Parent().Parent().Parent())
	assert.Nil(t, fs.Root().Parent())

	names, err := fs.ReadDir("/Scripts")
	require.NoError(t, err)
	assert.Equal(t, []string{"lib"}, names)
}

func TestGetFileByPath(t *testing.T) {
	fs := NewVFS(nil)
	_, err := fs.CreateFile("/Scripts/a.ts", "a")
	require.NoError(t, err)

	node, err := fs.GetFileByPath([]string{"Scripts", "a.ts"})
	require.NoError(t, err)
	assert.False(t, node.IsDir())

	node, err = fs.GetFileByPath([]string{"Scripts"})
	require.NoError(t, err)
	assert.True(t, node.IsDir())

	_, err = fs.GetFileByPath([]string{"Missing", "a.ts"})
	assert.True(t, IsKind(err, KindNotFound))
	assert.Contains(t, err.Error(), "directory")

	_, err = fs.GetFileByPath([]string{"Scripts", "a.ts", "b.ts"})
	assert.True(t, IsKind(err, KindNotFound))

	_, err = fs.GetFileByPath([]string{"Scripts", "b.ts"})
	assert.True(t, IsKind(err, KindNotFound))

	assert.Panics(t, func() { _, _ = fs.GetFileByPath(nil) })
}

func TestExists(t *testing.T) {
	fs := NewVFS(nil)
	_, err := fs.CreateFile("/Scripts/a.ts", "a")
	require.NoError(t, err)

	assert.True(t, fs.Exists([]string{"Scripts", "a.ts"}))
	assert.True(t, fs.Exists([]string{"Scripts"}))
	assert.False(t, fs.Exists([]string{"Scripts", "b.ts"}))
	assert.False(t, fs.Exists([]string{"Scripts", "a.ts", "c"}))
	assert.Panics(t, func() { fs.Exists([]string{}) })

	assert.True(t, fs.FileExists("/Scripts/a.ts"))
	assert.False(t, fs.FileExists("/Scripts"))
	assert.False(t, fs.FileExists(""))
}

func TestCreateFileConflicts(t *testing.T) {
	fs := NewVFS(nil)
	_, err := fs.CreateFile("/Scripts/a.ts", "a")
	require.NoError(t, err)

	_, err = fs.CreateFile("/Scripts/a.ts/b.ts", "b")
	assert.True(t, IsKind(err, KindNotFound))

	_, err = fs.CreateFile("/Scripts", "dir")
	assert.True(t, IsKind(err, KindNotFound))

	assert.Panics(t, func() { _, _ = fs.CreateFile("/", "x") })
}

func TestSetCompiledAndFiles(t *testing.T) {
	fs := NewVFS(nil)
	_, err := fs.CreateFile("/Scripts/b.ts", "b")
	require.NoError(t, err)
	_, err = fs.SetCompiled("/Scripts/b.js", "compiled")
	require.NoError(t, err)

	src, err := fs.File("/Scripts/b.ts")
	require.NoError(t, err)
	assert.False(t, src.HasCompiled)

	out, err := fs.File("/Scripts/b.js")
	require.NoError(t, err)
	assert.True(t, out.HasCompiled)
	assert.Equal(t, "compiled", out.Compiled)
	assert.Equal(t, "", out.Raw)

	assert.Equal(t, []string{"/Scripts/b.js", "/Scripts/b.ts"}, fs.Files())
}

package fspath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNormalizes(t *testing.T) {
	base := Begin(t.TempDir())

	assert.True(t, base.To("a").To("b").To("..").Equal(base.To("a")))
	assert.Equal(t, filepath.Join(base.String(), "a", "c"), base.To("a", ".", "b", "..", "c").String())
}

func TestPinDoesNotPropagate(t *testing.T) {
	base := Begin(t.TempDir())
	pinned := base.To("file.txt").ForceDir(true)

	assert.True(t, pinned.IsDir())
	assert.False(t, pinned.To("x.bin").IsDir())
	assert.False(t, base.To("file.txt").IsDir())
}

func TestIsDirInference(t *testing.T) {
	base := Begin(t.TempDir())

	assert.True(t, base.To("missing").IsDir())
	assert.False(t, base.To("missing.zip").IsDir())
	assert.True(t, base.To("missing.zip").ForceDir(true).IsDir())

	require.NoError(t, os.WriteFile(base.To("noext").String(), []byte("x"), 0644))
	assert.False(t, base.To("noext").IsDir())

	require.NoError(t, os.Mkdir(base.To("dir.d").String(), 0755))
	assert.True(t, base.To("dir.d").IsDir())
	assert.Equal(t, "", base.To("dir.d").Extension())
}

func TestNames(t *testing.T) {
	base := Begin(t.TempDir())

	f := base.To("release.tar.gz")
	assert.Equal(t, "release.tar.gz", f.Name())
	assert.Equal(t, "gz", f.Extension())
	assert.Equal(t, "release.tar", f.NameWithoutExtension())

	d := base.To("bin")
	assert.Equal(t, "", d.Extension())
	assert.Equal(t, "bin", d.NameWithoutExtension())
}

func TestPrepare(t *testing.T) {
	base := Begin(t.TempDir())

	_, err := base.To("a", "b", "c.txt").Prepare()
	require.NoError(t, err)
	assert.DirExists(t, base.To("a", "b").String())
	assert.NoFileExists(t, base.To("a", "b", "c.txt").String())

	_, err = base.To("x", "y").Prepare()
	require.NoError(t, err)
	_, err = base.To("x", "y").Prepare()
	require.NoError(t, err)
	assert.DirExists(t, base.To("x", "y").String())
}

func TestFiles(t *testing.T) {
	base := Begin(t.TempDir())
	require.NoError(t, base.To("b.txt").WriteString("b"))
	require.NoError(t, base.To("a.txt").WriteString("a"))

	files := base.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name())
	assert.Equal(t, "b.txt", files[1].Name())

	assert.Empty(t, base.To("a.txt").Files())
	assert.Empty(t, base.To("nothing").Files())
}

func TestCopyAndMove(t *testing.T) {
	base := Begin(t.TempDir())
	src := base.To("src")
	require.NoError(t, src.To("one.txt").WriteString("1"))
	require.NoError(t, src.To("sub", "two.txt").WriteString("2"))

	dst := base.To("dst")
	require.NoError(t, src.Copy(dst, true))
	assert.Equal(t, "1", dst.To("one.txt").ReadString())
	assert.Equal(t, "2", dst.To("sub", "two.txt").ReadString())

	require.NoError(t, src.To("one.txt").WriteString("changed"))
	require.NoError(t, src.To("one.txt").Copy(dst.To("one.txt"), false))
	assert.Equal(t, "1", dst.To("one.txt").ReadString())

	require.NoError(t, src.To("one.txt").Copy(dst.To("one.txt"), true))
	assert.Equal(t, "changed", dst.To("one.txt").ReadString())

	moved, err := src.Move(base.To("moved"))
	require.NoError(t, err)
	assert.False(t, src.Exists())
	assert.Equal(t, "2", moved.To("sub", "two.txt").ReadString())
}

func TestCopyOntoItself(t *testing.T) {
	base := Begin(t.TempDir())
	f := base.To("a.txt")
	require.NoError(t, f.WriteString("precious"))

	require.NoError(t, f.Copy(f, true))
	assert.Equal(t, "precious", f.ReadString())

	// Same file reached through a different spelling.
	require.NoError(t, f.Copy(base.To("x", "..", "a.txt"), true))
	assert.Equal(t, "precious", f.ReadString())

	moved, err := f.Move(f)
	require.NoError(t, err)
	assert.True(t, moved.Equal(f))
	assert.Equal(t, "precious", f.ReadString())

	dir := base.To("dir")
	require.NoError(t, dir.To("inner.txt").WriteString("kept"))
	require.NoError(t, dir.Copy(dir, true))
	assert.Equal(t, "kept", dir.To("inner.txt").ReadString())
}

func TestDelete(t *testing.T) {
	base := Begin(t.TempDir())
	tree := base.To("tree")
	require.NoError(t, tree.To("a", "b", "c.txt").WriteString("c"))
	require.NoError(t, tree.To("d.txt").WriteString("d"))

	assert.True(t, tree.Delete())
	assert.False(t, tree.Exists())
	assert.False(t, tree.Delete())

	f := base.To("single.txt")
	require.NoError(t, f.WriteString("x"))
	assert.True(t, f.Delete())
}

func TestReadWriteAppend(t *testing.T) {
	f := Begin(t.TempDir()).To("deep", "file.log")

	require.NoError(t, f.WriteString("hello"))
	require.NoError(t, f.Append([]byte(" world")))
	assert.Equal(t, "hello world", f.ReadString())
	assert.Equal(t, int64(11), f.Size())
	assert.Equal(t, int64(11), f.Parent().Size())

	assert.Equal(t, "", f.Parent().To("none.txt").ReadString())
}

func TestExec(t *testing.T) {
	f := Begin(t.TempDir()).To("run.sh")
	require.NoError(t, f.WriteString("#!/bin/sh\n"))
	require.NoError(t, f.Exec())

	info, err := os.Stat(f.String())
	require.NoError(t, err)
	if filepath.Separator == '/' {
		assert.Equal(t, os.FileMode(0777), info.Mode().Perm())
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc.txt", Sanitize(`a<b>c?.txt`))
	assert.Equal(t, "dirfile", Sanitize("dir/file"))
	assert.Equal(t, "dir/file", Sanitize("dir/file", '/'))
	assert.Equal(t, "tab", Sanitize("t\ta\nb"))
}

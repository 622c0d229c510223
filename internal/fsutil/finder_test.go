package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("# test"), 0o600))
	}
}

func TestFindFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "b.hcl", "a.hcl", "notes.txt", "nested/c.hcl", "nested/deeper/d.hcl")

	t.Run("directory is searched recursively in lexical order", func(t *testing.T) {
		files, err := FindFiles([]string{root}, ".hcl")

		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.hcl"),
			filepath.Join(root, "b.hcl"),
			filepath.Join(root, "nested", "c.hcl"),
			filepath.Join(root, "nested", "deeper", "d.hcl"),
		}, files)
	})

	t.Run("file paths are kept only with the extension", func(t *testing.T) {
		files, err := FindFiles([]string{filepath.Join(root, "b.hcl"), filepath.Join(root, "notes.txt")}, ".hcl")

		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "b.hcl")}, files)
	})

	t.Run("overlapping paths return each file once", func(t *testing.T) {
		nested := filepath.Join(root, "nested")
		files, err := FindFiles([]string{filepath.Join(nested, "c.hcl"), root, nested + string(filepath.Separator)}, ".hcl")

		require.NoError(t, err)
		assert.Len(t, files, 4)
		assert.Equal(t, filepath.Join(nested, "c.hcl"), files[0])
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := FindFiles([]string{filepath.Join(root, "missing")}, ".hcl")

		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "error accessing path")
	})

	t.Run("empty extension panics", func(t *testing.T) {
		assert.Panics(t, func() { _, _ = FindFiles([]string{root}, "") })
	})
}

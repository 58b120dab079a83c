package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressTreeExtractRoundTrip(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top-level"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "leaf.txt"), []byte("nested-content"), 0o644))

	archiveFile, err := CompressTree(src)
	require.NoError(t, err)
	defer os.Remove(archiveFile.Name())
	defer archiveFile.Close()

	dst := t.TempDir()
	require.NoError(t, Extract(archiveFile, dst))

	top, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	assert.Equal(t, "top-level", string(top))

	leaf, err := os.ReadFile(filepath.Join(dst, "nested", "leaf.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nested-content", string(leaf))
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	dst := t.TempDir()
	_, err := safeJoin(dst, "../../etc/passwd")
	assert.Error(t, err)
}

func TestExtractRejectsCorruptArchive(t *testing.T) {
	dst := t.TempDir()
	garbage := []byte("this is not a gzip stream")
	err := Extract(bytes.NewReader(garbage), dst)
	assert.Error(t, err)
}

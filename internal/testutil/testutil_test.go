package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRoot(t *testing.T) {
	root, err := ProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal", "ransac")))
}

func TestWriteFile_CreatesParents(t *testing.T) {
	dir := CreateTempDir(t)
	path := WriteFile(t, dir, "nested/pair.json", []byte("[]"))

	data, err := os.ReadFile(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
	assert.True(t, DirExists(filepath.Join(dir, "nested")))
	assert.False(t, DirExists(path))
}

func TestWriteCorrespondenceCSV(t *testing.T) {
	set := []geometry.Correspondence{
		geometry.NewCorrespondence(1, 2, 3, 4),
		geometry.NewCorrespondence(0.5, 0, 10, -2.25),
	}
	path := WriteCorrespondenceCSV(t, CreateTempDir(t), "pairs.csv", set)

	data, err := os.ReadFile(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	assert.Equal(t, "x,y,u,v\n1,2,3,4\n0.5,0,10,-2.25\n", string(data))
}

func TestExists_Missing(t *testing.T) {
	assert.False(t, FileExists("/non/existent/file"))
	assert.False(t, DirExists("/non/existent/dir"))
}

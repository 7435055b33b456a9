package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/MeKo-Tech/pano/internal/geometry"
	"github.com/stretchr/testify/require"
)

// ProjectRoot walks up from this source file to the directory holding
// go.mod and checks that it looks like the pano module.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}

	for dir := filepath.Dir(filename); ; dir = filepath.Dir(dir) {
		if FileExists(filepath.Join(dir, "go.mod")) {
			for _, sub := range []string{"cmd", "internal"} {
				if !DirExists(filepath.Join(dir, sub)) {
					return "", fmt.Errorf("project root %s has no %s directory", dir, sub)
				}
			}
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return "", fmt.Errorf("no go.mod above %s", filepath.Dir(filename))
		}
	}
}

// CreateTempDir returns a per-test directory removed on cleanup.
func CreateTempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteFile writes content into dir/name, creating parents, and returns the
// full path.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, content, 0o600), "write %s", path)
	return path
}

// WriteCorrespondenceCSV writes set as an x,y,u,v file with a header row.
func WriteCorrespondenceCSV(t *testing.T, dir, name string, set []geometry.Correspondence) string {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("x,y,u,v\n")
	for _, c := range set {
		fmt.Fprintf(&sb, "%g,%g,%g,%g\n", c.Left.X, c.Left.Y, c.Right.X, c.Right.Y)
	}
	return WriteFile(t, dir, name, []byte(sb.String()))
}

// EnsureDir creates path and its parents.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Package testutil provides shared fixtures for sewa's tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// MemFsWithFiles builds an in-memory filesystem holding the given
// path to content pairs. Paths are normalized to be absolute so lookups
// through an HTTP filesystem rooted at "/" resolve.
func MemFsWithFiles(t testing.TB, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		if dir := filepath.Dir(path); dir != "/" {
			if err := fs.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", dir, err)
			}
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return fs
}

// WriteFile creates name (and any parent directories) under dir with the
// given content and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

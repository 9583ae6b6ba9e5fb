package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteCSV writes content to name inside a temp directory and returns the path.
func WriteCSV(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// OpenCSV writes content and opens it for reading; the file is closed on cleanup.
func OpenCSV(t testing.TB, name, content string) *os.File {
	t.Helper()
	file, err := os.Open(WriteCSV(t, name, content))
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	t.Cleanup(func() { _ = file.Close() })
	return file
}

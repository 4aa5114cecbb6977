package sanitizer_test

import (
	"os"
	"path/filepath"
	"testing"
)

func fixtureDir() string {
	return filepath.Join(".", "fixture")
}

// loadFixture reads a fixture page so tests can exercise the exported
// surface against real HTML instead of hand-built node trees.
func loadFixture(t *testing.T, filename string) []byte {
	t.Helper()
	path := filepath.Join(fixtureDir(), filename)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixture %s: %v", filename, err)
	}
	return data
}

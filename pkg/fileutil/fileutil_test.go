package fileutil_test

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/site-archiver/pkg/fileutil"
)

func TestGetFileExtension(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "markdown artifact", path: "archive.md", expected: "md"},
		{name: "compressed page file", path: "page_0001.json.gz", expected: "gz"},
		{name: "image with query-free path", path: "/assets/diagram.png", expected: "png"},
		{name: "no extension", path: "README", expected: ""},
		{name: "dotfile", path: ".gitignore", expected: "gitignore"},
		{name: "trailing dot", path: "file.", expected: ""},
		{name: "directory path", path: "/cache/sessions/", expected: ""},
		{name: "empty string", path: "", expected: ""},
		{name: "case preserved", path: "scan.PDF", expected: "PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fileutil.GetFileExtension(tt.path))
		})
	}
}

func TestEnsureDir_CreatesNestedPath(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "sessions", "docs_example_org", "pages")

	require.Nil(t, fileutil.EnsureDir(tmpDir, "sessions", "docs_example_org", "pages"))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent on an existing directory.
	require.Nil(t, fileutil.EnsureDir(target))
}

func TestEnsureDir_PermissionError(t *testing.T) {
	if filepath.Separator == '\\' {
		t.Skip("permission bits behave differently on Windows")
	}

	tmpDir := t.TempDir()
	readonly := filepath.Join(tmpDir, "readonly")
	require.NoError(t, os.MkdirAll(readonly, 0555))

	err := fileutil.EnsureDir(readonly, "subdir")
	require.Error(t, err)

	var fileErr *fileutil.FileError
	require.ErrorAs(t, err, &fileErr)
	assert.False(t, fileErr.Retryable)
	assert.Equal(t, fileutil.ErrCausePathError, fileErr.Cause)
}

func TestWriteFileAtomic_PlainRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	payload := []byte(`{"session_id":"docs_example_org_20250314_093000_ab12cd34"}`)

	require.Nil(t, fileutil.WriteFileAtomic(path, payload, 0))

	got, err := fileutil.ReadFileMaybeGzip(path)
	require.Nil(t, err)
	assert.Equal(t, payload, got)

	// No temp files left behind.
	entries, readErr := os.ReadDir(filepath.Dir(path))
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.Equal(t, "session.json", entries[0].Name())
}

func TestWriteFileAtomic_GzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page_0001.json.gz")
	payload := []byte(`{"url":"https://docs.example.org/guide","title":"Guide"}`)

	require.Nil(t, fileutil.WriteFileAtomic(path, payload, gzip.BestSpeed))

	// The on-disk bytes are compressed, not the raw payload.
	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.NotEqual(t, payload, raw)

	got, err := fileutil.ReadFileMaybeGzip(path)
	require.Nil(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteFileAtomic_ReplacesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	require.Nil(t, fileutil.WriteFileAtomic(path, []byte("old state"), 0))
	require.Nil(t, fileutil.WriteFileAtomic(path, []byte("new state"), 0))

	got, err := fileutil.ReadFileMaybeGzip(path)
	require.Nil(t, err)
	assert.Equal(t, []byte("new state"), got)
}

func TestReadFileMaybeGzip_MissingFile(t *testing.T) {
	_, err := fileutil.ReadFileMaybeGzip(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)

	var fileErr *fileutil.FileError
	require.ErrorAs(t, err, &fileErr)
	assert.Equal(t, fileutil.ErrCauseReadError, fileErr.Cause)
}

func TestDirSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), make([]byte, 100), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pages"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pages", "b.json"), make([]byte, 50), 0644))

	assert.Equal(t, int64(150), fileutil.DirSize(dir))

	// Missing directories report zero instead of failing.
	assert.Equal(t, int64(0), fileutil.DirSize(filepath.Join(dir, "nope")))
}

package cache_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview_SaveLoadRoundTrip(t *testing.T) {
	store, root := newTestStore(t, false)

	preview := cache.PreviewSession{
		PreviewID: "docs_example_org_preview_001",
		BaseURL:   "https://docs.example.org",
		ApprovedURLs: []string{
			"https://docs.example.org/",
			"https://docs.example.org/guide",
		},
		ExcludedURLs: []string{
			"https://docs.example.org/blog",
		},
		CreatedAt: time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC),
	}
	require.Nil(t, store.SavePreview(preview))
	assert.FileExists(t, filepath.Join(root, "previews", preview.PreviewID, "preview.json"))

	t.Run("by id", func(t *testing.T) {
		loaded, err := store.LoadPreview(preview.PreviewID)
		require.Nil(t, err)
		assert.Equal(t, preview, loaded)
	})

	t.Run("by path", func(t *testing.T) {
		loaded, err := store.LoadPreview(filepath.Join(root, "previews", preview.PreviewID, "preview.json"))
		require.Nil(t, err)
		assert.Equal(t, preview, loaded)
	})
}

func TestLoadPreview_BareURLList(t *testing.T) {
	store, _ := newTestStore(t, false)

	path := filepath.Join(t.TempDir(), "approved_urls.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  "https://docs.example.org/",
  "https://docs.example.org/guide"
]`), 0644))

	loaded, err := store.LoadPreview(path)
	require.Nil(t, err)
	assert.Equal(t, []string{
		"https://docs.example.org/",
		"https://docs.example.org/guide",
	}, loaded.ApprovedURLs)
	assert.Empty(t, loaded.ExcludedURLs)
}

func TestLoadPreview_Missing(t *testing.T) {
	store, _ := newTestStore(t, false)

	_, err := store.LoadPreview("no-such-preview")
	require.NotNil(t, err)
	var cacheErr *cache.CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, cache.ErrCausePreviewNotFound, cacheErr.Cause)
}

func TestLoadPreview_Corrupt(t *testing.T) {
	store, _ := newTestStore(t, false)

	path := filepath.Join(t.TempDir(), "preview.json")
	require.NoError(t, os.WriteFile(path, []byte("not json at all"), 0644))

	_, err := store.LoadPreview(path)
	require.NotNil(t, err)
	var cacheErr *cache.CacheError
	require.ErrorAs(t, err, &cacheErr)
	assert.Equal(t, cache.ErrCausePreviewCorrupt, cacheErr.Cause)
}

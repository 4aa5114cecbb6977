package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/fileutil"
)

const previewFileName = "preview.json"

// SavePreview persists a discovery run's URL decisions under
// cache/previews/<preview_id>/preview.json.
func (s *Store) SavePreview(preview PreviewSession) failure.ClassifiedError {
	dir := filepath.Join(s.previewsDir(), preview.PreviewID)
	if err := fileutil.EnsureDir(dir); err != nil {
		return s.recordError("Store.SavePreview", &CacheError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
		})
	}
	raw, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return s.recordError("Store.SavePreview", &CacheError{
			Message:   fmt.Sprintf("marshal preview %s: %v", preview.PreviewID, err),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		})
	}
	path := filepath.Join(dir, previewFileName)
	if writeErr := fileutil.WriteFileAtomic(path, raw, 0); writeErr != nil {
		return s.recordError("Store.SavePreview", &CacheError{
			Message:   writeErr.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		})
	}
	s.metadataSink.RecordArtifact(
		metadata.ArtifactPreview,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, preview.BaseURL),
			metadata.NewAttr(metadata.AttrCount, fmt.Sprintf("%d", len(preview.ApprovedURLs))),
		},
	)
	return nil
}

// LoadPreview resolves ref as either a filesystem path or a preview id
// under the cache root. Two file shapes are accepted: a full
// PreviewSession object, or a bare approved-URL list, either as a JSON
// array or wrapped in {"approved_urls": [...]}.
func (s *Store) LoadPreview(ref string) (PreviewSession, failure.ClassifiedError) {
	path := ref
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(s.previewsDir(), ref, previewFileName)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PreviewSession{}, s.recordError("Store.LoadPreview", &CacheError{
			Message:   fmt.Sprintf("preview %s: %v", ref, err),
			Retryable: false,
			Cause:     ErrCausePreviewNotFound,
		})
	}
	preview, parseErr := parsePreview(raw)
	if parseErr != nil {
		return PreviewSession{}, s.recordError("Store.LoadPreview", &CacheError{
			Message:   fmt.Sprintf("parse %s: %v", path, parseErr),
			Retryable: false,
			Cause:     ErrCausePreviewCorrupt,
		})
	}
	return preview, nil
}

func parsePreview(raw []byte) (PreviewSession, error) {
	var preview PreviewSession
	if err := json.Unmarshal(raw, &preview); err == nil {
		return preview, nil
	}
	// approved_urls.json fallback: a bare JSON array of URLs.
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		return PreviewSession{}, err
	}
	return PreviewSession{ApprovedURLs: urls}, nil
}

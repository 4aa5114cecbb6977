package storage_test

import (
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/normalize"
	"github.com/rohmanhakim/site-archiver/pkg/hashutil"
)

// sinkSpy records the metadata calls the sink makes so tests can assert
// on the error and artifact trails without a real metadata store.
type sinkSpy struct {
	errorCalls    int
	errorAt       time.Time
	errorPackage  string
	errorAction   string
	errorCause    metadata.ErrorCause
	errorDetails  string
	errorAttrs    []metadata.Attribute
	artifactCalls int
	artifactKind  metadata.ArtifactKind
	artifactPath  string
	artifactAttrs []metadata.Attribute
}

func (s *sinkSpy) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	details string,
	attrs []metadata.Attribute,
) {
	s.errorCalls++
	s.errorAt = observedAt
	s.errorPackage = packageName
	s.errorAction = action
	s.errorCause = cause
	s.errorDetails = details
	s.errorAttrs = attrs
}

func (s *sinkSpy) RecordArtifact(kind metadata.ArtifactKind, path string, attrs []metadata.Attribute) {
	s.artifactCalls++
	s.artifactKind = kind
	s.artifactPath = path
	s.artifactAttrs = attrs
}

func archivedDoc(canonicalURL, contentHash string, body []byte) normalize.NormalizedMarkdownDoc {
	fm := normalize.NewFrontmatter(
		"Install Guide",
		canonicalURL,
		canonicalURL,
		1,
		"guide",
		"doc-"+contentHash,
		contentHash,
		time.Now(),
		"1.0.0",
	)
	return normalize.NewNormalizedMarkdownDoc(fm, body)
}

// urlHashStem mirrors the sink's filename derivation: first 12 hex
// characters of the canonical URL digest.
func urlHashStem(canonicalURL string, algo hashutil.HashAlgo) string {
	digest, _ := hashutil.HashBytes([]byte(canonicalURL), algo)
	return digest[:12]
}

func attrValue(attrs []metadata.Attribute, key metadata.AttributeKey) string {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value
		}
	}
	return ""
}

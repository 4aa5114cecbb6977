package extractor_test

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/extractor"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

// mockMetadataSink captures recorded errors for assertions.
type mockMetadataSink struct {
	metadata.NoopSink
	errors []recordedError
}

type recordedError struct {
	PackageName string
	Action      string
	Cause       metadata.ErrorCause
	ErrorString string
}

func (m *mockMetadataSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause metadata.ErrorCause,
	errorString string,
	attrs []metadata.Attribute,
) {
	m.errors = append(m.errors, recordedError{
		PackageName: packageName,
		Action:      action,
		Cause:       cause,
		ErrorString: errorString,
	})
}

func setupExtractor() (*extractor.DomExtractor, *mockMetadataSink) {
	sink := &mockMetadataSink{}
	ext := extractor.NewDomExtractor(sink)
	return &ext, sink
}

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func isElementNode(node *html.Node, tag string) bool {
	return node != nil && node.Type == html.ElementNode && node.Data == tag
}

func TestExtract_PrefersMainElement(t *testing.T) {
	ext, _ := setupExtractor()
	source := mustParseURL(t, "https://docs.example.org/docs/install")

	result, err := ext.Extract(source, loadFixture(t, "main_with_content.html"))

	require.NoError(t, err)
	require.NotNil(t, result.DocumentRoot)
	assert.True(t, isElementNode(result.ContentNode, "main"))
}

func TestExtract_FallsBackToArticle(t *testing.T) {
	ext, _ := setupExtractor()
	source := mustParseURL(t, "https://docs.example.org/docs/post")

	result, err := ext.Extract(source, loadFixture(t, "article_fallback.html"))

	require.NoError(t, err)
	assert.True(t, isElementNode(result.ContentNode, "article"))
}

func TestExtract_CodeBlocksCountAsContent(t *testing.T) {
	ext, _ := setupExtractor()
	source := mustParseURL(t, "https://docs.example.org/docs/cli")

	// An API reference can be almost entirely code; that still clears
	// the meaningful-content bar.
	result, err := ext.Extract(source, loadFixture(t, "code_heavy_article.html"))

	require.NoError(t, err)
	assert.True(t, isElementNode(result.ContentNode, "article"))
}

func TestExtract_RejectsUnusableDocuments(t *testing.T) {
	cases := []struct {
		name    string
		fixture string
	}{
		{name: "EmptyMain", fixture: "main_empty.html"},
		{name: "NavOnlyMain", fixture: "main_nav_only.html"},
		{name: "BoilerplateOnly", fixture: "boilerplate_only.html"},
		{name: "XMLFeed", fixture: "feed.xml"},
		{name: "PlainText", fixture: "plain_text.txt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ext, sink := setupExtractor()
			source := mustParseURL(t, "https://docs.example.org/docs/page")

			result, err := ext.Extract(source, loadFixture(t, tc.fixture))

			require.Error(t, err)
			assert.Nil(t, result.ContentNode)
			assert.Equal(t, failure.SeverityFatal, err.Severity())

			require.Len(t, sink.errors, 1)
			assert.Equal(t, metadata.CauseContentInvalid, sink.errors[0].Cause)
		})
	}
}

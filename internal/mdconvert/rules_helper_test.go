package mdconvert_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/mdconvert"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/sanitizer"
)

func loadHtmlFixture(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("fixture", "input", filename))
	require.NoError(t, err, "fixture %s must exist", filename)
	return data
}

// loadExpectedMarkdown reads the golden file for a fixture. Trailing
// newlines are trimmed because the converter emits none.
func loadExpectedMarkdown(t *testing.T, fixtureName string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("fixture", "expected", fixtureName+".md"))
	require.NoError(t, err, "golden file for %s must exist", fixtureName)
	return bytes.TrimRight(data, "\n")
}

func createTestRule() *mdconvert.StrictConversionRule {
	return mdconvert.NewRule(&metadata.NoopSink{})
}

// createSanitizedDoc wraps raw HTML the way the sanitizer hands content
// to the converter: parsed, body-rooted, no asset table.
func createSanitizedDoc(t *testing.T, htmlContent string) sanitizer.SanitizedHTMLDoc {
	t.Helper()
	return sanitizer.NewSanitizedHTMLDoc(parseBody(t, htmlContent), nil)
}

func parseBody(t *testing.T, htmlContent string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlContent))
	require.NoError(t, err)

	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if body != nil {
		return body
	}
	return doc
}

package scheduler

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rohmanhakim/site-archiver/internal/assets"
	"github.com/rohmanhakim/site-archiver/internal/build"
	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/mdconvert"
	"github.com/rohmanhakim/site-archiver/internal/normalize"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/internal/sanitizer"
	"github.com/rohmanhakim/site-archiver/internal/storage"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/hashutil"
)

// pageWriter runs one record through the sanitize, convert, normalize
// and write stages. The scheduler uses it in direct-output mode, where
// each page lands as its own frontmattered markdown file, and borrows
// its convert stage to feed the asset resolver.
type pageWriter struct {
	cfg           config.Config
	htmlSanitizer sanitizer.HtmlSanitizer
	rule          *mdconvert.StrictConversionRule
	constraint    normalize.MarkdownConstraint
	localSink     storage.LocalSink
	now           func() time.Time
}

func newPageWriter(cfg config.Config, metadataSink Sink) *pageWriter {
	return &pageWriter{
		cfg:           cfg,
		htmlSanitizer: sanitizer.NewHTMLSanitizer(metadataSink),
		rule:          mdconvert.NewRule(metadataSink),
		constraint:    normalize.NewMarkdownConstraint(metadataSink),
		localSink:     storage.NewLocalSink(metadataSink),
		now:           time.Now,
	}
}

// convert turns the record's harvested HTML into markdown. A false
// return means the page has no convertible body; the caller decides
// whether that matters.
func (w *pageWriter) convert(rec record.PageRecord) (mdconvert.ConversionResult, bool) {
	body := parsePageBody(rec.Content)
	if body == nil {
		return mdconvert.ConversionResult{}, false
	}
	doc, sanitizeErr := w.htmlSanitizer.Sanitize(body)
	if sanitizeErr != nil {
		return mdconvert.ConversionResult{}, false
	}
	result, convertErr := w.rule.Convert(doc)
	if convertErr != nil {
		return mdconvert.ConversionResult{}, false
	}
	return result, true
}

// write persists one record as a standalone markdown file. Records
// without convertible HTML fall back to their text content, which
// normalize rejects when empty.
func (w *pageWriter) write(
	outputDir string,
	pageURL url.URL,
	rec record.PageRecord,
	depth int,
) (storage.WriteResult, failure.ClassifiedError) {
	var content []byte
	if result, ok := w.convert(rec); ok {
		content = result.GetMarkdownContent()
	} else {
		content = []byte(strings.TrimSpace(rec.TextContent))
	}

	assetfulDoc := assets.NewAssetfulMarkdownDoc(content, nil, nil, nil)
	normalizedDoc, normalizeErr := w.constraint.Normalize(
		pageURL,
		assetfulDoc,
		normalize.NewNormalizeParam(
			build.FullVersion(),
			w.now(),
			hashutil.HashAlgoBLAKE3,
			depth,
			nil,
		),
	)
	if normalizeErr != nil {
		// Normalization rejects individual pages; the session
		// survives. Only sink I/O below may fail the whole run.
		return storage.WriteResult{}, &pageWriteError{cause: normalizeErr}
	}

	return w.localSink.Write(outputDir, normalizedDoc, hashutil.HashAlgoBLAKE3)
}

// pageWriteError downgrades a per-page pipeline failure to recoverable
// so the crawl skips the page instead of aborting.
type pageWriteError struct {
	cause failure.ClassifiedError
}

func (e *pageWriteError) Error() string {
	return e.cause.Error()
}

func (e *pageWriteError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

// parsePageBody parses harvested HTML and returns its body element, or
// nil when nothing parseable remains.
func parsePageBody(content string) *html.Node {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	return findBodyElement(root)
}

func findBodyElement(node *html.Node) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == atom.Body {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findBodyElement(child); found != nil {
			return found
		}
	}
	return nil
}

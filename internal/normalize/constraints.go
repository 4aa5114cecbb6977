package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/assets"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/hashutil"
)

/*
Responsibilities
- Inject frontmatter
- Enforce structural rules
- Prepare documents for RAG chunking

Frontmatter Fields
- Title
- Source URL
- Crawl depth
- Section or category

RAG-Oriented Constraints
- Logical section boundaries preserved
- Code blocks and tables are atomic
- Chunk sizes predictable
*/

type MarkdownConstraint struct {
	metadataSink metadata.MetadataSink
}

func NewMarkdownConstraint(
	metadataSink metadata.MetadataSink,
) MarkdownConstraint {
	return MarkdownConstraint{
		metadataSink: metadataSink,
	}
}

// Normalize verifies the structural invariants of a converted markdown
// document and derives its frontmatter. Content passes through
// unchanged; violations are fatal for the page, not the crawl.
func (m *MarkdownConstraint) Normalize(
	fetchURL url.URL,
	assetfulMarkdownDoc assets.AssetfulMarkdownDoc,
	param NormalizeParam,
) (NormalizedMarkdownDoc, failure.ClassifiedError) {
	doc, normalizationError := normalizeDoc(fetchURL, assetfulMarkdownDoc.Content(), param)
	if normalizationError != nil {
		m.metadataSink.RecordError(
			time.Now(),
			"normalize",
			"MarkdownConstraint.Normalize",
			mapNormalizationErrorToMetadataCause(*normalizationError),
			normalizationError.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchURL.String()),
				metadata.NewAttr(metadata.AttrField, string(normalizationError.Cause)),
			},
		)
		return NormalizedMarkdownDoc{}, normalizationError
	}
	return doc, nil
}

func normalizeDoc(fetchURL url.URL, content []byte, param NormalizeParam) (NormalizedMarkdownDoc, *NormalizationError) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   "markdown content is empty",
			Retryable: false,
			Cause:     ErrCauseEmptyContent,
		}
	}

	headings, orphan := scanStructure(string(content))

	h1Count := 0
	var firstH1 heading
	for _, h := range headings {
		if h.level == 1 {
			if h1Count == 0 {
				firstH1 = h
			}
			h1Count++
		}
	}
	if h1Count != 1 {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   fmt.Sprintf("expected exactly one H1, found %d", h1Count),
			Retryable: false,
			Cause:     ErrCauseBrokenH1Invariant,
		}
	}
	if orphan {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   "content found before the first H1",
			Retryable: false,
			Cause:     ErrCauseOrphanContent,
		}
	}

	for i := 1; i < len(headings); i++ {
		if headings[i].level > headings[i-1].level+1 {
			return NormalizedMarkdownDoc{}, &NormalizationError{
				Message: fmt.Sprintf("heading level jumps from H%d to H%d",
					headings[i-1].level, headings[i].level),
				Retryable: false,
				Cause:     ErrCauseSkippedHeadingLevels,
			}
		}
	}

	for i := 0; i < len(headings)-1; i++ {
		next := headings[i+1]
		if next.level <= headings[i].level && !headings[i].hasContent {
			return NormalizedMarkdownDoc{}, &NormalizationError{
				Message:   fmt.Sprintf("section %q has no content", headings[i].text),
				Retryable: false,
				Cause:     ErrCauseEmptySection,
			}
		}
	}

	title := stripInlineFormatting(firstH1.text)
	if title == "" {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   "first H1 contains no extractable text",
			Retryable: false,
			Cause:     ErrCauseTitleExtractionFailed,
		}
	}

	section, sectionErr := deriveSection(fetchURL.Path, param.allowedPathPrefixes)
	if sectionErr != nil {
		return NormalizedMarkdownDoc{}, sectionErr
	}

	canonical := canonicalDocURL(fetchURL)

	docID, err := hashutil.HashBytes([]byte(canonical), param.hashAlgo)
	if err != nil {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   fmt.Sprintf("doc id hash failed: %v", err),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}
	contentHash, err := hashutil.HashBytes(content, param.hashAlgo)
	if err != nil {
		return NormalizedMarkdownDoc{}, &NormalizationError{
			Message:   fmt.Sprintf("content hash failed: %v", err),
			Retryable: false,
			Cause:     ErrCauseHashComputationFailed,
		}
	}

	frontmatter := NewFrontmatter(
		title,
		fetchURL.String(),
		canonical,
		param.crawlDepth,
		section,
		fmt.Sprintf("%s:%s", param.hashAlgo, docID),
		fmt.Sprintf("%s:%s", param.hashAlgo, contentHash),
		param.fetchedAt,
		param.appVersion,
	)
	return NewNormalizedMarkdownDoc(frontmatter, content), nil
}

type heading struct {
	level      int
	text       string
	hasContent bool
}

var headingPattern = regexp.MustCompile(`^(#{1,6})(?:\s+(.*))?$`)

// scanStructure walks the document line by line, collecting headings and
// whether each owns any content before the next heading. Fenced code
// blocks are atomic; their interior never counts as headings. The second
// return reports content appearing before the first heading.
func scanStructure(content string) ([]heading, bool) {
	var headings []heading
	orphan := false
	inFence := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			if len(headings) == 0 {
				orphan = true
			} else {
				headings[len(headings)-1].hasContent = true
			}
			continue
		}
		if inFence {
			if len(headings) > 0 {
				headings[len(headings)-1].hasContent = true
			}
			continue
		}

		if match := headingPattern.FindStringSubmatch(trimmed); match != nil {
			headings = append(headings, heading{
				level: len(match[1]),
				text:  strings.TrimSpace(match[2]),
			})
			continue
		}

		if trimmed == "" {
			continue
		}
		if len(headings) == 0 {
			orphan = true
			continue
		}
		headings[len(headings)-1].hasContent = true
	}

	return headings, orphan
}

var (
	imagePattern  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	inlineMarkers = strings.NewReplacer("**", "", "__", "", "*", "", "_", "", "`", "")
)

// stripInlineFormatting reduces a heading to plain text: links and
// images collapse to their label, emphasis markers are dropped.
func stripInlineFormatting(text string) string {
	text = imagePattern.ReplaceAllString(text, "$1")
	text = linkPattern.ReplaceAllString(text, "$1")
	text = inlineMarkers.Replace(text)
	return strings.TrimSpace(text)
}

// canonicalDocURL produces the canonical identity of a document URL:
// lowercase scheme and host, path preserved, query and fragment dropped.
func canonicalDocURL(u url.URL) string {
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String()
}

// deriveSection picks the logical section from the URL path: the first
// meaningful segment after stripping the first matching configured
// prefix. Prefixes are tried in order.
func deriveSection(path string, prefixes []string) (string, *NormalizationError) {
	remaining := path
	for _, prefix := range prefixes {
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if strings.HasPrefix(remaining, prefix+"/") {
			remaining = strings.TrimPrefix(remaining, prefix)
			break
		}
		if remaining == prefix {
			remaining = ""
			break
		}
	}

	for _, segment := range strings.Split(remaining, "/") {
		if segment != "" {
			return segment, nil
		}
	}
	return "", &NormalizationError{
		Message:   fmt.Sprintf("no meaningful path segment in %q", path),
		Retryable: false,
		Cause:     ErrCauseSectionDerivationFailed,
	}
}

package mdconvert

import (
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/sanitizer"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

/*
Conversion Rules
- Headings map directly (h1-h6 to # through ######)
- Code blocks and inline code pass through verbatim, no reformatting
- Tables become GFM tables; only structure carries over
- Links and images keep their raw targets, resolution happens later
- DOM order is preserved; nothing is inferred from styling or raw HTML
*/

// ConvertRule turns sanitized HTML into markdown. Implementations must
// be deterministic: the same content node always yields the same bytes.
type ConvertRule interface {
	Convert(sanitizedHTMLDoc sanitizer.SanitizedHTMLDoc) (ConversionResult, failure.ClassifiedError)
}

var _ ConvertRule = (*StrictConversionRule)(nil)

type StrictConversionRule struct {
	metadataSink metadata.MetadataSink
}

func NewRule(metadataSink metadata.MetadataSink) *StrictConversionRule {
	return &StrictConversionRule{
		metadataSink: metadataSink,
	}
}

// Convert produces the markdown rendition of a sanitized content node
// plus the link references it carries, in document order. Failures are
// recorded before they surface.
func (s *StrictConversionRule) Convert(
	sanitizedHTMLDoc sanitizer.SanitizedHTMLDoc,
) (ConversionResult, failure.ClassifiedError) {
	result, convErr := convert(sanitizedHTMLDoc.GetContentNode())
	if convErr != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"mdconvert",
			"StrictConversionRule.Convert",
			mapConversionErrorToMetadataCause(*convErr),
			convErr.Error(),
			[]metadata.Attribute{},
		)
		return ConversionResult{}, convErr
	}
	return result, nil
}

// convert is pure over its input node. The converter stacks the base,
// commonmark and table plugins; together they cover the rule set above.
func convert(node *html.Node) (ConversionResult, *ConversionError) {
	if node == nil {
		return ConversionResult{}, &ConversionError{
			Message:   "cannot convert nil HTML node",
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	markdown, err := conv.ConvertNode(node)
	if err != nil {
		return ConversionResult{}, &ConversionError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseConversionFailure,
		}
	}

	return NewConversionResult(markdown, collectLinkRefs(node)), nil
}

// collectLinkRefs walks anchors and images in one selection so the
// refs come out in document order. Raw targets stay untouched; the
// asset resolver decides what becomes local.
func collectLinkRefs(node *html.Node) []LinkRef {
	var refs []LinkRef

	goquery.NewDocumentFromNode(node).Find("a[href], img[src]").Each(func(_ int, sel *goquery.Selection) {
		switch goquery.NodeName(sel) {
		case "a":
			if href, ok := sel.Attr("href"); ok {
				refs = append(refs, classifyRef("a", href))
			}
		case "img":
			if src, ok := sel.Attr("src"); ok {
				refs = append(refs, classifyRef("img", src))
			}
		}
	})

	return refs
}

// classifyRef buckets a raw link target: images by tag, in-page anchors
// by their "#" prefix, everything else navigation. External-vs-internal
// is not decided here.
func classifyRef(tag string, raw string) LinkRef {
	switch {
	case tag == "img":
		return NewLinkRef(raw, KindImage)
	case strings.HasPrefix(raw, "#"):
		return NewLinkRef(raw, KindAnchor)
	default:
		return NewLinkRef(raw, KindNavigation)
	}
}

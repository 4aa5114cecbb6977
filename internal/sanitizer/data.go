package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

// SanitizedHTMLDoc carries the cleaned content subtree plus the URLs
// discovered while walking it. The frontier consumes the URLs, the
// converter consumes the node.
type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// NewSanitizedHTMLDoc constructs a doc with the given fields. Test
// helper; production docs come out of Sanitize.
func NewSanitizedHTMLDoc(contentNode *html.Node, discoveredUrls []url.URL) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{
		contentNode:    contentNode,
		discoveredUrls: discoveredUrls,
	}
}

// SanitizeParam tunes the sanitization pass.
type SanitizeParam struct {
	// MinimumHeadingLevel is the lowest heading level treated as part
	// of the document structure. Zero means 1 (h1).
	MinimumHeadingLevel int
}

func DefaultSanitizeParam() SanitizeParam {
	return SanitizeParam{
		MinimumHeadingLevel: 1,
	}
}

// headingInfo is one heading element with its level and text, in DOM
// order.
type headingInfo struct {
	level int
	node  *html.Node
	text  string
}

// RepairableResult is the outcome of the repairability check. Reason is
// set only when Repairable is false.
type RepairableResult struct {
	Repairable bool
	Reason     UnrepairabilityReason
}

package sanitizer

import (
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"golang.org/x/net/html"
)

// Sanitizer turns a raw content node into a structurally valid document
// ready for conversion. Implementations must be deterministic: the same
// node always yields the same document or the same rejection.
type Sanitizer interface {
	Sanitize(inputContentNode *html.Node) (SanitizedHTMLDoc, failure.ClassifiedError)
}

var _ Sanitizer = (*HtmlSanitizer)(nil)

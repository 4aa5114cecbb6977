/*
Responsibilities
- Reject documents whose structure cannot be repaired
- Remove noise, empty and duplicate nodes
- Stabilize heading hierarchy
- Surface outbound links found in the sanitized tree

This stage ensures downstream Markdown conversion is deterministic.
*/
package sanitizer

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

type HtmlSanitizer struct {
	metadataSink metadata.MetadataSink
	param        SanitizeParam
}

func NewHTMLSanitizer(metadataSink metadata.MetadataSink) HtmlSanitizer {
	return HtmlSanitizer{
		metadataSink: metadataSink,
		param:        DefaultSanitizeParam(),
	}
}

// SetParam overrides the default sanitization parameters.
func (h *HtmlSanitizer) SetParam(param SanitizeParam) {
	h.param = param
}

func (h *HtmlSanitizer) Sanitize(
	inputContentNode *html.Node,
) (SanitizedHTMLDoc, failure.ClassifiedError) {
	sanitizedHtmlDoc, err := h.sanitize(inputContentNode)
	if err != nil {
		var sanitizationError *SanitizationError
		errors.As(err, &sanitizationError)
		h.metadataSink.RecordError(
			time.Now(),
			"sanitizer",
			"HtmlSanitizer.Sanitize",
			mapSanitizationErrorToMetadataCause(sanitizationError),
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrReason, string(sanitizationError.Cause)),
			},
		)
		return SanitizedHTMLDoc{}, sanitizationError
	}
	return sanitizedHtmlDoc, nil
}

// sanitize runs the pipeline in a fixed order. The repairability gate
// runs first so transforms only ever see documents with exactly one
// provable root. Every pass is a pure tree walk; no map iteration order
// leaks into the output, which keeps repeated runs byte-identical.
func (h *HtmlSanitizer) sanitize(node *html.Node) (SanitizedHTMLDoc, error) {
	if node == nil {
		return SanitizedHTMLDoc{}, &SanitizationError{
			Message:   "input node is nil",
			Retryable: false,
			Cause:     ErrCauseBrokenDOM,
		}
	}
	if node.FirstChild == nil || (node.Type == html.ElementNode && isEmptyNode(node)) {
		return SanitizedHTMLDoc{}, &SanitizationError{
			Message:   "input node holds no content",
			Retryable: false,
			Cause:     ErrCauseBrokenDOM,
		}
	}

	if verdict := isRepairable(node); !verdict.Repairable {
		return SanitizedHTMLDoc{}, &SanitizationError{
			Message:   fmt.Sprintf("document structure is not repairable: %s", verdict.Reason),
			Retryable: false,
			Cause:     causeForReason(verdict.Reason),
		}
	}

	removeNoiseNodes(node)
	removeDuplicateNodes(node)
	removeEmptyNodesBottomUp(node)
	normalizeHeadingLevels(node)

	return SanitizedHTMLDoc{
		contentNode:    node,
		discoveredUrls: extractURLs(node),
	}, nil
}

package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Isolate main documentation content
- Remove site chrome and noise
- Lift page records out of the selected content

Extraction Strategy
- Priority order:
	- Semantic containers (main, article, [role=main])
	- Known documentation selectors (plus configured custom ones)
	- Scored container fallback (best text-bearing div/section)
Removal Rules
- Strip:
	- Navigation menus
	- Headers and footers
	- Sidebars
	- Breadcrumbs
	- Link-dominated blocks

Only content relevant to the document body may pass through. Links are
harvested from the whole document before any stripping, so menu links
still feed discovery.
*/

// tuning holds the heuristic knobs. Zero-config extractors run on the
// same values config defaults to.
type tuning struct {
	minNonWhitespace       int
	maxLinkDensity         float64
	linkDensityThreshold   float64
	menuLinkCountThreshold int
	nonWhitespaceDivisor   float64
	paragraphMultiplier    float64
	headingMultiplier      float64
	codeBlockMultiplier    float64
	listItemMultiplier     float64
	bodySpecificityBias    float64
}

func defaultTuning() tuning {
	return tuning{
		minNonWhitespace:       50,
		maxLinkDensity:         0.8,
		linkDensityThreshold:   0.2,
		menuLinkCountThreshold: 5,
		nonWhitespaceDivisor:   50.0,
		paragraphMultiplier:    5.0,
		headingMultiplier:      10.0,
		codeBlockMultiplier:    15.0,
		listItemMultiplier:     2.0,
		bodySpecificityBias:    0.75,
	}
}

type DomExtractor struct {
	metadataSink metadata.MetadataSink
	tuning       tuning
}

func NewDomExtractor(
	metadataSink metadata.MetadataSink,
) DomExtractor {
	return DomExtractor{
		metadataSink: metadataSink,
		tuning:       defaultTuning(),
	}
}

// SetConfig replaces the default heuristic knobs with configured ones.
func (d *DomExtractor) SetConfig(cfg config.Config) {
	d.tuning = tuning{
		minNonWhitespace:       cfg.ThresholdMinNonWhitespace(),
		maxLinkDensity:         cfg.ThresholdMaxLinkDensity(),
		linkDensityThreshold:   cfg.LinkDensityThreshold(),
		menuLinkCountThreshold: cfg.MenuLinkCountThreshold(),
		nonWhitespaceDivisor:   cfg.ScoreMultiplierNonWhitespaceDivisor(),
		paragraphMultiplier:    cfg.ScoreMultiplierParagraphs(),
		headingMultiplier:      cfg.ScoreMultiplierHeadings(),
		codeBlockMultiplier:    cfg.ScoreMultiplierCodeBlocks(),
		listItemMultiplier:     cfg.ScoreMultiplierListItems(),
		bodySpecificityBias:    cfg.BodySpecificityBias(),
	}
}

func (d *DomExtractor) Extract(
	sourceUrl url.URL,
	htmlByte []byte,
) (ExtractionResult, failure.ClassifiedError) {
	result, err := d.extract(htmlByte, nil)
	if err != nil {
		d.recordExtractionError("DomExtractor.Extract", sourceUrl, err)
		var extractionError *ExtractionError
		errors.As(err, &extractionError)
		return ExtractionResult{}, extractionError
	}
	return result, nil
}

func (d *DomExtractor) recordExtractionError(callerMethod string, sourceUrl url.URL, err error) {
	var extractionError *ExtractionError
	errors.As(err, &extractionError)
	d.metadataSink.RecordError(
		time.Now(),
		"extractor",
		callerMethod,
		mapExtractionErrorToMetadataCause(extractionError),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, sourceUrl.String()),
		},
	)
}

func (d *DomExtractor) extract(htmlByte []byte, customSelectors []string) (ExtractionResult, error) {
	if !looksLikeHTML(htmlByte) {
		return ExtractionResult{}, &ExtractionError{
			Message:   "input is not an HTML document",
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	// Lenient parse; net/html recovers from most tag soup
	doc, err := html.Parse(bytes.NewReader(htmlByte))
	if err != nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   fmt.Sprintf("failed to parse HTML: %v", err),
			Retryable: false,
			Cause:     ErrCauseNotHTML,
		}
	}

	contentNode := d.selectContent(doc, customSelectors)
	if contentNode == nil {
		return ExtractionResult{}, &ExtractionError{
			Message:   "no meaningful content container found",
			Retryable: false,
			Cause:     ErrCauseNoContent,
		}
	}

	return ExtractionResult{
		DocumentRoot: doc,
		ContentNode:  contentNode,
	}, nil
}

// looksLikeHTML sniffs the payload. html.Parse happily wraps plain text
// and XML in a synthetic <html> tree, so the check runs on the raw
// bytes instead of the parsed result.
func looksLikeHTML(htmlByte []byte) bool {
	head := bytes.TrimLeft(htmlByte, " \t\r\n\ufeff")
	if bytes.HasPrefix(head, []byte("<?xml")) {
		return false
	}
	lowered := strings.ToLower(string(head))
	return strings.Contains(lowered, "<html") || strings.HasPrefix(lowered, "<!doctype html")
}

// selectContent applies the three heuristic layers in order.
func (d *DomExtractor) selectContent(doc *html.Node, customSelectors []string) *html.Node {
	gqDoc := goquery.NewDocumentFromNode(doc)

	// Layer 1: semantic containers
	for _, selector := range []string{"main", "article", "[role='main']"} {
		if sel := gqDoc.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; d.isMeaningful(node) {
				return node
			}
		}
	}

	// Layer 2: known documentation selectors
	for _, selector := range mergeSelectors(getAllSelectors(), customSelectors) {
		if sel := gqDoc.Find(selector).First(); sel.Length() > 0 {
			if node := sel.Nodes[0]; d.isMeaningful(node) {
				return node
			}
		}
	}

	// Layer 3: scored container fallback
	if node := d.bestScoredContainer(gqDoc); node != nil && d.isMeaningful(node) {
		return node
	}

	return nil
}

// bestScoredContainer scores every div/section/body and returns the
// highest. The body carries a specificity penalty so a real container
// wins whenever one exists.
func (d *DomExtractor) bestScoredContainer(gqDoc *goquery.Document) *html.Node {
	var best *html.Node
	var bestScore float64

	gqDoc.Find("div, section, body").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Nodes[0]
		stats := collectStats(node)

		score := float64(stats.nonWhitespace)/d.tuning.nonWhitespaceDivisor +
			float64(stats.paragraphs)*d.tuning.paragraphMultiplier +
			float64(stats.headings)*d.tuning.headingMultiplier +
			float64(stats.codeBlocks)*d.tuning.codeBlockMultiplier +
			float64(stats.listItems)*d.tuning.listItemMultiplier

		if node.Data == "body" {
			score *= d.tuning.bodySpecificityBias
		}

		if score > bestScore {
			bestScore = score
			best = node
		}
	})

	return best
}

// isMeaningful checks if a node contains meaningful content.
// A node is meaningful if it contains:
//   - Substantive text content (not just whitespace)
//   - Headings (h1-h6)
//   - Paragraphs with text
//   - Code blocks (important for documentation)
//
// It rejects nodes with only navigation links.
func (d *DomExtractor) isMeaningful(node *html.Node) bool {
	if node == nil {
		return false
	}
	stats := collectStats(node)

	if stats.nonWhitespace < d.tuning.minNonWhitespace {
		return false
	}

	// Navigation-only content has a high link density
	if stats.textLength > 0 {
		linkDensity := float64(stats.linkTextLength) / float64(stats.textLength)
		if linkDensity > d.tuning.maxLinkDensity && stats.links > 2 {
			return false
		}
	}

	hasContent := stats.paragraphs >= 1 || stats.codeBlocks >= 1
	hasHeadingsWithText := stats.headings > 0 && stats.nonWhitespace >= 20

	return hasContent || hasHeadingsWithText
}

func collectStats(node *html.Node) nodeStats {
	var stats nodeStats

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}

		switch n.Type {
		case html.TextNode:
			text := n.Data
			stats.textLength += len(text)
			for _, r := range text {
				if !unicode.IsSpace(r) {
					stats.nonWhitespace++
				}
			}

		case html.ElementNode:
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				stats.headings++
			case "p":
				stats.paragraphs++
			case "li":
				stats.listItems++
			case "img":
				stats.images++
			case "pre":
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.ElementNode && c.Data == "code" {
						stats.codeBlocks++
						break
					}
				}
			case "code":
				stats.codeBlocks++
			case "a":
				stats.links++
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode {
						stats.linkTextLength += len(strings.TrimSpace(c.Data))
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(node)
	return stats
}

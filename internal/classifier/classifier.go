package classifier

import (
	"net/url"
	"strings"
)

/*
Classifier Responsibilities
- Assign a content type to a page from its URL and structure
- Derive a frontier priority from the content type
- Score extraction quality for the low-quality gate

Classification is a pure function of (URL, structure, config); it keeps
no state and never looks at crawl history.
*/

// ContentType is the coarse class a page falls into. It drives frontier
// ordering (documentation overtakes navigation at the same depth) and
// the assembler's quality filter.
type ContentType string

const (
	TypeDocumentation ContentType = "documentation"
	TypeContent       ContentType = "content"
	TypeNavigation    ContentType = "navigation"
	TypeTechnical     ContentType = "technical"
	TypeLowQuality    ContentType = "low-quality"
	TypeExcluded      ContentType = "excluded"
)

// Priority returns the frontier priority for the content type. Higher
// dequeues first.
func (c ContentType) Priority() int {
	switch c {
	case TypeDocumentation:
		return 100
	case TypeContent:
		return 80
	case TypeNavigation:
		return 60
	case TypeTechnical:
		return 20
	default:
		return 0
	}
}

// QualityLevel buckets a quality score.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// PageStructure carries the structural counts the classifier weighs.
// The extractor fills it from the selected main content.
type PageStructure struct {
	WordCount  int
	Headings   int
	Paragraphs int
	ListItems  int
	Images     int
	Links      int
	TextLength int
	LinkText   int
}

var documentationPathHints = []string{
	"/docs", "/documentation", "/guide", "/guides", "/manual",
	"/reference", "/api-docs", "/tutorial", "/tutorials", "/handbook",
	"/learn", "/howto", "/how-to", "/faq", "/help",
}

var navigationPathHints = []string{
	"/sitemap", "/index", "/toc", "/contents", "/archive",
	"/category/", "/categories", "/tag/", "/tags",
}

var technicalPathHints = []string{
	"/search", "/print/", "/preview", "/embed", "/amp/",
}

// Classify assigns a content type from the URL path and the page
// structure. URL hints dominate; structure breaks ties.
func Classify(pageURL url.URL, structure PageStructure) ContentType {
	path := strings.ToLower(pageURL.Path)

	for _, hint := range technicalPathHints {
		if strings.Contains(path, hint) {
			return TypeTechnical
		}
	}
	for _, hint := range documentationPathHints {
		if strings.Contains(path, hint) {
			return TypeDocumentation
		}
	}
	for _, hint := range navigationPathHints {
		if strings.Contains(path, hint) {
			return TypeNavigation
		}
	}

	// Structure-based fallback: link-dominated pages are navigation,
	// substantial prose is content.
	if structure.TextLength > 0 && structure.Links > 5 {
		linkDensity := float64(structure.LinkText) / float64(structure.TextLength)
		if linkDensity > 0.6 {
			return TypeNavigation
		}
	}
	if structure.WordCount >= 100 && (structure.Headings >= 1 || structure.Paragraphs >= 2) {
		return TypeContent
	}
	if structure.WordCount < 30 {
		return TypeLowQuality
	}
	return TypeContent
}

// QualityScore computes an additive quality score from the structure.
// Words, headings and paragraphs earn points; heavy linking loses them.
func QualityScore(structure PageStructure) int {
	score := 0

	switch {
	case structure.WordCount >= 500:
		score += 30
	case structure.WordCount >= 200:
		score += 20
	case structure.WordCount >= 100:
		score += 10
	}

	switch {
	case structure.Headings >= 2:
		score += 20
	case structure.Headings >= 1:
		score += 10
	}

	switch {
	case structure.Paragraphs >= 3:
		score += 20
	case structure.Paragraphs >= 1:
		score += 10
	}

	if structure.ListItems > 0 {
		score += 10
	}
	if structure.Images > 0 {
		score += 10
	}
	if structure.Links > 50 {
		score -= 20
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Level buckets a score into high/medium/low.
func Level(score int) QualityLevel {
	switch {
	case score >= 70:
		return QualityHigh
	case score >= 40:
		return QualityMedium
	default:
		return QualityLow
	}
}

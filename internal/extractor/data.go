package extractor

import "golang.org/x/net/html"

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
}

// ExtractParam carries the per-crawl extraction settings the scheduler
// resolves from config.
type ExtractParam struct {
	includeMenus     bool
	removeImages     bool
	minContentLength int
	customSelectors  []string
}

func NewExtractParam(includeMenus bool, minContentLength int, customSelectors []string) ExtractParam {
	return ExtractParam{
		includeMenus:     includeMenus,
		minContentLength: minContentLength,
		customSelectors:  customSelectors,
	}
}

// WithRemoveImages swaps every image for its text placeholder during
// extraction instead of inventorying it for download.
func (p ExtractParam) WithRemoveImages(remove bool) ExtractParam {
	p.removeImages = remove
	return p
}

func (p ExtractParam) IncludeMenus() bool {
	return p.includeMenus
}

func (p ExtractParam) RemoveImages() bool {
	return p.removeImages
}

func (p ExtractParam) MinContentLength() int {
	return p.minContentLength
}

func (p ExtractParam) CustomSelectors() []string {
	selectors := make([]string, len(p.customSelectors))
	copy(selectors, p.customSelectors)
	return selectors
}

// nodeStats are the structural counts collected over a subtree. The
// meaningfulness check and the container scorer both read them.
type nodeStats struct {
	textLength     int
	nonWhitespace  int
	headings       int
	paragraphs     int
	codeBlocks     int
	listItems      int
	images         int
	links          int
	linkTextLength int
}

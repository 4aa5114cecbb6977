package sanitizer

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unsafe"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// UnrepairabilityReason names the structural violation that makes a
// page unrepairable. The value ends up on the page record flag detail.
type UnrepairabilityReason string

const (
	// Multiple article or main elements compete for the document root.
	ReasonCompetingRoots UnrepairabilityReason = "competing_roots"

	// No headings and no article/main/section to anchor the structure.
	ReasonNoStructuralAnchor UnrepairabilityReason = "no_structural_anchor"

	// Multiple h1 elements and no provable primary root among them.
	ReasonMultipleH1NoRoot UnrepairabilityReason = "multiple_h1_no_root"

	// The heading hierarchy implies several complete documents.
	ReasonImpliedMultipleDocs UnrepairabilityReason = "implied_multiple_docs"

	// Overlapping contexts or orphaned headings, no consistent reading.
	ReasonAmbiguousDOM UnrepairabilityReason = "ambiguous_dom"
)

// isEmptyNode reports whether an element node has no child elements and
// no non-whitespace text.
func isEmptyNode(node *html.Node) bool {
	if node == nil || node.Type != html.ElementNode {
		return false
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return false
			}
		}
	}

	return true
}

// nodeSignature builds a comparison key from tag, attributes and a
// content hash. Two nodes with the same signature are treated as
// duplicates.
func nodeSignature(node *html.Node) string {
	if node == nil {
		return ""
	}

	var sig strings.Builder

	sig.WriteString(fmt.Sprintf("type:%d|tag:%s|", node.Type, node.Data))

	for i, attr := range node.Attr {
		if i > 0 {
			sig.WriteString(",")
		}
		sig.WriteString(fmt.Sprintf("%s=%s", attr.Key, attr.Val))
	}
	sig.WriteString("|")

	sig.WriteString(fmt.Sprintf("content:%d", nodeContentHash(node)))

	return sig.String()
}

// nodeContentHash hashes the subtree rooted at node, tags, attributes
// and trimmed text included.
func nodeContentHash(node *html.Node) uint64 {
	h := fnv.New64a()

	if node.Type == html.ElementNode {
		h.Write([]byte(node.Data))
		for _, attr := range node.Attr {
			h.Write([]byte(attr.Key))
			h.Write([]byte(attr.Val))
		}
	} else if node.Type == html.TextNode {
		h.Write([]byte(strings.TrimSpace(node.Data)))
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		childHash := nodeContentHash(child)
		h.Write([]byte(fmt.Sprintf("%d", childHash)))
	}

	return h.Sum64()
}

// nodesAreEqual compares two subtrees structurally. Text nodes compare
// on trimmed content, elements on tag plus attribute set.
func nodesAreEqual(a, b *html.Node) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Type != b.Type {
		return false
	}

	if a.Type == html.ElementNode {
		if a.Data != b.Data {
			return false
		}

		if len(a.Attr) != len(b.Attr) {
			return false
		}

		attrMapA := make(map[string]string)
		for _, attr := range a.Attr {
			attrMapA[attr.Key] = attr.Val
		}

		for _, attr := range b.Attr {
			if attrMapA[attr.Key] != attr.Val {
				return false
			}
		}
	}

	if a.Type == html.TextNode {
		return strings.TrimSpace(a.Data) == strings.TrimSpace(b.Data)
	}

	childA := a.FirstChild
	childB := b.FirstChild

	for childA != nil && childB != nil {
		if !nodesAreEqual(childA, childB) {
			return false
		}
		childA = childA.NextSibling
		childB = childB.NextSibling
	}

	return childA == nil && childB == nil
}

// isMeaningfulElement reports whether a tag takes part in duplicate
// removal. Headings and the semantic landmark elements never do; they
// anchor the document structure.
func isMeaningfulElement(tag string) bool {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return false
	}

	switch tag {
	case "main", "article", "header", "footer", "nav", "aside":
		return false
	default:
		return true
	}
}

// hasCompetingDocumentRoots reports whether more than one main element
// exists, or multiple sibling article elements share a parent. Either
// way the primary content root cannot be chosen.
func hasCompetingDocumentRoots(doc *goquery.Document) bool {
	articles := doc.Find("article")
	mains := doc.Find("main")

	if mains.Length() > 1 {
		return true
	}

	if articles.Length() > 1 {
		parentMap := make(map[uintptr]int)
		articles.Each(func(i int, s *goquery.Selection) {
			if node := s.Get(0); node != nil && node.Parent != nil {
				parentPtr := uintptr(unsafe.Pointer(node.Parent))
				parentMap[parentPtr]++
			}
		})

		for _, count := range parentMap {
			if count > 1 {
				return true
			}
		}
	}

	return false
}

// extractHeadings collects every h1-h6 element grouped by level.
func extractHeadings(doc *goquery.Document) []headingInfo {
	var headings []headingInfo

	for level := 1; level <= 6; level++ {
		tag := fmt.Sprintf("h%d", level)
		doc.Find(tag).Each(func(i int, s *goquery.Selection) {
			if node := s.Get(0); node != nil {
				headings = append(headings, headingInfo{
					level: level,
					node:  node,
					text:  s.Text(),
				})
			}
		})
	}

	return headings
}

// hasStructuralAnchors reports whether article, main or a populated
// section can stand in for headings as the document skeleton.
func hasStructuralAnchors(doc *goquery.Document) bool {
	if doc.Find("article").Length() > 0 {
		return true
	}
	if doc.Find("main").Length() > 0 {
		return true
	}
	sections := doc.Find("section")
	if sections.Length() > 0 {
		sections.Each(func(i int, s *goquery.Selection) {
			if s.Children().Length() > 0 {
				return
			}
		})
		return sections.Length() > 0
	}
	return false
}

// hasMultipleH1WithoutPrimaryRoot reports whether several h1 elements
// exist with no way to pick one as the document title: sibling h1s are
// always ambiguous, and two or more h1s each owning their own
// subsection hierarchy read as separate documents.
func hasMultipleH1WithoutPrimaryRoot(headings []headingInfo) bool {
	var h1s []headingInfo
	for _, h := range headings {
		if h.level == 1 {
			h1s = append(h1s, h)
		}
	}

	if len(h1s) <= 1 {
		return false
	}

	parentSet := make(map[uintptr]bool)
	for _, h1 := range h1s {
		if h1.node.Parent != nil {
			parentPtr := uintptr(unsafe.Pointer(h1.node.Parent))
			if parentSet[parentPtr] {
				return true
			}
			parentSet[parentPtr] = true
		}
	}

	substantialH1Count := 0
	for i, h1 := range h1s {
		sectionHeadings := 0
		nextH1Index := len(headings)
		if i+1 < len(h1s) {
			for j, h := range headings {
				if h.node == h1s[i+1].node {
					nextH1Index = j
					break
				}
			}
		}
		h1Index := 0
		for j, h := range headings {
			if h.node == h1.node {
				h1Index = j
				break
			}
		}
		for j := h1Index + 1; j < nextH1Index; j++ {
			if headings[j].level > 1 {
				sectionHeadings++
			}
		}
		if sectionHeadings >= 2 {
			substantialH1Count++
		}
	}
	return substantialH1Count >= 2
}

// hasImpliedMultipleDocuments reports whether the heading sequence
// splits into two or more h1-rooted sections that each carry their own
// hierarchy, which means the page concatenates several documents.
func hasImpliedMultipleDocuments(headings []headingInfo) bool {
	type documentSection struct {
		h1       *headingInfo
		headings []headingInfo
	}
	var sections []documentSection

	var currentSection *documentSection
	for i := range headings {
		h := &headings[i]
		if h.level == 1 {
			if currentSection != nil {
				sections = append(sections, *currentSection)
			}
			currentSection = &documentSection{
				h1:       h,
				headings: []headingInfo{},
			}
		} else if currentSection != nil {
			currentSection.headings = append(currentSection.headings, *h)
		}
	}
	if currentSection != nil {
		sections = append(sections, *currentSection)
	}

	if len(sections) < 2 {
		return false
	}

	completeDocumentCount := 0
	for _, section := range sections {
		if len(section.headings) < 2 {
			continue
		}
		hasHierarchy := false
		prevLevel := 0
		for _, h := range section.headings {
			if prevLevel > 0 && h.level >= prevLevel {
				hasHierarchy = true
				break
			}
			prevLevel = h.level
		}
		if hasHierarchy || len(section.headings) >= 3 {
			completeDocumentCount++
		}
	}
	return completeDocumentCount >= 2
}

// hasStructurallyAmbiguousDOM reports whether the heading sequence
// oscillates without a consistent hierarchy, or semantic containers
// nest so deeply that reading contexts overlap.
func hasStructurallyAmbiguousDOM(headings []headingInfo, doc *goquery.Document) bool {
	if len(headings) > 0 {
		minLevel := 7
		for _, h := range headings {
			if h.level < minLevel {
				minLevel = h.level
			}
		}

		// Pages starting below h1 can still be valid, API references
		// often open at h2. The hierarchy just has to stay consistent.
		if minLevel > 1 {
			prevLevel := minLevel
			for i, h := range headings {
				if i == 0 {
					continue
				}
				if h.level < prevLevel-1 {
					if i >= 2 {
						prevPrevLevel := headings[i-2].level
						if prevPrevLevel == h.level {
							// h2 -> h4 -> h2 oscillation
							return true
						}
					}
				}
				prevLevel = h.level
			}
		}
	}

	conflictingStructures := 0
	doc.Find("article, section").Each(func(i int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}

		depth := 0
		parent := node.Parent
		for parent != nil {
			if parent.Data == "article" || parent.Data == "section" {
				depth++
			}
			parent = parent.Parent
		}

		if depth > 3 {
			conflictingStructures++
		}
	})

	return conflictingStructures > 2
}

// isRepairable decides whether the DOM can be normalized into a single
// coherent document. The checks run from cheapest to most detailed and
// the first violation wins. goquery is only a traversal convenience
// here, html.Node stays the canonical representation and no CSS or
// semantic inference happens.
func isRepairable(doc *html.Node) RepairableResult {
	docQuery := goquery.NewDocumentFromNode(doc)

	if hasCompetingDocumentRoots(docQuery) {
		return RepairableResult{Repairable: false, Reason: ReasonCompetingRoots}
	}

	headings := extractHeadings(docQuery)

	if len(headings) == 0 && !hasStructuralAnchors(docQuery) {
		return RepairableResult{Repairable: false, Reason: ReasonNoStructuralAnchor}
	}

	if hasMultipleH1WithoutPrimaryRoot(headings) {
		return RepairableResult{Repairable: false, Reason: ReasonMultipleH1NoRoot}
	}

	if hasImpliedMultipleDocuments(headings) {
		return RepairableResult{Repairable: false, Reason: ReasonImpliedMultipleDocs}
	}

	if hasStructurallyAmbiguousDOM(headings, docQuery) {
		return RepairableResult{Repairable: false, Reason: ReasonAmbiguousDOM}
	}

	return RepairableResult{Repairable: true, Reason: ""}
}

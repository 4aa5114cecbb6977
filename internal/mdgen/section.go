package mdgen

import (
	"fmt"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rohmanhakim/site-archiver/internal/record"
)

// renderSectionBody converts one record's harvested HTML into Markdown
// through the sanitize-and-convert pipeline. Records whose HTML cannot
// be sanitized or converted degrade to their text content; nothing
// here is fatal to the artifact.
func (g *MarkdownGenerator) renderSectionBody(rec record.PageRecord) []byte {
	body := parseRecordBody(rec.Content)
	if body != nil {
		if doc, err := g.htmlSanitizer.Sanitize(body); err == nil {
			if result, convErr := g.rule.Convert(doc); convErr == nil {
				if md := strings.TrimSpace(string(result.GetMarkdownContent())); md != "" {
					return []byte(md)
				}
			}
		}
	}
	return []byte(strings.TrimSpace(rec.TextContent))
}

// parseRecordBody parses harvested HTML and returns the body element,
// or nil when nothing parseable remains.
func parseRecordBody(content string) *html.Node {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	return findElement(root, atom.Body)
}

func findElement(node *html.Node, a atom.Atom) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == a {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

// sectionTitle prefers the harvested page title, then the first
// heading of the converted body, then the page URL.
func sectionTitle(rec record.PageRecord, body []byte) string {
	if title := strings.TrimSpace(rec.Title); title != "" {
		return title
	}
	if heading := firstHeadingTitle(body); heading != "" {
		return heading
	}
	return rec.URL
}

// firstHeadingTitle extracts the text of the first heading in a
// Markdown document.
func firstHeadingTitle(md []byte) string {
	doc := parser.New().Parse(md)
	var title string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if _, ok := node.(*ast.Heading); ok {
			title = headingText(node)
			return ast.Terminate
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(title)
}

func headingText(heading ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(heading, func(node ast.Node, entering bool) ast.WalkStatus {
		if entering {
			if text, ok := node.(*ast.Text); ok {
				sb.Write(text.Literal)
			}
		}
		return ast.GoToNext
	})
	return sb.String()
}

// slugify lowercases, strips punctuation, and joins words with
// hyphens, matching the anchor a Markdown renderer derives from a
// heading.
func slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(sb.String(), "-")
}

// slugTable deduplicates slugs across a document by suffixing repeats
// with -2, -3 and so on.
type slugTable map[string]int

func (s slugTable) claim(title string) string {
	slug := slugify(title)
	if slug == "" {
		slug = "page"
	}
	s[slug]++
	if s[slug] > 1 {
		return fmt.Sprintf("%s-%d", slug, s[slug])
	}
	return slug
}

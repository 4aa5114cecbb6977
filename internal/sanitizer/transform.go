package sanitizer

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// noiseElements carry no document content. They are dropped outright so
// rendering and conversion never depend on them.
var noiseElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
}

// removeNoiseNodes drops script/style style elements and comments.
func removeNoiseNodes(root *html.Node) {
	if root == nil {
		return
	}

	var children []*html.Node
	for child := root.FirstChild; child != nil; child = child.NextSibling {
		children = append(children, child)
	}

	for _, child := range children {
		if child.Type == html.CommentNode ||
			(child.Type == html.ElementNode && noiseElements[child.Data]) {
			root.RemoveChild(child)
			continue
		}
		removeNoiseNodes(child)
	}
}

// normalizeHeadingLevels renumbers headings so each level rises by at
// most one relative to the previous heading in document order. The
// first heading keeps its level; documents legitimately starting at h2
// or h3 stay that way. Downward jumps (closing a section) are left
// untouched.
func normalizeHeadingLevels(root *html.Node) {
	lastLevel := 0

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				if lastLevel > 0 && level > lastLevel+1 {
					level = lastLevel + 1
					n.Data = headingTag(level)
				}
				lastLevel = level
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func headingTag(level int) string {
	return string([]byte{'h', byte('0' + level)})
}

// extractURLs collects candidate links from every anchor in document
// order. Absolute http(s) URLs and relative references are kept as
// written; resolution against the page URL is the caller's concern.
// Fragment-only anchors and non-web schemes are skipped, and repeats
// collapse to the first occurrence.
func extractURLs(root *html.Node) []url.URL {
	var urls []url.URL
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attrValue(n, "href"); ok {
				if parsed := parseCandidateURL(href); parsed != nil {
					key := parsed.String()
					if !seen[key] {
						seen[key] = true
						urls = append(urls, *parsed)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
	return urls
}

func parseCandidateURL(href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return nil
	}
	switch parsed.Scheme {
	case "", "http", "https":
	default:
		return nil
	}
	if parsed.Scheme == "" && parsed.Host == "" && parsed.Path == "" && parsed.RawQuery == "" {
		return nil
	}
	return parsed
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// ResolveRelativeURLs rewrites relative href and src attributes against
// the page's final URL so the tree can be rendered outside its origin.
func ResolveRelativeURLs(root *html.Node, base url.URL) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode {
			for i, attr := range n.Attr {
				if attr.Key != "href" && attr.Key != "src" {
					continue
				}
				val := strings.TrimSpace(attr.Val)
				if val == "" || strings.HasPrefix(val, "#") || strings.HasPrefix(val, "data:") {
					continue
				}
				parsed, err := url.Parse(val)
				if err != nil || parsed.IsAbs() {
					continue
				}
				n.Attr[i].Val = base.ResolveReference(parsed).String()
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)
}

// ReplaceImagesWithPlaceholders swaps every img element for a text
// placeholder. The description falls back through alt text, title and a
// cleaned-up filename before giving up.
func ReplaceImagesWithPlaceholders(root *html.Node) {
	var images []*html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n == nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "img" {
			images = append(images, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, img := range images {
		parent := img.Parent
		if parent == nil {
			continue
		}
		placeholder := &html.Node{
			Type: html.TextNode,
			Data: imagePlaceholderText(img),
		}
		parent.InsertBefore(placeholder, img)
		parent.RemoveChild(img)
	}
}

func imagePlaceholderText(img *html.Node) string {
	if alt, ok := attrValue(img, "alt"); ok {
		if alt = strings.TrimSpace(alt); alt != "" {
			return "[Image: " + alt + "]"
		}
	}
	if title, ok := attrValue(img, "title"); ok {
		if title = strings.TrimSpace(title); title != "" {
			return "[Image: " + title + "]"
		}
	}
	if src, ok := attrValue(img, "src"); ok {
		if name := cleanedImageName(src); name != "" {
			return "[Image: " + name + "]"
		}
	}
	return "[image removed]"
}

// cleanedImageName derives a readable description from the file name in
// an image URL. Names without any letters (hashes, ids) yield nothing.
func cleanedImageName(src string) string {
	parsed, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	name := path.Base(parsed.Path)
	if ext := path.Ext(name); ext != "" {
		name = strings.TrimSuffix(name, ext)
	}
	name = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")

	hasLetter := strings.ContainsFunc(name, unicode.IsLetter)
	if !hasLetter {
		return ""
	}
	return name
}

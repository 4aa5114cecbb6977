package extractor

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rohmanhakim/site-archiver/internal/classifier"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/internal/sanitizer"
)

// menuSelectors match site chrome by element, role and naming
// convention. Applied inside the selected content only; the harvest
// pass has already seen the full document.
var menuSelectors = []string{
	"nav",
	"[role='navigation']",
	"[class*='menu']", "[id*='menu']",
	"[class*='nav']", "[id*='nav']",
	"[class*='sidebar']", "[id*='sidebar']",
	"[class*='header']", "[id*='header']",
	"[class*='footer']", "[id*='footer']",
	"[class*='breadcrumb']", "[id*='breadcrumb']",
}

// ExtractPage runs the full per-page extraction: container selection,
// link harvest, head metadata, menu stripping, image inventory, word
// count and classification. It never fails: when the document cannot be
// parsed or holds no content, a stub record flagged parse-error comes
// back so the page still counts against the crawl.
func (d *DomExtractor) ExtractPage(
	sourceUrl url.URL,
	finalURL url.URL,
	htmlByte []byte,
	param ExtractParam,
) (record.PageRecord, []url.URL) {
	rec := record.PageRecord{
		URL:       sourceUrl.String(),
		FinalURL:  finalURL.String(),
		Timestamp: time.Now(),
	}

	result, err := d.extract(htmlByte, param.customSelectors)
	if err != nil {
		d.recordExtractionError("DomExtractor.ExtractPage", sourceUrl, err)
		rec.AddFlag(record.FlagParseError)
		return rec, nil
	}

	gqDoc := goquery.NewDocumentFromNode(result.DocumentRoot)
	content := selectionOf(result.ContentNode)

	// Harvest before strip: menu links still feed discovery
	links := harvestLinks(gqDoc, finalURL)
	rec.Links = make([]string, 0, len(links))
	for _, link := range links {
		rec.Links = append(rec.Links, link.String())
	}

	rec.Title = pageTitle(gqDoc, content)
	rec.Metadata = headMetadata(gqDoc)

	if !param.includeMenus {
		d.stripMenus(content)
	}

	// remove_images trades the inventory for inline placeholders: the
	// record keeps no descriptors, so nothing gets downloaded either.
	if param.removeImages {
		sanitizer.ReplaceImagesWithPlaceholders(result.ContentNode)
	} else {
		rec.Images = imageDescriptors(content, finalURL)
	}

	if contentHTML, herr := goquery.OuterHtml(content); herr == nil {
		rec.Content = contentHTML
	}
	rec.TextContent = normalizeWhitespace(content.Text())
	rec.WordCount = len(strings.Fields(rec.TextContent))

	stats := collectStats(result.ContentNode)
	structure := classifier.PageStructure{
		WordCount:  rec.WordCount,
		Headings:   stats.headings,
		Paragraphs: stats.paragraphs,
		ListItems:  stats.listItems,
		Images:     stats.images,
		Links:      stats.links,
		TextLength: stats.textLength,
		LinkText:   stats.linkTextLength,
	}
	rec.ContentType = string(classifier.Classify(finalURL, structure))

	quality := classifier.QualityScore(structure)
	if rec.WordCount < param.minContentLength || classifier.Level(quality) == classifier.QualityLow {
		rec.AddFlag(record.FlagLowQuality)
	}

	return rec, links
}

func selectionOf(node *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(node).Selection
}

// positionalSelectors match chrome by placement naming: themes that
// skip the semantic elements still class their sidebars by position.
// Tried after the structural pass.
var positionalSelectors = []string{
	"[class*='top-bar']", "[id*='top-bar']",
	"[class*='topbar']", "[id*='topbar']",
	"[class*='left-sidebar']", "[id*='left-sidebar']",
	"[class*='sidebar-left']", "[id*='sidebar-left']",
	"[class*='right-sidebar']", "[id*='right-sidebar']",
	"[class*='sidebar-right']", "[id*='sidebar-right']",
	"[class*='bottom-bar']", "[id*='bottom-bar']",
}

// stripMenus removes chrome by structural selector, then drops
// link-dominated blocks (mostly link text with enough links to look
// like a menu), then sweeps position-named containers.
func (d *DomExtractor) stripMenus(content *goquery.Selection) {
	for _, selector := range menuSelectors {
		content.Find(selector).Remove()
	}

	content.Find("div, ul, aside, section").Each(func(_ int, sel *goquery.Selection) {
		if len(sel.Nodes) == 0 {
			return
		}
		stats := collectStats(sel.Nodes[0])
		if stats.links <= d.tuning.menuLinkCountThreshold || stats.textLength == 0 {
			return
		}
		nonLinkRatio := float64(stats.textLength-stats.linkTextLength) / float64(stats.textLength)
		if nonLinkRatio < d.tuning.linkDensityThreshold {
			sel.Remove()
		}
	})

	for _, selector := range positionalSelectors {
		content.Find(selector).Remove()
	}
}

func harvestLinks(gqDoc *goquery.Document, base url.URL) []url.URL {
	var links []url.URL
	seen := make(map[string]struct{})

	gqDoc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		key := resolved.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, *resolved)
	})

	return links
}

func pageTitle(gqDoc *goquery.Document, content *goquery.Selection) string {
	if title := strings.TrimSpace(gqDoc.Find("title").First().Text()); title != "" {
		return title
	}
	if og, ok := gqDoc.Find("meta[property='og:title']").First().Attr("content"); ok {
		if title := strings.TrimSpace(og); title != "" {
			return title
		}
	}
	return strings.TrimSpace(content.Find("h1").First().Text())
}

func headMetadata(gqDoc *goquery.Document) record.PageMetadata {
	meta := record.PageMetadata{}

	if desc, ok := gqDoc.Find("meta[name='description']").First().Attr("content"); ok {
		meta.Description = strings.TrimSpace(desc)
	}
	if author, ok := gqDoc.Find("meta[name='author']").First().Attr("content"); ok {
		meta.Author = strings.TrimSpace(author)
	}
	if keywords, ok := gqDoc.Find("meta[name='keywords']").First().Attr("content"); ok {
		for _, keyword := range strings.Split(keywords, ",") {
			if trimmed := strings.TrimSpace(keyword); trimmed != "" {
				meta.Keywords = append(meta.Keywords, trimmed)
			}
		}
	}

	return meta
}

func imageDescriptors(content *goquery.Selection, base url.URL) []record.ImageDescriptor {
	var images []record.ImageDescriptor

	content.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}
		parsed, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)

		descriptor := record.ImageDescriptor{
			Src: resolved.String(),
		}
		if alt, ok := sel.Attr("alt"); ok {
			descriptor.Alt = strings.TrimSpace(alt)
		}
		if title, ok := sel.Attr("title"); ok {
			descriptor.Title = strings.TrimSpace(title)
		}
		if figure := sel.Closest("figure"); figure.Length() > 0 {
			descriptor.Caption = strings.TrimSpace(figure.Find("figcaption").First().Text())
		}

		images = append(images, descriptor)
	})

	return images
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

package extractor

// KnownContentSelectors maps site generators to the container selectors
// their themes use for primary content. Checked as the second layer of
// the content heuristic, after semantic containers fail.
//
//nolint:gochecknoglobals // static lookup table
var KnownContentSelectors = map[string][]string{
	"generic": {
		".content",
		".doc-content",
		".markdown-body",
		"#docs-content",
		".rst-content",
		".theme-doc-markdown",
		".md-content",
		".post-content",
		".entry-content",
		".article-content",
	},
	"docusaurus": {
		".theme-doc-markdown",
		".docMainContainer",
	},
	"gitbook": {
		".book-body",
		".markdown-section",
	},
	"mkdocs": {
		".md-content",
		".md-main__inner",
	},
	"sphinx": {
		".rst-content",
		".document",
	},
	"vuepress": {
		".theme-default-content",
		".content__default",
	},
	"docsify": {
		"#main",
		".content",
	},
	"wordpress": {
		".entry-content",
		".post-content",
		"article .content",
	},
	"ghost": {
		".gh-content",
		".post-full-content",
	},
	"hexo": {
		".post-content",
		".article-content",
	},
	"jekyll": {
		".post-content",
		".entry-content",
	},
}

// generatorOrder fixes the probe order. Generic selectors first, then
// generators roughly by how often their themes keep these class names.
var generatorOrder = []string{
	"generic",
	"docusaurus",
	"sphinx",
	"mkdocs",
	"gitbook",
	"vuepress",
	"docsify",
	"wordpress",
	"ghost",
	"hexo",
	"jekyll",
}

// getAllSelectors flattens the table in probe order, deduplicated.
func getAllSelectors() []string {
	var allSelectors []string
	seen := make(map[string]bool)

	for _, generator := range generatorOrder {
		for _, selector := range KnownContentSelectors[generator] {
			if !seen[selector] {
				seen[selector] = true
				allSelectors = append(allSelectors, selector)
			}
		}
	}

	return allSelectors
}

// mergeSelectors appends user-provided custom selectors after the
// defaults, deduplicated. Defaults keep priority.
func mergeSelectors(defaultSelectors, customSelectors []string) []string {
	seen := make(map[string]bool)
	var merged []string

	for _, selector := range defaultSelectors {
		if !seen[selector] {
			seen[selector] = true
			merged = append(merged, selector)
		}
	}
	for _, selector := range customSelectors {
		if !seen[selector] {
			seen[selector] = true
			merged = append(merged, selector)
		}
	}

	return merged
}

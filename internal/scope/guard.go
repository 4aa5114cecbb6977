package scope

import (
	"net/url"
	"strings"

	"github.com/rohmanhakim/site-archiver/internal/config"
)

/*
Scope Guard Responsibilities
- Decide whether a candidate URL belongs to the owner-scoped subgraph
- Enforce same-host policy and path scoping toggles
- Reject administrative and machinery URLs outright
- Knows nothing about:
	- robots.txt
	- crawl depth or page limits
	- fetching

Evaluate is a pure function of (SeedContext, config, candidate); it keeps
no state and may be called from property tests without setup.
*/

// technicalPathPatterns match administrative or machinery endpoints that
// are never worth archiving, regardless of scope toggles.
var technicalPathPatterns = []string{
	"/wp-admin/",
	"/admin/",
	"/login",
	"/logout",
	"/signin",
	"/signup",
	"/register",
	"/auth/",
	"/api/",
	"/xmlrpc",
	"/feed/",
	"/rss",
	"/cart/",
	"/checkout/",
	"/account/",
}

// blockedExtensions are static-asset suffixes outside the image set.
// Image extensions stay admissible because the asset pipeline handles
// them separately.
var blockedExtensions = []string{
	".css", ".js", ".json", ".xml",
	".zip", ".exe", ".dmg", ".pkg", ".tar", ".gz",
	".mp4", ".mp3", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".woff", ".woff2", ".ttf", ".eot", ".ico",
	".pdf",
}

type Guard struct {
	seed SeedContext
	cfg  config.Config
}

func NewGuard(seed SeedContext, cfg config.Config) Guard {
	return Guard{
		seed: seed,
		cfg:  cfg,
	}
}

func (g *Guard) Seed() SeedContext {
	return g.seed
}

// Evaluate returns the scope verdict for a canonicalized candidate URL.
// Tie-breaks: blocked-technical wins over any allow; homepage-allowed is
// only possible for path "/".
func (g *Guard) Evaluate(cand url.URL) Verdict {
	if cand.Scheme != "http" && cand.Scheme != "https" {
		return VerdictBlockedTechnical
	}

	if isTechnicalPath(cand.Path) {
		return VerdictBlockedTechnical
	}

	if g.cfg.SameHostOnly() && !g.seed.HostAllowed(cand.Host) {
		return VerdictOutOfScope
	}

	if !g.cfg.PathScopingEnabled() {
		return VerdictInScope
	}

	candPath := normalizeDirPath(cand.Path)
	seedPath := g.seed.seedPath

	if isDescendant(candPath, seedPath) {
		return VerdictInScope
	}

	if candPath == "/" {
		if g.cfg.AllowHomepage() {
			return VerdictHomepageAllowed
		}
		return VerdictOutOfScope
	}

	if g.cfg.AllowParentLevels() > 0 && isAncestorWithin(candPath, seedPath, g.cfg.AllowParentLevels()) {
		return VerdictParentAllowed
	}

	if g.cfg.AllowSiblings() && isSibling(candPath, seedPath) {
		return VerdictSiblingAllowed
	}

	return VerdictOutOfScope
}

func isTechnicalPath(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range technicalPathPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
		// A pattern ending without a slash also matches a path that
		// terminates exactly there, e.g. "/login" matches "/de/login".
		if !strings.HasSuffix(pattern, "/") && strings.HasSuffix(lower, pattern) {
			return true
		}
	}
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// normalizeDirPath maps a URL path to its scope directory: empty becomes
// "/", a path with a file-looking last segment keeps it, and trailing
// slashes are stripped except for root.
func normalizeDirPath(path string) string {
	if path == "" {
		return "/"
	}
	for len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// isDescendant reports whether cand equals seed or lives underneath it.
func isDescendant(cand, seed string) bool {
	if seed == "/" {
		return true
	}
	if cand == seed {
		return true
	}
	return strings.HasPrefix(cand, seed+"/")
}

// isAncestorWithin reports whether cand is an ancestor of seed at most
// maxLevels above it. "/a/b" is 1 level above "/a/b/c".
func isAncestorWithin(cand, seed string, maxLevels int) bool {
	if seed == "/" || cand == "/" {
		return false
	}
	current := seed
	for level := 1; level <= maxLevels; level++ {
		idx := strings.LastIndexByte(current, '/')
		if idx <= 0 {
			return false
		}
		current = current[:idx]
		if current == "" {
			current = "/"
		}
		if cand == current {
			return true
		}
		if current == "/" {
			return false
		}
	}
	return false
}

// isSibling reports whether cand shares seed's immediate parent, or is a
// descendant of such a sibling.
func isSibling(cand, seed string) bool {
	if seed == "/" {
		return false
	}
	idx := strings.LastIndexByte(seed, '/')
	if idx < 0 {
		return false
	}
	parent := seed[:idx]
	if parent == "" {
		parent = "/"
	}
	return isDescendant(cand, parent)
}

package scope

import "net/url"

// Scope verdicts

// Verdict classifies a candidate URL against the seed context. Exactly
// one verdict applies per candidate; blocked-technical wins over every
// allow verdict.
type Verdict string

const (
	VerdictInScope          Verdict = "in-scope"
	VerdictOutOfScope       Verdict = "out-of-scope"
	VerdictHomepageAllowed  Verdict = "homepage-allowed"
	VerdictParentAllowed    Verdict = "parent-allowed"
	VerdictSiblingAllowed   Verdict = "sibling-allowed"
	VerdictBlockedTechnical Verdict = "blocked-technical"
)

// Admissible reports whether the verdict lets the URL into the crawl.
func (v Verdict) Admissible() bool {
	switch v {
	case VerdictInScope, VerdictHomepageAllowed, VerdictParentAllowed, VerdictSiblingAllowed:
		return true
	default:
		return false
	}
}

// SeedContext pins the scope policy for one session. It is built once at
// crawl start and never mutated.
type SeedContext struct {
	baseURL      url.URL
	allowedHosts map[string]struct{}
	seedPath     string
}

// NewSeedContext derives the seed context from a canonicalized seed URL.
// allowedHosts must contain at least the seed host.
func NewSeedContext(baseURL url.URL, allowedHosts map[string]struct{}) SeedContext {
	hosts := make(map[string]struct{}, len(allowedHosts))
	for h := range allowedHosts {
		hosts[h] = struct{}{}
	}
	if len(hosts) == 0 {
		hosts[baseURL.Host] = struct{}{}
	}
	return SeedContext{
		baseURL:      baseURL,
		allowedHosts: hosts,
		seedPath:     normalizeDirPath(baseURL.Path),
	}
}

func (s SeedContext) BaseURL() url.URL {
	return s.baseURL
}

func (s SeedContext) SeedPath() string {
	return s.seedPath
}

func (s SeedContext) HostAllowed(host string) bool {
	_, ok := s.allowedHosts[host]
	return ok
}

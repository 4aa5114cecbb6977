package robots

import (
	"strings"
	"time"
)

// RobotsResponse is the parsed shape of one robots.txt document. It is
// a parse artifact only; decisions run against the ruleSet mapped from
// it.
type RobotsResponse struct {
	// The host this robots.txt applies to
	Host string

	// Sitemap URLs listed in the file
	Sitemaps []string

	// User agent groups, each carrying the rules for its agents
	UserAgents []UserAgentGroup
}

// UserAgentGroup holds the rules one or more user agents share.
type UserAgentGroup struct {
	UserAgents []string

	// Paths that may be crawled
	Allows []PathRule

	// Paths that may not be crawled
	Disallows []PathRule

	CrawlDelay *time.Duration
}

// PathRule is a single allow or disallow pattern. Patterns may use the
// * and $ wildcards.
type PathRule struct {
	Path string
}

// IsEmpty reports whether the response carries no rules and no
// sitemaps.
func (r RobotsResponse) IsEmpty() bool {
	if len(r.Sitemaps) > 0 {
		return false
	}
	for _, group := range r.UserAgents {
		if len(group.Allows) > 0 || len(group.Disallows) > 0 {
			return false
		}
	}
	return true
}

// GetGroupForUserAgent picks the most specific group for the given
// agent: exact match first, then longest token prefix, then the *
// group. Matching is case-insensitive. Returns nil when nothing
// matches.
func (r RobotsResponse) GetGroupForUserAgent(userAgent string) *UserAgentGroup {
	userAgentLower := strings.ToLower(userAgent)

	for i, group := range r.UserAgents {
		for _, ua := range group.UserAgents {
			if strings.ToLower(ua) == userAgentLower {
				return &r.UserAgents[i]
			}
		}
	}

	var bestMatch *UserAgentGroup
	bestMatchLength := 0
	for i, group := range r.UserAgents {
		for _, ua := range group.UserAgents {
			if ua == "*" {
				if bestMatch == nil {
					bestMatch = &r.UserAgents[i]
				}
				continue
			}
			uaLower := strings.ToLower(ua)
			if strings.HasPrefix(userAgentLower, uaLower) && len(uaLower) > bestMatchLength {
				bestMatch = &r.UserAgents[i]
				bestMatchLength = len(uaLower)
			}
		}
	}

	return bestMatch
}

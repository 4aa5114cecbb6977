package robots

import (
	"strings"
	"time"
)

// MapResponseToRuleSet projects a parsed RobotsResponse onto the
// immutable ruleSet the decision path evaluates. Only the most specific
// group for the target user agent survives the mapping.
func MapResponseToRuleSet(response RobotsResponse, targetUserAgent string, fetchedAt time.Time) ruleSet {
	rs := ruleSet{
		host:      response.Host,
		userAgent: targetUserAgent,
		fetchedAt: fetchedAt,
		sourceURL: "https://" + response.Host + "/robots.txt",
	}

	rs.hasGroups = len(response.UserAgents) > 0

	group := findBestMatchingGroup(response.UserAgents, targetUserAgent)
	if group == nil {
		return rs
	}
	rs.matchedGroup = true

	rs.allowRules = make([]pathRule, 0, len(group.Allows))
	for _, allow := range group.Allows {
		if allow.Path != "" {
			rs.allowRules = append(rs.allowRules, pathRule{
				prefix: normalizePath(allow.Path),
			})
		}
	}

	rs.disallowRules = make([]pathRule, 0, len(group.Disallows))
	for _, disallow := range group.Disallows {
		if disallow.Path != "" {
			rs.disallowRules = append(rs.disallowRules, pathRule{
				prefix: normalizePath(disallow.Path),
			})
		}
	}

	if group.CrawlDelay != nil {
		delay := *group.CrawlDelay
		rs.crawlDelay = &delay
	}

	return rs
}

// findBestMatchingGroup applies the robots.txt precedence order:
// exact match beats longest prefix match beats the * group.
func findBestMatchingGroup(groups []UserAgentGroup, targetUserAgent string) *UserAgentGroup {
	var bestMatch *UserAgentGroup
	targetLower := strings.ToLower(targetUserAgent)
	bestMatchLength := 0

	for i := range groups {
		group := &groups[i]
		for _, ua := range group.UserAgents {
			uaLower := strings.ToLower(ua)

			if uaLower == targetLower {
				return group
			}
			if ua == "*" {
				if bestMatch == nil {
					bestMatch = group
				}
				continue
			}
			// "Googlebot" matches "Googlebot-Image"
			if strings.HasPrefix(targetLower, uaLower) && len(uaLower) > bestMatchLength {
				bestMatch = group
				bestMatchLength = len(uaLower)
			}
		}
	}

	return bestMatch
}

// normalizePath roots the pattern. An empty pattern means the whole
// host.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// ruleSet getters. Slices and the delay are copied so callers cannot
// mutate cached rules.

func (r ruleSet) Host() string {
	return r.host
}

func (r ruleSet) UserAgent() string {
	return r.userAgent
}

func (r ruleSet) FetchedAt() time.Time {
	return r.fetchedAt
}

func (r ruleSet) SourceURL() string {
	return r.sourceURL
}

func (r ruleSet) CrawlDelay() *time.Duration {
	if r.crawlDelay == nil {
		return nil
	}
	delay := *r.crawlDelay
	return &delay
}

func (r ruleSet) AllowRules() []pathRule {
	result := make([]pathRule, len(r.allowRules))
	copy(result, r.allowRules)
	return result
}

func (r ruleSet) DisallowRules() []pathRule {
	result := make([]pathRule, len(r.disallowRules))
	copy(result, r.disallowRules)
	return result
}

func (p pathRule) Prefix() string {
	return p.prefix
}

package robots

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt once per host and reuse it for the crawl duration
- Enforce allow/disallow rules before a URL enters the frontier
- Surface crawl-delay so the pacer can honor it
- Knows nothing about:
	- frontier ordering
	- page fetching
	- session state

Robots checks occur at admission time, before enqueue. Fetch failures on
the 5xx path surface as errors; a missing robots.txt (4xx) is permissive.
*/

// CachedRobot answers robots.txt admission questions. The zero value is
// unusable; call Init or InitWithCache before Decide.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	userAgent    string
}

func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		metadataSink: metadataSink,
	}
}

// Init wires the robot with a per-session in-memory cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache wires the robot with a caller-provided cache, letting
// sessions share robots state or tests observe it.
func (r *CachedRobot) InitWithCache(userAgent string, robotsCache cache.Cache) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, robotsCache)
}

// SetTTL bounds how long a fetched robots.txt stays fresh. Stale entries
// are refetched lazily on the next Decide for that host.
func (r *CachedRobot) SetTTL(ttl time.Duration) {
	if r.fetcher != nil {
		r.fetcher.SetTTL(ttl)
	}
}

// Decide reports whether the given URL may be crawled according to the
// host's robots.txt. The rule set is fetched at most once per host per
// TTL window.
func (r *CachedRobot) Decide(pageURL url.URL) (Decision, error) {
	if r.fetcher == nil {
		robotsError := &RobotsError{
			Message:   "Decide called before Init",
			Retryable: false,
			Cause:     ErrCauseNotInitialized,
		}
		r.recordError("CachedRobot.Decide", robotsError, pageURL)
		return Decision{}, robotsError
	}

	result, robotsError := r.fetcher.Fetch(context.Background(), pageURL.Scheme, pageURL.Host)
	if robotsError != nil {
		r.recordError("CachedRobot.Decide", robotsError, pageURL)
		return Decision{}, robotsError
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)
	return decide(rs, pageURL), nil
}

func (r *CachedRobot) recordError(action string, robotsError *RobotsError, pageURL url.URL) {
	r.metadataSink.RecordError(
		time.Now(),
		"robots",
		action,
		mapRobotsErrorToMetadataCause(robotsError),
		robotsError.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fmt.Sprintf("%v", pageURL.String())),
			metadata.NewAttr(metadata.AttrHost, pageURL.Host),
		},
	)
}

// decide applies the rule set to a URL path using longest-match
// precedence: the most specific matching pattern wins, and allow beats
// disallow on equal specificity.
func decide(rs ruleSet, pageURL url.URL) Decision {
	decision := Decision{
		Url:     pageURL,
		Allowed: true,
	}

	if !rs.hasGroups {
		decision.Reason = EmptyRuleSet
		return decision
	}
	if !rs.matchedGroup {
		decision.Reason = UserAgentNotMatched
		return decision
	}

	if delay := rs.CrawlDelay(); delay != nil {
		decision.CrawlDelay = *delay
	}

	path := pageURL.EscapedPath()
	if path == "" {
		path = "/"
	}

	allowLen := bestMatchLength(rs.allowRules, path)
	disallowLen := bestMatchLength(rs.disallowRules, path)

	switch {
	case allowLen < 0 && disallowLen < 0:
		decision.Reason = NoMatchingRules
	case disallowLen > allowLen:
		decision.Allowed = false
		decision.Reason = DisallowedByRobots
	default:
		decision.Reason = AllowedByRobots
	}
	return decision
}

// bestMatchLength returns the pattern length of the most specific rule
// matching path, or -1 when none matches.
func bestMatchLength(rules []pathRule, path string) int {
	best := -1
	for _, rule := range rules {
		if matchRule(rule.prefix, path) && len(rule.prefix) > best {
			best = len(rule.prefix)
		}
	}
	return best
}

// matchRule matches a robots.txt pattern against a URL path. "*" matches
// any run of characters; a trailing "$" anchors the pattern to the end
// of the path. Without "$" the pattern is a prefix match.
func matchRule(pattern, path string) bool {
	endAnchor := strings.HasSuffix(pattern, "$")
	if endAnchor {
		pattern = pattern[:len(pattern)-1]
	}

	parts := strings.Split(pattern, "*")
	last := len(parts) - 1
	pos := 0

	for i, part := range parts {
		switch {
		case i == 0:
			if !strings.HasPrefix(path, part) {
				return false
			}
			pos = len(part)
		case i == last && endAnchor:
			// Anchored tail must end exactly at the end of the path.
			if part == "" {
				return true
			}
			return strings.HasSuffix(path, part) && len(path)-len(part) >= pos
		default:
			idx := strings.Index(path[pos:], part)
			if idx < 0 {
				return false
			}
			pos += idx + len(part)
		}
	}

	if endAnchor {
		return pos == len(path)
	}
	return true
}

package admission

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/frontier"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/robots"
	"github.com/rohmanhakim/site-archiver/internal/scope"
	"github.com/rohmanhakim/site-archiver/pkg/urlutil"
)

/*
Admission Gate Responsibilities
- Sole authority on whether a discovered URL enters the frontier
- Apply checks in a fixed order so every rejection has one stable reason:
  limit, depth, duplicate, not-approved, excluded, scope, robots
- Canonicalize candidates so equivalent spellings share one fate
- Knows nothing about:
	- frontier ordering
	- fetching or pacing
	- session storage

The gate never mutates the frontier; it only consults its seen-set.
Robots is checked last because it is the only rule that may touch the
network.
*/

type Gate struct {
	cfg          config.Config
	guard        scope.Guard
	robot        *robots.CachedRobot
	crawlFront   *frontier.CrawlFrontier
	metadataSink metadata.MetadataSink
	excludes     []*regexp.Regexp
	approved     map[string]struct{}
	denied       map[string]struct{}
	trackingKeys map[string]struct{}
}

// NewGate compiles the exclude patterns and wires the gate. robot may
// be nil when robots enforcement is disabled by config.
func NewGate(
	cfg config.Config,
	guard scope.Guard,
	robot *robots.CachedRobot,
	crawlFront *frontier.CrawlFrontier,
	metadataSink metadata.MetadataSink,
) (*Gate, error) {
	excludes := make([]*regexp.Regexp, 0, len(cfg.ExcludePatterns()))
	for _, pattern := range cfg.ExcludePatterns() {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &AdmissionError{
				Message:   fmt.Sprintf("invalid exclude pattern %q: %v", pattern, err),
				Retryable: false,
				Cause:     ErrCauseInvalidExcludePattern,
			}
		}
		excludes = append(excludes, compiled)
	}

	return &Gate{
		cfg:          cfg,
		guard:        guard,
		robot:        robot,
		crawlFront:   crawlFront,
		metadataSink: metadataSink,
		excludes:     excludes,
		trackingKeys: cfg.TrackingKeySet(),
	}, nil
}

// SetApprovedURLs restricts admission to the given canonical URL set.
// A nil set disables the approval filter (the default).
func (g *Gate) SetApprovedURLs(approved map[string]struct{}) {
	g.approved = approved
}

// SetExcludedURLs rejects the given canonical URLs outright. Preview
// reviews pre-seed this deny set; it is checked alongside the exclude
// patterns.
func (g *Gate) SetExcludedURLs(denied map[string]struct{}) {
	g.denied = denied
}

// Admit evaluates a candidate against the full rule chain.
// pagesScraped is the caller's count of pages already archived this
// session; the gate itself keeps no counters.
func (g *Gate) Admit(candidate Candidate, pagesScraped int) Decision {
	canonical := urlutil.Canonicalize(candidate.targetURL, g.trackingKeys)

	decision := g.evaluate(candidate, canonical, pagesScraped)
	decision.CanonicalURL = canonical

	g.metadataSink.RecordDecision(
		"admission",
		canonical.String(),
		string(decision.Reason),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrDepth, strconv.Itoa(candidate.depth)),
			metadata.NewAttr(metadata.AttrReason, decision.Detail),
		},
	)
	return decision
}

func (g *Gate) evaluate(candidate Candidate, canonical url.URL, pagesScraped int) Decision {
	canonicalStr := canonical.String()

	if malformed, detail := g.isMalformed(candidate); malformed {
		return Decision{Reason: ReasonMalformed, Detail: detail}
	}

	if limit := g.cfg.MaxPages(); limit > 0 && pagesScraped >= limit {
		return Decision{
			Reason: ReasonPageLimit,
			Detail: fmt.Sprintf("page limit %d reached", limit),
		}
	}

	if maxDepth := g.cfg.MaxDepth(); maxDepth > 0 && candidate.depth > maxDepth {
		return Decision{
			Reason: ReasonDepthLimit,
			Detail: fmt.Sprintf("depth %d exceeds limit %d", candidate.depth, maxDepth),
		}
	}

	if g.crawlFront.Seen(canonicalStr) {
		return Decision{Reason: ReasonDuplicate, Detail: "already enqueued or visited"}
	}

	if g.approved != nil {
		if _, ok := g.approved[canonicalStr]; !ok {
			return Decision{Reason: ReasonNotApproved, Detail: "url not in approved set"}
		}
	}

	if _, ok := g.denied[canonicalStr]; ok {
		return Decision{Reason: ReasonExcluded, Detail: "url in excluded set"}
	}

	for _, pattern := range g.excludes {
		if pattern.MatchString(canonicalStr) {
			return Decision{
				Reason: ReasonExcluded,
				Detail: fmt.Sprintf("matches exclude pattern %q", pattern.String()),
			}
		}
	}

	verdict := g.guard.Evaluate(candidate.targetURL)
	if !verdict.Admissible() {
		return Decision{Reason: ReasonOutOfScope, Detail: string(verdict)}
	}

	decision := Decision{
		Admitted: true,
		Reason:   ReasonAdmitted,
		Detail:   string(verdict),
	}

	if g.robot != nil && g.cfg.RespectRobots() {
		robotsDecision, err := g.robot.Decide(candidate.targetURL)
		if err != nil {
			// Robots availability failures are permissive; the robot
			// already recorded the error.
			decision.Detail = "robots unavailable, admitted permissively"
			return decision
		}
		if !robotsDecision.Allowed {
			return Decision{
				Reason: ReasonRobotsDisallowed,
				Detail: string(robotsDecision.Reason),
			}
		}
		if robotsDecision.CrawlDelay > 0 {
			delay := robotsDecision.CrawlDelay
			decision.CrawlDelay = &delay
		}
	}

	return decision
}

func (g *Gate) isMalformed(candidate Candidate) (bool, string) {
	u := candidate.targetURL
	if u.Scheme != "http" && u.Scheme != "https" {
		return true, fmt.Sprintf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return true, "missing host"
	}
	if maxLen := g.cfg.MaxURLLength(); maxLen > 0 && len(u.String()) > maxLen {
		return true, fmt.Sprintf("url length %d exceeds %d", len(u.String()), maxLen)
	}
	return false, ""
}

package frontier

import (
	"net/url"
	"time"
)

// Crawl state & ordering

type SourceContext string

const (
	SourceSeed   SourceContext = "Seed"
	SourceCrawl  SourceContext = "Crawl"
	SourceResume SourceContext = "Resume"
)

// CrawlAdmissionCandidate represents a URL that has already been
// admitted by the scheduler.
//
// Invariants:
// - Robots.txt checks have passed
// - Crawl scope and limits have been enforced
// - Frontier MUST treat this as an admitted URL
// - Frontier MUST NOT re-evaluate admission semantics
type CrawlAdmissionCandidate struct {
	targetURL         url.URL // Frontier MUST assume this URL is already admitted.
	sourceContext     SourceContext
	discoveryMetadata DiscoveryMetadata
	priority          int
	referrer          string
}

func NewCrawlAdmissionCandidate(
	targetUrl url.URL,
	sourceContext SourceContext,
	discoveryMetadata DiscoveryMetadata,
) CrawlAdmissionCandidate {
	return CrawlAdmissionCandidate{
		targetURL:         targetUrl,
		sourceContext:     sourceContext,
		discoveryMetadata: discoveryMetadata,
	}
}

// WithPriority returns a copy of the candidate carrying a frontier
// priority. Higher priorities dequeue first.
func (c CrawlAdmissionCandidate) WithPriority(priority int) CrawlAdmissionCandidate {
	c.priority = priority
	return c
}

// WithReferrer returns a copy of the candidate recording the page that
// discovered it. Observability only.
func (c CrawlAdmissionCandidate) WithReferrer(referrer string) CrawlAdmissionCandidate {
	c.referrer = referrer
	return c
}

func (c CrawlAdmissionCandidate) TargetURL() url.URL {
	return c.targetURL
}

func (c CrawlAdmissionCandidate) SourceContext() SourceContext {
	return c.sourceContext
}

func (c CrawlAdmissionCandidate) DiscoveryMetadata() DiscoveryMetadata {
	return c.discoveryMetadata
}

func (c CrawlAdmissionCandidate) Priority() int {
	return c.priority
}

func (c CrawlAdmissionCandidate) Referrer() string {
	return c.referrer
}

// DiscoveryMetadata carries facts established at link-discovery time:
// how deep the URL sits and any robots crawl-delay override resolved
// for its host.
type DiscoveryMetadata struct {
	depth         int
	delayOverride *time.Duration
}

func NewDiscoveryMetadata(depth int, delayOverride *time.Duration) DiscoveryMetadata {
	return DiscoveryMetadata{
		depth:         depth,
		delayOverride: delayOverride,
	}
}

func (d DiscoveryMetadata) Depth() int {
	return d.depth
}

func (d DiscoveryMetadata) DelayOverride() *time.Duration {
	if d.delayOverride == nil {
		return nil
	}
	delay := *d.delayOverride
	return &delay
}

// CrawlToken is the unit the scheduler hands to the fetch pipeline. It
// is produced by Dequeue; holding a token means the URL passed
// admission and won frontier ordering.
type CrawlToken struct {
	url           url.URL
	depth         int
	priority      int
	referrer      string
	delayOverride *time.Duration
}

func NewCrawlToken(u url.URL, depth int) CrawlToken {
	return CrawlToken{
		url:   u,
		depth: depth,
	}
}

func (t CrawlToken) URL() url.URL {
	return t.url
}

func (t CrawlToken) Depth() int {
	return t.depth
}

func (t CrawlToken) Priority() int {
	return t.priority
}

func (t CrawlToken) Referrer() string {
	return t.referrer
}

func (t CrawlToken) DelayOverride() *time.Duration {
	if t.delayOverride == nil {
		return nil
	}
	delay := *t.delayOverride
	return &delay
}

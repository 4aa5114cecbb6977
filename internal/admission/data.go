package admission

import (
	"net/url"
	"time"
)

// Admission vocabulary

// Reason names the first rule that settled a candidate's fate. Exactly
// one reason applies per decision.
type Reason string

const (
	ReasonAdmitted         Reason = "admitted"
	ReasonMalformed        Reason = "malformed-url"
	ReasonPageLimit        Reason = "page-limit"
	ReasonDepthLimit       Reason = "depth-limit"
	ReasonDuplicate        Reason = "duplicate"
	ReasonNotApproved      Reason = "not-approved"
	ReasonExcluded         Reason = "excluded"
	ReasonOutOfScope       Reason = "out-of-scope"
	ReasonRobotsDisallowed Reason = "robots-disallowed"
)

// Candidate is a discovered URL offered to the gate, before
// canonicalization.
type Candidate struct {
	targetURL url.URL
	depth     int
	referrer  string
}

func NewCandidate(targetURL url.URL, depth int, referrer string) Candidate {
	return Candidate{
		targetURL: targetURL,
		depth:     depth,
		referrer:  referrer,
	}
}

func (c Candidate) TargetURL() url.URL {
	return c.targetURL
}

func (c Candidate) Depth() int {
	return c.depth
}

func (c Candidate) Referrer() string {
	return c.referrer
}

// Decision is the gate's verdict. CanonicalURL is always populated for
// well-formed candidates so the caller enqueues the canonical form, not
// the raw spelling.
type Decision struct {
	Admitted     bool
	Reason       Reason
	Detail       string
	CanonicalURL url.URL

	// CrawlDelay carries the robots crawl-delay for the host when one
	// was declared; nil otherwise.
	CrawlDelay *time.Duration
}

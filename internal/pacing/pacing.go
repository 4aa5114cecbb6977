package pacing

import (
	"math/rand"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/classifier"
	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/pkg/timeutil"
)

/*
Pacing Responsibilities
- Compute the inter-page delay from the page just processed
- Model reading behavior: reading time, navigation decisions, image
  viewing, fatigue, weekend slowdown
- Slow down hard while a rate-limit window is armed
- Stretch delays when responses come back suspiciously fast
- Knows nothing about:
	- per-host timing (pkg/limiter owns last-fetch arithmetic)
	- fetching or retries
	- frontier ordering

The pacer emits a target delay; the limiter reconciles it with elapsed
wall time and robots crawl-delay. Deterministic under an injected
rand.Rand and NowFunc.
*/

// delay model bounds
const (
	minDelay = 500 * time.Millisecond
	maxDelay = 30 * time.Second

	imagePauseEach = 500 * time.Millisecond
	imagePauseCap  = 2 * time.Second

	rateLimitedWindow = 300 * time.Second
	rateLimitedFactor = 3.0

	fastResponseBelow  = time.Second
	fastStreakTrigger  = 5
	fastStreakFactor   = 1.5
	fatiguePerPage     = 0.01
	wordyPageFactor    = 1.2
	verboseWordsFactor = 1.5

	documentationFactor = 1.3
	navigationFactor    = 0.7

	sessionBreakMin = 30 * time.Second
	sessionBreakMax = 120 * time.Second
)

// PageSignal carries the observations the delay model feeds on, taken
// from the page that just finished processing.
type PageSignal struct {
	WordCount    int
	ContentType  classifier.ContentType
	Images       int
	ResponseTime time.Duration
	RateLimited  bool
}

// AdaptiveDelay models a human reader's pace. Not safe for concurrent
// use; the scheduler owns one per session.
type AdaptiveDelay struct {
	cfg config.Config
	rng *rand.Rand
	now timeutil.NowFunc

	pagesVisited     int
	fastStreak       int
	rateLimitedUntil time.Time
}

func NewAdaptiveDelay(cfg config.Config) *AdaptiveDelay {
	return &AdaptiveDelay{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.RandomSeed())),
		now: time.Now,
	}
}

// SetRNG replaces the sampling source. Tests inject a seeded source for
// reproducible delays.
func (a *AdaptiveDelay) SetRNG(rng *rand.Rand) {
	a.rng = rng
}

// SetNowFunc replaces the clock used for the rate-limit window and the
// weekend check.
func (a *AdaptiveDelay) SetNowFunc(now timeutil.NowFunc) {
	a.now = now
}

// PagesVisited reports how many pages the model has observed.
func (a *AdaptiveDelay) PagesVisited() int {
	return a.pagesVisited
}

// ObservePage records a processed page. Call once per page, before
// NextDelay for that page.
func (a *AdaptiveDelay) ObservePage(signal PageSignal) {
	a.pagesVisited++

	if signal.ResponseTime > 0 && signal.ResponseTime < fastResponseBelow {
		a.fastStreak++
	} else {
		a.fastStreak = 0
	}

	if signal.RateLimited {
		a.rateLimitedUntil = a.now().Add(rateLimitedWindow)
	}
}

// NextDelay computes the pause before the next fetch, derived from the
// page described by signal and the session state accumulated so far.
func (a *AdaptiveDelay) NextDelay(signal PageSignal) time.Duration {
	reading := timeutil.NewDelayRange(a.cfg.BaseReadingMin(), a.cfg.BaseReadingMax()).Sample(a.rng)
	deciding := timeutil.NewDelayRange(a.cfg.NavigationDecisionMin(), a.cfg.NavigationDecisionMax()).Sample(a.rng)
	delay := float64(reading + deciding)

	switch {
	case signal.WordCount > 1000:
		delay *= verboseWordsFactor
	case signal.WordCount > 500:
		delay *= wordyPageFactor
	}

	switch signal.ContentType {
	case classifier.TypeDocumentation:
		delay *= documentationFactor
	case classifier.TypeNavigation:
		delay *= navigationFactor
	}

	if signal.Images > 0 {
		pause := time.Duration(signal.Images) * imagePauseEach
		if pause > imagePauseCap {
			pause = imagePauseCap
		}
		delay += float64(pause)
	}

	delay *= 1 + fatiguePerPage*float64(a.pagesVisited)

	if timeutil.IsWeekend(a.now()) {
		delay *= a.cfg.WeekendFactor()
	}

	if a.now().Before(a.rateLimitedUntil) {
		delay *= rateLimitedFactor
	}

	if a.fastStreak > fastStreakTrigger {
		delay *= fastStreakFactor
	}

	if variance := a.cfg.VariancePercent(); variance > 0 {
		spread := float64(variance) / 100
		delay *= 1 + (a.rng.Float64()*2-1)*spread
	}

	result := time.Duration(delay)
	if result < minDelay {
		result = minDelay
	}
	if result > maxDelay {
		result = maxDelay
	}
	return result
}

// SessionBreak reports whether the reader takes a long break now, and
// for how long. Fires once every SessionBreakAfter pages.
func (a *AdaptiveDelay) SessionBreak() (time.Duration, bool) {
	breakAfter := a.cfg.SessionBreakAfter()
	if breakAfter <= 0 || a.pagesVisited == 0 || a.pagesVisited%breakAfter != 0 {
		return 0, false
	}
	return timeutil.NewDelayRange(sessionBreakMin, sessionBreakMax).Sample(a.rng), true
}

// InRateLimitedWindow reports whether the ×3 rate-limit slowdown is
// currently armed.
func (a *AdaptiveDelay) InRateLimitedWindow() bool {
	return a.now().Before(a.rateLimitedUntil)
}

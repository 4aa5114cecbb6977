package limiter

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/site-archiver/pkg/timeutil"
)

// RateLimiter
// Specialized component to manage rate limiting during crawling
// Responsibilities:
// - Bookkeep each hostname's last fetch timestamp
// - Compute the final delay for each hostname given various factors
// - Make sure the crawling process respect the server's policy
type RateLimiter interface {
	SetBaseDelay(baseDelay time.Duration)
	SetJitter(jitter time.Duration)
	SetRandomSeed(randomSeed int64)
	SetCrawlDelay(host string, delay time.Duration)
	SetPacedDelay(host string, delay time.Duration)
	Backoff(host string)
	ResetBackoff(host string)
	ArmCooldown(host string, pages int)
	InCooldown(host string) bool
	MarkLastFetchAsNow(host string)
	SetRNG(rng *rand.Rand)
	ResolveDelay(host string) time.Duration
}

type ConcurrentRateLimiter struct {
	mu           sync.RWMutex
	rngMu        sync.Mutex
	baseDelay    time.Duration
	jitter       time.Duration
	hostTimings  map[string]hostTiming
	rng          *rand.Rand
	now          timeutil.NowFunc
	backoffParam timeutil.BackoffParam
}

func NewConcurrentRateLimiter() *ConcurrentRateLimiter {
	return &ConcurrentRateLimiter{
		hostTimings:  make(map[string]hostTiming),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
		backoffParam: timeutil.NewBackoffParam(1*time.Second, 2.0, 30*time.Second),
	}
}

func (r *ConcurrentRateLimiter) SetBaseDelay(baseDelay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.baseDelay = baseDelay
}

func (r *ConcurrentRateLimiter) SetJitter(jitter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jitter = jitter
}

func (r *ConcurrentRateLimiter) SetRandomSeed(randomSeed int64) {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	r.rng = rand.New(rand.NewSource(randomSeed))
}

// Set delay to given host per its robots.txt crawl-delay directive,
// separated from global base delay
func (r *ConcurrentRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming := r.hostTimings[host]
	currentHostTiming.crawlDelay = delay
	r.hostTimings[host] = currentHostTiming
}

// Set the adaptive delay computed by the pacing model for the given host.
// Replaces any previous paced delay; the pacing model recomputes it per page.
func (r *ConcurrentRateLimiter) SetPacedDelay(host string, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming := r.hostTimings[host]
	currentHostTiming.pacedDelay = delay
	r.hostTimings[host] = currentHostTiming
}

// exponentialBackoffDelay computes exponential backoff based on count
// Does NOT take lock; caller must hold r.mu (RLock or Lock)
func (r *ConcurrentRateLimiter) exponentialBackoffDelay(backoffCount int) time.Duration {
	// Compute exponential: initial * (multiplier ^ (count - 1))
	// First backoff (count=1): initialDuration
	exponent := float64(backoffCount - 1)
	delay := float64(r.backoffParam.InitialDuration()) * math.Pow(r.backoffParam.Multiplier(), exponent)
	if delay > float64(r.backoffParam.MaxDuration()) {
		delay = float64(r.backoffParam.MaxDuration())
	}

	// Add jitter only if configured jitter > 0
	if r.jitter > 0 {
		jitterValue := r.computeJitter(r.jitter)
		delay += float64(jitterValue)
	}

	return time.Duration(delay)
}

// Backoff triggers exponential backoff for the given host.
// It increments the backoff counter and computes the delay.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming := r.hostTimings[host]
	currentHostTiming.backoffCount++
	currentHostTiming.backoffDelay = r.exponentialBackoffDelay(currentHostTiming.backoffCount)
	r.hostTimings[host] = currentHostTiming
}

// ResetBackoff resets the backoff counter for the given host.
// Called after a successful request to clear backoff state.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming, exists := r.hostTimings[host]
	if exists {
		currentHostTiming.backoffCount = 0
		currentHostTiming.backoffDelay = time.Duration(0)
		r.hostTimings[host] = currentHostTiming
	}
}

// ArmCooldown doubles every resolved delay for the given host until
// the next `pages` fetches complete. Used after a rate-limit response
// so the crawl slows down beyond the single backed-off request.
func (r *ConcurrentRateLimiter) ArmCooldown(host string, pages int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pages < 0 {
		pages = 0
	}
	currentHostTiming := r.hostTimings[host]
	currentHostTiming.cooldownPages = pages
	r.hostTimings[host] = currentHostTiming
}

func (r *ConcurrentRateLimiter) InCooldown(host string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	currentHostTiming, exists := r.hostTimings[host]
	return exists && currentHostTiming.cooldownPages > 0
}

// Mark the given host lastFetch to now and consume one cooldown page
// if a cooldown window is armed
func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	currentHostTiming := r.hostTimings[host]
	currentHostTiming.lastFetchAt = r.now()
	if currentHostTiming.cooldownPages > 0 {
		currentHostTiming.cooldownPages--
	}
	r.hostTimings[host] = currentHostTiming
}

// Compute jitter for the given max duration
// Returns a pseudo-random duration between 0 and max (inclusive)
func (r *ConcurrentRateLimiter) computeJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	r.rngMu.Lock()
	defer r.rngMu.Unlock()

	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// Safe to call Int63n under lock since we hold rngMu
	return time.Duration(r.rng.Int63n(int64(max)))
}

// SetRNG allows injecting a custom random number generator for testing
func (r *ConcurrentRateLimiter) SetRNG(rng *rand.Rand) {
	if rng == nil {
		return
	}
	r.rngMu.Lock()
	r.rng = rng
	r.rngMu.Unlock()
}

// SetNowFunc allows injecting a custom clock for testing
func (r *ConcurrentRateLimiter) SetNowFunc(now timeutil.NowFunc) {
	if now == nil {
		return
	}
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetBackoffParam overrides the default backoff curve (1s doubling,
// capped at 30s)
func (r *ConcurrentRateLimiter) SetBackoffParam(param timeutil.BackoffParam) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoffParam = param
}

// Compute the final delay resolution for given host
// FinalDelay = max(BaseDelay, crawlDelay, pacedDelay, BackoffDelay) + Jitter
// doubled while a rate-limit cooldown window is armed
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	// copy needed state under read lock, then compute without holding r.mu
	r.mu.RLock()
	currentHostTiming, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	now := r.now
	r.mu.RUnlock()

	// return no delay if the host not registered yet
	if !exists {
		return time.Duration(0)
	}

	delays := []time.Duration{
		base,
		currentHostTiming.crawlDelay,
		currentHostTiming.pacedDelay,
		currentHostTiming.backoffDelay,
	}

	// compute the highest delay between the competing sources
	finalDelay := timeutil.MaxDuration(delays)

	if currentHostTiming.cooldownPages > 0 {
		finalDelay *= 2
	}

	// add jitter to the final delay (computeJitter protects rng)
	finalDelay += r.computeJitter(jitter)

	elapsed := now().Sub(currentHostTiming.lastFetchAt)

	// return the remaining time since the host last been fetched,
	// else don't delay
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}

	return time.Duration(0)
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

func (r *ConcurrentRateLimiter) RNG() *rand.Rand {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng
}

func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// return a shallow copy to avoid exposing internal map for mutation
	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}

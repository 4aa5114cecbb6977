package scheduler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/config"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
)

// captureSink is a NoopSink that additionally captures final crawl
// statistics, so tests can assert the finalizer fired exactly once.
type captureSink struct {
	metadata.NoopSink

	mu         sync.Mutex
	finalStats []capturedStats
}

type capturedStats struct {
	totalPages  int
	totalErrors int
	totalAssets int
	duration    time.Duration
}

func (c *captureSink) RecordFinalCrawlStats(
	totalPages int,
	totalErrors int,
	totalAssets int,
	duration time.Duration,
) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalStats = append(c.finalStats, capturedStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalAssets: totalAssets,
		duration:    duration,
	})
}

func (c *captureSink) stats() []capturedStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedStats(nil), c.finalStats...)
}

// hitCounter counts requests per path so tests can assert each page
// was fetched exactly once.
type hitCounter struct {
	mu   sync.Mutex
	hits map[string]int
}

func newHitCounter() *hitCounter {
	return &hitCounter{hits: map[string]int{}}
}

func (h *hitCounter) record(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hits[path]++
}

func (h *hitCounter) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits[path]
}

func testPage(title string, body string, links ...string) string {
	page := "<html><head><title>" + title + "</title></head><body><main><h1>" + title + "</h1>" +
		"<p>" + body + " This paragraph pads the page body well past the minimum content length threshold.</p>"
	for _, link := range links {
		page += `<p>See <a href="` + link + `">` + link + `</a> for details.</p>`
	}
	return page + "</main></body></html>"
}

// newTestSite serves a four page documentation site. Pages live under
// canonical paths; the links carry trailing slashes so the crawl
// exercises canonicalization before fetching. An empty robotsBody
// answers robots.txt with 404, which the gate treats as fully
// permissive.
func newTestSite(t *testing.T, robotsBody string) (*httptest.Server, *hitCounter) {
	t.Helper()
	counter := newHitCounter()
	pages := map[string]string{
		"/":               testPage("Home", "Welcome to the documentation.", "/guide/", "/reference/"),
		"/guide":          testPage("Guide", "How to use the tool.", "/guide/advanced", "/"),
		"/guide/advanced": testPage("Advanced Guide", "Power user features."),
		"/reference":      testPage("Reference", "Endpoint documentation."),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			if robotsBody == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte(robotsBody))
			return
		}
		counter.record(r.URL.Path)
		page, ok := pages[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	t.Cleanup(server.Close)
	return server, counter
}

func newTestConfig(t *testing.T, seedURL string) *config.Config {
	t.Helper()
	seed, err := url.Parse(seedURL)
	if err != nil {
		t.Fatalf("parse seed url: %v", err)
	}
	return config.WithDefault(*seed).
		WithRequestDelay(time.Millisecond).
		WithJitter(0).
		WithRandomSeed(42).
		WithMaxAttempt(2).
		WithBackoffInitialDuration(time.Millisecond).
		WithBaseReadingTime(time.Millisecond, 2*time.Millisecond).
		WithNavigationDecision(time.Millisecond, 2*time.Millisecond).
		WithTimeout(5 * time.Second).
		WithMinContentLength(10)
}

func mustBuild(t *testing.T, builder *config.Config) config.Config {
	t.Helper()
	cfg, err := builder.Build()
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

// sleepRecorder replaces the scheduler's pacing sleep so crawls run
// without wall time while still exposing the delays that would have
// been taken.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

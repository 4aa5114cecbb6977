package scheduler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/site-archiver/internal/cache"
	"github.com/rohmanhakim/site-archiver/internal/scheduler"
)

func TestExecuteCrawling_ArchivesSiteToCache(t *testing.T) {
	server, counter := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 4, exec.PagesArchived)
	assert.True(t, exec.Completed())
	require.NotEmpty(t, exec.SessionID)

	meta, records, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, cache.StatusCompleted, meta.Status)
	require.Len(t, records, 4)

	archived := make(map[string]string, len(records))
	for _, rec := range records {
		archived[rec.URL] = rec.Title
	}
	assert.Contains(t, archived, server.URL+"/")
	assert.Contains(t, archived, server.URL+"/guide/advanced")
	assert.Equal(t, "Advanced Guide", archived[server.URL+"/guide/advanced"])

	// Each page fetched exactly once despite the guide linking back to
	// the home page.
	for _, path := range []string{"/", "/guide", "/guide/advanced", "/reference"} {
		assert.Equal(t, 1, counter.count(path), "path %s", path)
	}

	stats := sink.stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 4, stats[0].totalPages)
}

func TestExecuteCrawling_PageLimitStopsQueuedTokens(t *testing.T) {
	server, _ := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithMaxPages(2))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 2, exec.PagesArchived)

	meta, _, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, 2, meta.PagesScraped)
}

func TestExecuteCrawling_MaxPagesZero(t *testing.T) {
	server, counter := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithMaxPages(0))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 0, exec.PagesArchived)
	assert.False(t, exec.Completed())
	assert.Equal(t, 0, counter.count("/"))

	meta, _, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, cache.StatusCompleted, meta.Status)
	assert.Equal(t, 0, meta.PagesScraped)
}

func TestExecuteCrawling_RespectsRobotsDisallow(t *testing.T) {
	server, counter := newTestSite(t, "User-agent: *\nDisallow: /reference\n")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 3, exec.PagesArchived)
	assert.Equal(t, 0, counter.count("/reference"))
}

func TestExecuteCrawling_CancellationFailsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The home page serves normally; any child page cancels the crawl
	// while its fetch is in flight.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/" {
			w.Write([]byte(testPage("Home", "Front door.", "/a", "/b")))
			return
		}
		cancel()
		w.Write([]byte(testPage("Child", "A child page.")))
	}))
	defer server.Close()

	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(ctx)
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusFailed, exec.Status)
	assert.Equal(t, scheduler.ReasonCancelled, exec.Reason)
	assert.Equal(t, 1, exec.PagesArchived)

	// The record completed before the signal is flushed and the session
	// stays resumable.
	meta, records, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, cache.StatusFailed, meta.Status)
	assert.Len(t, records, 1)

	stats := sink.stats()
	require.Len(t, stats, 1)
}

func TestExecuteCrawling_DryRun(t *testing.T) {
	server, _ := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithDryRun(true))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 0, exec.PagesArchived)
	assert.Empty(t, exec.SessionID)
	assert.Len(t, exec.AdmittedURLs, 4)
	assert.Contains(t, exec.AdmittedURLs, server.URL+"/")
	assert.True(t, exec.Completed())

	sessions, listErr := store.ListSessions()
	require.Nil(t, listErr)
	assert.Empty(t, sessions)
}

func TestExecuteCrawling_DirectOutputWithoutCache(t *testing.T) {
	server, _ := newTestSite(t, "")
	sink := &captureSink{}
	outputDir := t.TempDir()
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, nil, outputDir)
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	// The root page carries no path segment to derive a section from, so
	// the pipeline rejects it; the crawl keeps going and archives the
	// rest of the site.
	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 3, exec.PagesArchived)
	assert.Equal(t, 1, exec.ErrorCount)
	assert.Empty(t, exec.SessionID)
	require.Len(t, exec.WriteResults, 3)

	for _, result := range exec.WriteResults {
		content, readErr := os.ReadFile(result.Path())
		require.NoError(t, readErr)
		assert.Contains(t, string(content), "source_url:")
	}
}

// newDeadLinkSite serves a home page whose second link 404s, so tests
// can assert how the crawl treats a fetch failure on one page.
func newDeadLinkSite(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(testPage("Home", "Front door.", "/alive", "/missing")))
		case "/alive":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(testPage("Alive", "A healthy page.")))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExecuteCrawling_DeadLinkDoesNotAbortCrawl(t *testing.T) {
	server := newDeadLinkSite(t)
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	// The 404 costs one error and nothing else; the session still
	// completes with every reachable page archived.
	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 2, exec.PagesArchived)
	assert.Equal(t, 1, exec.ErrorCount)

	meta, records, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, cache.StatusCompleted, meta.Status)
	require.Len(t, records, 2)
}

func TestExecuteCrawling_DryRunRespectsPageLimit(t *testing.T) {
	server, _ := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithDryRun(true).WithMaxPages(2))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 0, exec.PagesArchived)
	assert.Len(t, exec.AdmittedURLs, 2)
	assert.True(t, exec.Completed())
}

func TestExecuteCrawling_DryRunReportsUnfetchableAdmissions(t *testing.T) {
	server := newDeadLinkSite(t)
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithDryRun(true))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	// The dead link passed admission, so the report names it even
	// though its fetch 404s during the walk.
	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Contains(t, exec.AdmittedURLs, server.URL+"/missing")
	assert.Equal(t, 1, exec.ErrorCount)
	assert.Equal(t, 0, exec.PagesArchived)
}

func TestExecuteCrawling_OffHostRedirectProducesNoRecord(t *testing.T) {
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testPage("Elsewhere", "Another site entirely.")))
	}))
	defer external.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(testPage("Home", "Front door.", "/go")))
		case "/go":
			http.Redirect(w, r, external.URL+"/", http.StatusFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	s.SetSleepFunc((&sleepRecorder{}).sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)

	assert.Equal(t, cache.StatusCompleted, exec.Status)
	assert.Equal(t, 1, exec.PagesArchived)

	_, records, _, loadErr := store.LoadSession(exec.SessionID)
	require.Nil(t, loadErr)
	require.Len(t, records, 1)
	assert.Equal(t, server.URL+"/", records[0].URL)
}

func TestExecuteCrawling_RecordsPacingDelays(t *testing.T) {
	server, _ := newTestSite(t, "")
	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/").WithRequestDelay(100 * time.Millisecond))

	s, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	recorder := &sleepRecorder{}
	s.SetSleepFunc(recorder.sleep)

	exec, execErr := s.ExecuteCrawling(context.Background())
	require.NoError(t, execErr)
	require.Equal(t, 4, exec.PagesArchived)

	delays := recorder.recorded()
	require.GreaterOrEqual(t, len(delays), 4)

	var positive int
	for _, d := range delays {
		if d > 0 {
			positive++
		}
	}
	// Every fetch after the first waits at least the base delay.
	assert.GreaterOrEqual(t, positive, 3)
}

func TestExecuteResume_CompletesInterruptedSession(t *testing.T) {
	var interrupt atomic.Bool
	interrupt.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Path == "/" {
			w.Write([]byte(testPage("Home", "Front door.", "/a", "/b")))
			return
		}
		if interrupt.Load() {
			cancel()
		}
		w.Write([]byte(testPage("Child "+r.URL.Path, "A child page.")))
	}))
	defer server.Close()

	sink := &captureSink{}
	store := cache.NewStore(t.TempDir(), sink, false, 6)
	cfg := mustBuild(t, newTestConfig(t, server.URL+"/"))

	first, err := scheduler.NewScheduler(cfg, sink, &store, t.TempDir())
	require.NoError(t, err)
	first.SetSleepFunc((&sleepRecorder{}).sleep)

	interrupted, execErr := first.ExecuteCrawling(ctx)
	require.NoError(t, execErr)
	require.Equal(t, cache.StatusFailed, interrupted.Status)
	require.Equal(t, 1, interrupted.PagesArchived)

	interrupt.Store(false)
	second, err := scheduler.NewScheduler(cfg, &captureSink{}, &store, t.TempDir())
	require.NoError(t, err)
	second.SetSleepFunc((&sleepRecorder{}).sleep)

	resumed, resumeErr := second.ExecuteResume(context.Background(), interrupted.SessionID)
	require.NoError(t, resumeErr)

	assert.Equal(t, cache.StatusCompleted, resumed.Status)
	assert.Equal(t, interrupted.SessionID, resumed.SessionID)
	assert.Equal(t, 2, resumed.PagesArchived)

	meta, records, _, loadErr := store.LoadSession(interrupted.SessionID)
	require.Nil(t, loadErr)
	assert.Equal(t, cache.StatusCompleted, meta.Status)
	assert.Equal(t, 3, meta.PagesScraped)
	assert.Len(t, records, 3)
}

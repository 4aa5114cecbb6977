package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/robots"
)

// splitOrigin breaks an httptest server URL into the scheme and host
// the fetcher expects.
func splitOrigin(t *testing.T, serverURL string) (scheme, host string) {
	t.Helper()
	parts := strings.SplitN(serverURL, "://", 2)
	if len(parts) != 2 {
		t.Fatalf("unexpected server url %q", serverURL)
	}
	return parts[0], parts[1]
}

func robotsServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		if body != "" {
			w.Write([]byte(body))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewRobotsFetcher(t *testing.T) {
	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)

	if fetcher == nil {
		t.Fatal("NewRobotsFetcher returned nil")
	}
	if fetcher.UserAgent() != "site-archiver/1.0" {
		t.Errorf("UserAgent() = %q", fetcher.UserAgent())
	}
	if fetcher.HttpClient() == nil {
		t.Error("fetcher has no http client")
	}
}

func TestRobotsFetcher_Fetch_ParsesGroups(t *testing.T) {
	body := `User-agent: *
Disallow: /internal/
Disallow: /admin/
Allow: /docs/
Crawl-delay: 5

User-agent: archiver
Disallow: /staging/

Sitemap: https://docs.example.org/sitemap.xml
`
	var sawUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Errorf("fetched %s, want /robots.txt", r.URL.Path)
		}
		sawUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(body))
	}))
	defer server.Close()

	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
	scheme, host := splitOrigin(t, server.URL)

	result, err := fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if sawUA != "site-archiver/1.0" {
		t.Errorf("request carried User-Agent %q", sawUA)
	}
	if result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %d", result.HTTPStatus)
	}
	if want := server.URL + "/robots.txt"; result.SourceURL != want {
		t.Errorf("SourceURL = %q, want %q", result.SourceURL, want)
	}

	response := result.Response
	if response.Host != host {
		t.Errorf("Host = %q, want %q", response.Host, host)
	}
	if !reflect.DeepEqual(response.Sitemaps, []string{"https://docs.example.org/sitemap.xml"}) {
		t.Errorf("Sitemaps = %v", response.Sitemaps)
	}
	if len(response.UserAgents) != 2 {
		t.Fatalf("got %d groups, want 2", len(response.UserAgents))
	}

	wildcard := response.UserAgents[0]
	if !reflect.DeepEqual(wildcard.UserAgents, []string{"*"}) {
		t.Errorf("first group agents = %v", wildcard.UserAgents)
	}
	if len(wildcard.Disallows) != 2 || len(wildcard.Allows) != 1 {
		t.Errorf("wildcard rules = %d disallows, %d allows", len(wildcard.Disallows), len(wildcard.Allows))
	}
	if wildcard.CrawlDelay == nil || *wildcard.CrawlDelay != 5*time.Second {
		t.Errorf("CrawlDelay = %v, want 5s", wildcard.CrawlDelay)
	}

	if !reflect.DeepEqual(response.UserAgents[1].UserAgents, []string{"archiver"}) {
		t.Errorf("second group agents = %v", response.UserAgents[1].UserAgents)
	}
}

func TestRobotsFetcher_Fetch_NotFoundMeansNoRestrictions(t *testing.T) {
	server := robotsServer(t, http.StatusNotFound, "")

	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
	scheme, host := splitOrigin(t, server.URL)

	result, err := fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		t.Fatalf("a 404 must not fail the fetch: %v", err)
	}
	if result.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d", result.HTTPStatus)
	}
	if !result.Response.IsEmpty() {
		t.Error("a missing robots.txt must map to an empty response")
	}
}

func TestRobotsFetcher_Fetch_RetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests} {
		server := robotsServer(t, status, "")

		fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
		scheme, host := splitOrigin(t, server.URL)

		_, err := fetcher.Fetch(context.Background(), scheme, host)
		if err == nil {
			t.Fatalf("status %d must fail the fetch", status)
		}
		if !err.Retryable {
			t.Errorf("status %d error must be retryable", status)
		}
		if status == http.StatusInternalServerError && err.Cause != robots.ErrCauseHttpServerError {
			t.Errorf("cause = %q, want %q", err.Cause, robots.ErrCauseHttpServerError)
		}
	}
}

func TestRobotsFetcher_Fetch_OversizedFileTruncated(t *testing.T) {
	// Well past the 500 KiB read cap.
	body := strings.Repeat("User-agent: *\nDisallow: /archive/\n", 20000)
	server := robotsServer(t, http.StatusOK, body)

	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
	scheme, host := splitOrigin(t, server.URL)

	result, err := fetcher.Fetch(context.Background(), scheme, host)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.HTTPStatus != http.StatusOK {
		t.Errorf("HTTPStatus = %d", result.HTTPStatus)
	}
	if result.Response.IsEmpty() {
		t.Error("truncated body must still yield parsed rules")
	}
}

func TestRobotsFetcher_Fetch_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
	scheme, host := splitOrigin(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := fetcher.Fetch(ctx, scheme, host); err == nil {
		t.Fatal("expected an error once the context deadline passes")
	}
}

func TestRobotsFetcher_Fetch_FollowsRedirects(t *testing.T) {
	redirects := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			return
		}
		if redirects < 2 {
			redirects++
			http.Redirect(w, r, "/robots.txt", http.StatusFound)
			return
		}
		w.Write([]byte("User-agent: *\nDisallow: /"))
	}))
	defer server.Close()

	fetcher := robots.NewRobotsFetcher(&metadata.NoopSink{}, "site-archiver/1.0", nil)
	scheme, host := splitOrigin(t, server.URL)

	if _, err := fetcher.Fetch(context.Background(), scheme, host); err != nil {
		t.Fatalf("fetch must follow same-path redirects: %v", err)
	}
}

// flatGroup condenses one parsed group into comparable form so the
// table below reads as rules, not struct plumbing.
type flatGroup struct {
	agents    string
	allows    string
	disallows string
	delay     time.Duration
}

func flattenGroups(groups []robots.UserAgentGroup) []flatGroup {
	out := make([]flatGroup, 0, len(groups))
	for _, g := range groups {
		f := flatGroup{agents: strings.Join(g.UserAgents, ",")}
		for _, rule := range g.Allows {
			f.allows += rule.Path + ";"
		}
		for _, rule := range g.Disallows {
			f.disallows += rule.Path + ";"
		}
		if g.CrawlDelay != nil {
			f.delay = *g.CrawlDelay
		}
		out = append(out, f)
	}
	return out
}

func TestParseRobotsTxt(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantSitemaps []string
		wantGroups   []flatGroup
	}{
		{
			name:       "empty file",
			content:    "",
			wantGroups: []flatGroup{},
		},
		{
			name:       "disallow everything",
			content:    "User-agent: *\nDisallow: /",
			wantGroups: []flatGroup{{agents: "*", disallows: "/;"}},
		},
		{
			name:    "two named groups",
			content: "User-agent: archiver\nDisallow: /staging/\n\nUser-agent: mirrorbot\nDisallow: /mirror/",
			wantGroups: []flatGroup{
				{agents: "archiver", disallows: "/staging/;"},
				{agents: "mirrorbot", disallows: "/mirror/;"},
			},
		},
		{
			name:    "sitemaps collected across the file",
			content: "User-agent: *\nDisallow: /internal/\n\nSitemap: https://docs.example.org/sitemap.xml\nSitemap: https://docs.example.org/sitemap-archive.xml",
			wantSitemaps: []string{
				"https://docs.example.org/sitemap.xml",
				"https://docs.example.org/sitemap-archive.xml",
			},
			wantGroups: []flatGroup{{agents: "*", disallows: "/internal/;"}},
		},
		{
			name:       "comments stripped",
			content:    "# preamble\nUser-agent: * # inline\nDisallow: /internal/ # trailing\n# Disallow: /commented-out/",
			wantGroups: []flatGroup{{agents: "*", disallows: "/internal/;"}},
		},
		{
			name:       "field names ignore case",
			content:    "USER-AGENT: *\nDISALLOW: /internal/\nALLOW: /docs/",
			wantGroups: []flatGroup{{agents: "*", allows: "/docs/;", disallows: "/internal/;"}},
		},
		{
			name:       "crawl delay in seconds",
			content:    "User-agent: *\nCrawl-delay: 10\nDisallow: /",
			wantGroups: []flatGroup{{agents: "*", disallows: "/;", delay: 10 * time.Second}},
		},
		{
			name:       "stacked agent lines share one group",
			content:    "User-agent: archiver\nUser-agent: mirrorbot\nDisallow: /staging/",
			wantGroups: []flatGroup{{agents: "archiver,mirrorbot", disallows: "/staging/;"}},
		},
		{
			name:    "rules before any agent line bind the wildcard",
			content: "Disallow: /orphaned/\n\nUser-agent: *\nAllow: /docs/",
			wantGroups: []flatGroup{
				{agents: "*", disallows: "/orphaned/;"},
				{agents: "*", allows: "/docs/;"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := robots.ParseRobotsTxt(tt.content, "docs.example.org")

			if got.Host != "docs.example.org" {
				t.Errorf("Host = %q", got.Host)
			}
			wantSitemaps := tt.wantSitemaps
			if wantSitemaps == nil {
				wantSitemaps = []string{}
			}
			if !reflect.DeepEqual(got.Sitemaps, wantSitemaps) {
				t.Errorf("Sitemaps = %v, want %v", got.Sitemaps, wantSitemaps)
			}
			if flat := flattenGroups(got.UserAgents); !reflect.DeepEqual(flat, tt.wantGroups) {
				t.Errorf("groups = %+v, want %+v", flat, tt.wantGroups)
			}
		})
	}
}

func TestRobotsResponse_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		response robots.RobotsResponse
		want     bool
	}{
		{name: "zero value", response: robots.RobotsResponse{}, want: true},
		{
			name:     "sitemap alone counts as content",
			response: robots.RobotsResponse{Sitemaps: []string{"https://docs.example.org/sitemap.xml"}},
			want:     false,
		},
		{
			name: "disallow rule",
			response: robots.RobotsResponse{
				UserAgents: []robots.UserAgentGroup{{Disallows: []robots.PathRule{{Path: "/"}}}},
			},
			want: false,
		},
		{
			name: "allow rule",
			response: robots.RobotsResponse{
				UserAgents: []robots.UserAgentGroup{{Allows: []robots.PathRule{{Path: "/docs/"}}}},
			},
			want: false,
		},
		{
			name: "agent line without any rules",
			response: robots.RobotsResponse{
				UserAgents: []robots.UserAgentGroup{{UserAgents: []string{"*"}}},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.response.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRobotsResponse_GetGroupForUserAgent(t *testing.T) {
	response := robots.RobotsResponse{
		UserAgents: []robots.UserAgentGroup{
			{UserAgents: []string{"archiver"}, Disallows: []robots.PathRule{{Path: "/staging/"}}},
			{UserAgents: []string{"*"}, Disallows: []robots.PathRule{{Path: "/internal/"}}},
			{UserAgents: []string{"mirrorbot"}, Disallows: []robots.PathRule{{Path: "/mirror/"}}},
		},
	}

	tests := []struct {
		userAgent string
		wantAgent string
	}{
		{userAgent: "archiver", wantAgent: "archiver"},
		{userAgent: "mirrorbot", wantAgent: "mirrorbot"},
		{userAgent: "unlisted-bot", wantAgent: "*"},
		// Token comparison ignores case.
		{userAgent: "Archiver", wantAgent: "archiver"},
	}

	for _, tt := range tests {
		t.Run(tt.userAgent, func(t *testing.T) {
			group := response.GetGroupForUserAgent(tt.userAgent)
			if group == nil {
				t.Fatalf("GetGroupForUserAgent(%q) = nil", tt.userAgent)
			}
			if group.UserAgents[0] != tt.wantAgent {
				t.Errorf("picked group %q, want %q", group.UserAgents[0], tt.wantAgent)
			}
		})
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/rohmanhakim/site-archiver/pkg/hashutil"
	yaml "gopkg.in/yaml.v3"
)

// NavigationPolicy controls whether navigation-classified URLs may be
// admitted outside the seed path subtree.
type NavigationPolicy string

const (
	NavigationNone    NavigationPolicy = "none"
	NavigationLimited NavigationPolicy = "limited"
	NavigationAll     NavigationPolicy = "all"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// The seed URL the crawl starts from. The owner-scoped subgraph is
	// discovered from here.
	seedURL url.URL
	// Whitelisted hostnames. Empty means only the seed host is allowed.
	allowedHosts map[string]struct{}
	// When false, cross-host URLs are admitted (discouraged).
	sameHostOnly bool

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from the seed URL
	maxDepth int
	// Maximum number of total documents allowed to be fetched
	maxPages int
	// URLs longer than this are rejected outright
	maxURLLength int

	//===============
	// Path scoping
	//===============
	// Master toggle; disabled means every same-host URL is in scope
	pathScopingEnabled bool
	// How many ancestors of the seed path are admissible
	allowParentLevels int
	// Whether "/" is admissible regardless of the seed path
	allowHomepage bool
	// Whether paths sharing the seed path's immediate parent are admissible
	allowSiblings bool
	// Admission policy for navigation-classified URLs
	allowNavigation NavigationPolicy

	//===============
	// Politeness
	//===============
	// Minimum fixed waiting time enforced between two HTTP requests to the same host
	requestDelay time.Duration
	// Randomized variation added on top of resolved delays
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// Whether robots.txt directives are honored
	respectRobots bool
	// How long a fetched robots.txt stays valid per host
	robotsTTL time.Duration
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration
	// pages a host stays slowed down after a 429
	cooldownPages int

	//===============
	// Human behavior
	//===============
	// Simulated reading time sampled before each request, [min,max]
	baseReadingMin time.Duration
	baseReadingMax time.Duration
	// Simulated navigation decision pause, [min,max]
	navigationDecisionMin time.Duration
	navigationDecisionMax time.Duration
	// Percent variance applied to the computed delay
	variancePercent int
	// A long break is injected every this many pages
	sessionBreakAfter int
	// Delay multiplier when the wall clock falls on a weekend
	weekendFactor float64

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Content
	//===============
	// Keep navigation menus in the extracted content
	includeMenus bool
	// Download image bodies during extraction
	includeImages bool
	// Replace <img> elements with textual placeholders
	removeImages bool
	// Records below this word count are flagged low-quality
	minContentLength int
	// Lift description/keywords/author from <head>
	includeMetadata bool
	// Maximum image body size accepted by the asset pipeline
	maxImageSize int64

	//===============
	// Output
	//===============
	// "pdf" or "markdown"
	outputFormat string
	// Path of the generated artifact; empty derives one from the host
	outputFilename string
	// Whether the program simulates what it would do without performing
	// any irreversible or side-effecting actions
	dryRun bool
	// Include records flagged low-quality/parse-error in outputs
	includeFlagged bool

	//===============
	// PDF
	//===============
	pdfPageSize    string
	pdfOrientation string
	pdfIncludeTOC  bool

	//===============
	// Markdown
	//===============
	markdownMultiFile  bool
	markdownIncludeTOC bool

	//===============
	// Cache
	//===============
	cacheEnabled        bool
	cacheDirectory      string
	cacheCompression    bool
	compressionLevel    int
	maxSessions         int
	autoCleanup         bool
	cleanupMaxAgeDays   int
	cleanupKeepComplete int
	sessionTimeoutHours int

	//===============
	// Chunking
	//===============
	// Size budget per chunk in bytes; zero disables size chunking
	chunkMaxSize int64
	// Fixed records per chunk; zero disables page chunking
	chunkPages int
	// Estimated-output multipliers per format
	markdownOverhead float64
	pdfOverhead      float64

	//===============
	// Filters
	//===============
	// Regexp patterns; matching URLs are never admitted
	excludePatterns []string
	// Query keys stripped during canonicalization
	trackingKeys []string
	// File with an approved-URL set produced by a preview session
	approvedURLsFile string

	//===============
	// Extraction scoring
	//===============
	// BodySpecificityBias is the threshold for preferring a child container over <body>.
	// If a child node's score is >= BodySpecificityBias * bodyScore, the child is preferred.
	// Default: 0.75 (75%)
	bodySpecificityBias float64
	// LinkDensityThreshold is the text-to-link-density ratio below which a
	// block is treated as a menu during menu exclusion.
	linkDensityThreshold float64
	// Link count above which the density test applies
	menuLinkCountThreshold int
	scoreMultiplierNonWhitespaceDivisor float64
	scoreMultiplierParagraphs           float64
	scoreMultiplierHeadings             float64
	scoreMultiplierCodeBlocks           float64
	scoreMultiplierListItems            float64
	thresholdMinNonWhitespace           int
	thresholdMaxLinkDensity             float64
}

// WithDefault creates a new Config with the provided seed URL and default
// values for all other fields.
func WithDefault(seedURL url.URL) *Config {
	defaultConfig := Config{
		seedURL:      seedURL,
		allowedHosts: map[string]struct{}{},
		sameHostOnly: true,

		maxDepth:     5,
		maxPages:     1000,
		maxURLLength: 2000,

		pathScopingEnabled: true,
		allowParentLevels:  0,
		allowHomepage:      true,
		allowSiblings:      false,
		allowNavigation:    NavigationLimited,

		requestDelay:           2 * time.Second,
		jitter:                 500 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		respectRobots:          true,
		robotsTTL:              24 * time.Hour,
		maxAttempt:             4,
		backoffInitialDuration: time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     60 * time.Second,
		cooldownPages:          10,

		baseReadingMin:        2 * time.Second,
		baseReadingMax:        8 * time.Second,
		navigationDecisionMin: 1 * time.Second,
		navigationDecisionMax: 3 * time.Second,
		variancePercent:       30,
		sessionBreakAfter:     50,
		weekendFactor:         1.3,

		timeout:   30 * time.Second,
		userAgent: "site-archiver/1.0",

		includeMenus:     false,
		includeImages:    false,
		removeImages:     false,
		minContentLength: 50,
		includeMetadata:  true,
		maxImageSize:     10 << 20,

		outputFormat:   "markdown",
		outputFilename: "",
		dryRun:         false,
		includeFlagged: false,

		pdfPageSize:    "A4",
		pdfOrientation: "portrait",
		pdfIncludeTOC:  true,

		markdownMultiFile:  false,
		markdownIncludeTOC: true,

		cacheEnabled:        true,
		cacheDirectory:      "cache",
		cacheCompression:    false,
		compressionLevel:    6,
		maxSessions:         50,
		autoCleanup:         false,
		cleanupMaxAgeDays:   30,
		cleanupKeepComplete: 10,
		sessionTimeoutHours: 24,

		chunkMaxSize:     0,
		chunkPages:       0,
		markdownOverhead: 1.2,
		pdfOverhead:      2.5,

		excludePatterns:  nil,
		trackingKeys:     nil,
		approvedURLsFile: "",

		bodySpecificityBias:                 0.75,
		linkDensityThreshold:                0.2,
		menuLinkCountThreshold:              5,
		scoreMultiplierNonWhitespaceDivisor: 50.0,
		scoreMultiplierParagraphs:           5.0,
		scoreMultiplierHeadings:             10.0,
		scoreMultiplierCodeBlocks:           15.0,
		scoreMultiplierListItems:            2.0,
		thresholdMinNonWhitespace:           50,
		thresholdMaxLinkDensity:             0.8,
	}
	return &defaultConfig
}

func (c *Config) WithSeedURL(u url.URL) *Config {
	c.seedURL = u
	return c
}

func (c *Config) WithAllowedHosts(hosts map[string]struct{}) *Config {
	c.allowedHosts = hosts
	return c
}

func (c *Config) WithSameHostOnly(v bool) *Config {
	c.sameHostOnly = v
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxPages(pages int) *Config {
	c.maxPages = pages
	return c
}

func (c *Config) WithMaxURLLength(n int) *Config {
	c.maxURLLength = n
	return c
}

func (c *Config) WithPathScopingEnabled(v bool) *Config {
	c.pathScopingEnabled = v
	return c
}

func (c *Config) WithAllowParentLevels(n int) *Config {
	c.allowParentLevels = n
	return c
}

func (c *Config) WithAllowHomepage(v bool) *Config {
	c.allowHomepage = v
	return c
}

func (c *Config) WithAllowSiblings(v bool) *Config {
	c.allowSiblings = v
	return c
}

func (c *Config) WithAllowNavigation(p NavigationPolicy) *Config {
	c.allowNavigation = p
	return c
}

func (c *Config) WithRequestDelay(d time.Duration) *Config {
	c.requestDelay = d
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithRespectRobots(v bool) *Config {
	c.respectRobots = v
	return c
}

func (c *Config) WithRobotsTTL(d time.Duration) *Config {
	c.robotsTTL = d
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(d time.Duration) *Config {
	c.backoffInitialDuration = d
	return c
}

func (c *Config) WithBackoffMultiplier(m float64) *Config {
	c.backoffMultiplier = m
	return c
}

func (c *Config) WithBackoffMaxDuration(d time.Duration) *Config {
	c.backoffMaxDuration = d
	return c
}

func (c *Config) WithCooldownPages(n int) *Config {
	c.cooldownPages = n
	return c
}

func (c *Config) WithBaseReadingTime(min, max time.Duration) *Config {
	c.baseReadingMin = min
	c.baseReadingMax = max
	return c
}

func (c *Config) WithNavigationDecision(min, max time.Duration) *Config {
	c.navigationDecisionMin = min
	c.navigationDecisionMax = max
	return c
}

func (c *Config) WithVariancePercent(p int) *Config {
	c.variancePercent = p
	return c
}

func (c *Config) WithSessionBreakAfter(pages int) *Config {
	c.sessionBreakAfter = pages
	return c
}

func (c *Config) WithWeekendFactor(f float64) *Config {
	c.weekendFactor = f
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithIncludeMenus(v bool) *Config {
	c.includeMenus = v
	return c
}

func (c *Config) WithIncludeImages(v bool) *Config {
	c.includeImages = v
	return c
}

func (c *Config) WithRemoveImages(v bool) *Config {
	c.removeImages = v
	return c
}

func (c *Config) WithMinContentLength(n int) *Config {
	c.minContentLength = n
	return c
}

func (c *Config) WithIncludeMetadata(v bool) *Config {
	c.includeMetadata = v
	return c
}

func (c *Config) WithMaxImageSize(n int64) *Config {
	c.maxImageSize = n
	return c
}

func (c *Config) WithOutputFormat(format string) *Config {
	c.outputFormat = format
	return c
}

func (c *Config) WithOutputFilename(name string) *Config {
	c.outputFilename = name
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithIncludeFlagged(v bool) *Config {
	c.includeFlagged = v
	return c
}

func (c *Config) WithPDFPageSize(size string) *Config {
	c.pdfPageSize = size
	return c
}

func (c *Config) WithPDFOrientation(o string) *Config {
	c.pdfOrientation = o
	return c
}

func (c *Config) WithPDFIncludeTOC(v bool) *Config {
	c.pdfIncludeTOC = v
	return c
}

func (c *Config) WithMarkdownMultiFile(v bool) *Config {
	c.markdownMultiFile = v
	return c
}

func (c *Config) WithMarkdownIncludeTOC(v bool) *Config {
	c.markdownIncludeTOC = v
	return c
}

func (c *Config) WithCacheEnabled(v bool) *Config {
	c.cacheEnabled = v
	return c
}

func (c *Config) WithCacheDirectory(dir string) *Config {
	c.cacheDirectory = dir
	return c
}

func (c *Config) WithCacheCompression(v bool) *Config {
	c.cacheCompression = v
	return c
}

func (c *Config) WithCompressionLevel(level int) *Config {
	c.compressionLevel = level
	return c
}

func (c *Config) WithMaxSessions(n int) *Config {
	c.maxSessions = n
	return c
}

func (c *Config) WithAutoCleanup(v bool) *Config {
	c.autoCleanup = v
	return c
}

func (c *Config) WithCleanupMaxAgeDays(days int) *Config {
	c.cleanupMaxAgeDays = days
	return c
}

func (c *Config) WithCleanupKeepCompleted(n int) *Config {
	c.cleanupKeepComplete = n
	return c
}

func (c *Config) WithSessionTimeoutHours(hours int) *Config {
	c.sessionTimeoutHours = hours
	return c
}

func (c *Config) WithChunkMaxSize(bytes int64) *Config {
	c.chunkMaxSize = bytes
	return c
}

func (c *Config) WithChunkPages(pages int) *Config {
	c.chunkPages = pages
	return c
}

func (c *Config) WithMarkdownOverhead(f float64) *Config {
	c.markdownOverhead = f
	return c
}

func (c *Config) WithPDFOverhead(f float64) *Config {
	c.pdfOverhead = f
	return c
}

func (c *Config) WithExcludePatterns(patterns []string) *Config {
	c.excludePatterns = patterns
	return c
}

func (c *Config) WithTrackingKeys(keys []string) *Config {
	c.trackingKeys = keys
	return c
}

func (c *Config) WithApprovedURLsFile(path string) *Config {
	c.approvedURLsFile = path
	return c
}

func (c *Config) WithLinkDensityThreshold(threshold float64) *Config {
	c.linkDensityThreshold = threshold
	return c
}

func (c *Config) WithMenuLinkCountThreshold(n int) *Config {
	c.menuLinkCountThreshold = n
	return c
}

func (c *Config) WithBodySpecificityBias(bias float64) *Config {
	c.bodySpecificityBias = bias
	return c
}

func (c *Config) Build() (Config, error) {
	if c.seedURL.Host == "" || c.seedURL.Scheme == "" {
		return Config{}, fmt.Errorf("%w: seed URL must be absolute", ErrInvalidConfig)
	}
	if c.seedURL.Scheme != "http" && c.seedURL.Scheme != "https" {
		return Config{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, c.seedURL.Scheme)
	}
	if c.outputFormat != "markdown" && c.outputFormat != "pdf" {
		return Config{}, fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.outputFormat)
	}
	if c.maxDepth < 0 || c.maxPages < 0 {
		return Config{}, fmt.Errorf("%w: limits cannot be negative", ErrInvalidConfig)
	}
	if c.compressionLevel < 1 || c.compressionLevel > 9 {
		return Config{}, fmt.Errorf("%w: compression level must be 1-9", ErrInvalidConfig)
	}
	switch c.allowNavigation {
	case NavigationNone, NavigationLimited, NavigationAll:
	default:
		return Config{}, fmt.Errorf("%w: unknown navigation policy %q", ErrInvalidConfig, c.allowNavigation)
	}
	if c.baseReadingMax < c.baseReadingMin {
		c.baseReadingMax = c.baseReadingMin
	}
	if c.navigationDecisionMax < c.navigationDecisionMin {
		c.navigationDecisionMax = c.navigationDecisionMin
	}

	// If allowedHosts is empty, default to the seed hostname
	if len(c.allowedHosts) == 0 {
		c.allowedHosts = map[string]struct{}{
			c.seedURL.Host: {},
		}
	}

	return *c, nil
}

// digestDTO is the canonical-JSON projection hashed into the config
// digest. Only sections that change crawl semantics participate: two
// sessions with the same digest are resume-compatible.
type digestDTO struct {
	Crawling struct {
		MaxDepth      int     `json:"max_depth"`
		MaxPages      int     `json:"max_pages"`
		RequestDelay  float64 `json:"request_delay"`
		RespectRobots bool    `json:"respect_robots"`
		UserAgent     string  `json:"user_agent"`
	} `json:"crawling"`
	Content struct {
		IncludeMenus     bool `json:"include_menus"`
		IncludeImages    bool `json:"include_images"`
		RemoveImages     bool `json:"remove_images"`
		MinContentLength int  `json:"min_content_length"`
		IncludeMetadata  bool `json:"include_metadata"`
	} `json:"content"`
	Filters struct {
		ExcludePatterns []string `json:"exclude_patterns"`
		TrackingKeys    []string `json:"tracking_keys"`
	} `json:"filters"`
	PathScoping struct {
		Enabled           bool   `json:"enabled"`
		AllowParentLevels int    `json:"allow_parent_levels"`
		AllowHomepage     bool   `json:"allow_homepage"`
		AllowSiblings     bool   `json:"allow_siblings"`
		AllowNavigation   string `json:"allow_navigation"`
	} `json:"path_scoping"`
}

// Digest returns the first 8 hex characters of the blake3 hash over the
// crawl-semantic sections. It identifies resume-compatible sessions and
// is embedded in session ids.
func (c Config) Digest() string {
	var dto digestDTO
	dto.Crawling.MaxDepth = c.maxDepth
	dto.Crawling.MaxPages = c.maxPages
	dto.Crawling.RequestDelay = c.requestDelay.Seconds()
	dto.Crawling.RespectRobots = c.respectRobots
	dto.Crawling.UserAgent = c.userAgent
	dto.Content.IncludeMenus = c.includeMenus
	dto.Content.IncludeImages = c.includeImages
	dto.Content.RemoveImages = c.removeImages
	dto.Content.MinContentLength = c.minContentLength
	dto.Content.IncludeMetadata = c.includeMetadata
	dto.Filters.ExcludePatterns = sortedCopy(c.excludePatterns)
	dto.Filters.TrackingKeys = sortedCopy(c.trackingKeys)
	dto.PathScoping.Enabled = c.pathScopingEnabled
	dto.PathScoping.AllowParentLevels = c.allowParentLevels
	dto.PathScoping.AllowHomepage = c.allowHomepage
	dto.PathScoping.AllowSiblings = c.allowSiblings
	dto.PathScoping.AllowNavigation = string(c.allowNavigation)

	// encoding/json emits struct fields in declaration order, which
	// keeps the digest stable across runs.
	raw, err := json.Marshal(dto)
	if err != nil {
		return "00000000"
	}
	return hashutil.ShortHash(raw, 8)
}

func sortedCopy(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

//===============
// File loading
//===============

// WithConfigFile loads a config file and merges it over the defaults for
// the given seed URL. The format is chosen by extension: .json, .yaml/.yml
// or .toml.
func WithConfigFile(path string, seedURL url.URL) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	dto := configDTO{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(content, &dto)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, &dto)
	case ".toml":
		err = toml.Unmarshal(content, &dto)
	default:
		return Config{}, fmt.Errorf("%w: unsupported extension %q", ErrConfigParsingFail, filepath.Ext(path))
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(dto, seedURL)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides mutates the builder from recognized environment
// variables. Invalid values are ignored; the variable simply does not
// override.
func (c *Config) ApplyEnvOverrides() *Config {
	if v := os.Getenv("CRAWL_DELAY_OVERRIDE"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			c.requestDelay = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.maxDepth = n
		}
	}
	if v := os.Getenv("MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.maxPages = n
		}
	}
	if v := os.Getenv("TIMEOUT"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			c.timeout = time.Duration(secs * float64(time.Second))
		}
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.userAgent = v
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.maxAttempt = n
		}
	}
	if v := os.Getenv("INCLUDE_IMAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.includeImages = b
		}
	}
	if v := os.Getenv("OUTPUT_FILENAME"); v != "" {
		c.outputFilename = v
	}
	return c
}

package config

import (
	"net/url"
	"time"
)

// Value-copy getters. Config is immutable after Build; maps and slices
// are copied so callers cannot mutate shared state.

func (c Config) SeedURL() url.URL {
	return c.seedURL
}

func (c Config) AllowedHosts() map[string]struct{} {
	hosts := make(map[string]struct{}, len(c.allowedHosts))
	for h := range c.allowedHosts {
		hosts[h] = struct{}{}
	}
	return hosts
}

func (c Config) SameHostOnly() bool {
	return c.sameHostOnly
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxPages() int {
	return c.maxPages
}

func (c Config) MaxURLLength() int {
	return c.maxURLLength
}

func (c Config) PathScopingEnabled() bool {
	return c.pathScopingEnabled
}

func (c Config) AllowParentLevels() int {
	return c.allowParentLevels
}

func (c Config) AllowHomepage() bool {
	return c.allowHomepage
}

func (c Config) AllowSiblings() bool {
	return c.allowSiblings
}

func (c Config) AllowNavigation() NavigationPolicy {
	return c.allowNavigation
}

func (c Config) RequestDelay() time.Duration {
	return c.requestDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) RespectRobots() bool {
	return c.respectRobots
}

func (c Config) RobotsTTL() time.Duration {
	return c.robotsTTL
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) CooldownPages() int {
	return c.cooldownPages
}

func (c Config) BaseReadingMin() time.Duration {
	return c.baseReadingMin
}

func (c Config) BaseReadingMax() time.Duration {
	return c.baseReadingMax
}

func (c Config) NavigationDecisionMin() time.Duration {
	return c.navigationDecisionMin
}

func (c Config) NavigationDecisionMax() time.Duration {
	return c.navigationDecisionMax
}

func (c Config) VariancePercent() int {
	return c.variancePercent
}

func (c Config) SessionBreakAfter() int {
	return c.sessionBreakAfter
}

func (c Config) WeekendFactor() float64 {
	return c.weekendFactor
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) IncludeMenus() bool {
	return c.includeMenus
}

func (c Config) IncludeImages() bool {
	return c.includeImages
}

func (c Config) RemoveImages() bool {
	return c.removeImages
}

func (c Config) MinContentLength() int {
	return c.minContentLength
}

func (c Config) IncludeMetadata() bool {
	return c.includeMetadata
}

func (c Config) MaxImageSize() int64 {
	return c.maxImageSize
}

func (c Config) OutputFormat() string {
	return c.outputFormat
}

func (c Config) OutputFilename() string {
	return c.outputFilename
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) IncludeFlagged() bool {
	return c.includeFlagged
}

func (c Config) PDFPageSize() string {
	return c.pdfPageSize
}

func (c Config) PDFOrientation() string {
	return c.pdfOrientation
}

func (c Config) PDFIncludeTOC() bool {
	return c.pdfIncludeTOC
}

func (c Config) MarkdownMultiFile() bool {
	return c.markdownMultiFile
}

func (c Config) MarkdownIncludeTOC() bool {
	return c.markdownIncludeTOC
}

func (c Config) CacheEnabled() bool {
	return c.cacheEnabled
}

func (c Config) CacheDirectory() string {
	return c.cacheDirectory
}

func (c Config) CacheCompression() bool {
	return c.cacheCompression
}

func (c Config) CompressionLevel() int {
	return c.compressionLevel
}

func (c Config) MaxSessions() int {
	return c.maxSessions
}

func (c Config) AutoCleanup() bool {
	return c.autoCleanup
}

func (c Config) CleanupMaxAgeDays() int {
	return c.cleanupMaxAgeDays
}

func (c Config) CleanupKeepCompleted() int {
	return c.cleanupKeepComplete
}

func (c Config) SessionTimeoutHours() int {
	return c.sessionTimeoutHours
}

func (c Config) ChunkMaxSize() int64 {
	return c.chunkMaxSize
}

func (c Config) ChunkPages() int {
	return c.chunkPages
}

func (c Config) MarkdownOverhead() float64 {
	return c.markdownOverhead
}

func (c Config) PDFOverhead() float64 {
	return c.pdfOverhead
}

func (c Config) ExcludePatterns() []string {
	patterns := make([]string, len(c.excludePatterns))
	copy(patterns, c.excludePatterns)
	return patterns
}

func (c Config) TrackingKeys() []string {
	keys := make([]string, len(c.trackingKeys))
	copy(keys, c.trackingKeys)
	return keys
}

// TrackingKeySet returns the configured tracking keys as a lookup set,
// or nil when unconfigured so callers fall back to the default set.
func (c Config) TrackingKeySet() map[string]struct{} {
	if len(c.trackingKeys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(c.trackingKeys))
	for _, k := range c.trackingKeys {
		set[k] = struct{}{}
	}
	return set
}

func (c Config) ApprovedURLsFile() string {
	return c.approvedURLsFile
}

func (c Config) BodySpecificityBias() float64 {
	return c.bodySpecificityBias
}

func (c Config) LinkDensityThreshold() float64 {
	return c.linkDensityThreshold
}

func (c Config) MenuLinkCountThreshold() int {
	return c.menuLinkCountThreshold
}

func (c Config) ScoreMultiplierNonWhitespaceDivisor() float64 {
	return c.scoreMultiplierNonWhitespaceDivisor
}

func (c Config) ScoreMultiplierParagraphs() float64 {
	return c.scoreMultiplierParagraphs
}

func (c Config) ScoreMultiplierHeadings() float64 {
	return c.scoreMultiplierHeadings
}

func (c Config) ScoreMultiplierCodeBlocks() float64 {
	return c.scoreMultiplierCodeBlocks
}

func (c Config) ScoreMultiplierListItems() float64 {
	return c.scoreMultiplierListItems
}

func (c Config) ThresholdMinNonWhitespace() int {
	return c.thresholdMinNonWhitespace
}

func (c Config) ThresholdMaxLinkDensity() float64 {
	return c.thresholdMaxLinkDensity
}

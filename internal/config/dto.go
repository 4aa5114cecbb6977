package config

import (
	"fmt"
	"net/url"
	"time"
)

// configDTO mirrors the documented file format, sectioned the same way
// the options are documented. Zero values mean "keep the default"; the
// merge below only overrides what the file actually sets.
type configDTO struct {
	Crawling struct {
		MaxDepth      int     `json:"max_depth" yaml:"max_depth" toml:"max_depth"`
		MaxPages      int     `json:"max_pages" yaml:"max_pages" toml:"max_pages"`
		RequestDelay  float64 `json:"request_delay" yaml:"request_delay" toml:"request_delay"`
		RespectRobots *bool   `json:"respect_robots" yaml:"respect_robots" toml:"respect_robots"`
		UserAgent     string  `json:"user_agent" yaml:"user_agent" toml:"user_agent"`
		Timeout       float64 `json:"timeout" yaml:"timeout" toml:"timeout"`
		MaxRetries    int     `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
	} `json:"crawling" yaml:"crawling" toml:"crawling"`

	PathScoping struct {
		Enabled           *bool  `json:"enabled" yaml:"enabled" toml:"enabled"`
		AllowParentLevels int    `json:"allow_parent_levels" yaml:"allow_parent_levels" toml:"allow_parent_levels"`
		AllowHomepage     *bool  `json:"allow_homepage" yaml:"allow_homepage" toml:"allow_homepage"`
		AllowSiblings     *bool  `json:"allow_siblings" yaml:"allow_siblings" toml:"allow_siblings"`
		AllowNavigation   string `json:"allow_navigation" yaml:"allow_navigation" toml:"allow_navigation"`
	} `json:"path_scoping" yaml:"path_scoping" toml:"path_scoping"`

	Content struct {
		IncludeMenus     *bool `json:"include_menus" yaml:"include_menus" toml:"include_menus"`
		IncludeImages    *bool `json:"include_images" yaml:"include_images" toml:"include_images"`
		RemoveImages     *bool `json:"remove_images" yaml:"remove_images" toml:"remove_images"`
		MinContentLength int   `json:"min_content_length" yaml:"min_content_length" toml:"min_content_length"`
		IncludeMetadata  *bool `json:"include_metadata" yaml:"include_metadata" toml:"include_metadata"`
	} `json:"content" yaml:"content" toml:"content"`

	HumanBehavior struct {
		BaseReadingTime    []float64 `json:"base_reading_time" yaml:"base_reading_time" toml:"base_reading_time"`
		NavigationDecision []float64 `json:"navigation_decision" yaml:"navigation_decision" toml:"navigation_decision"`
		VariancePercent    int       `json:"variance_percent" yaml:"variance_percent" toml:"variance_percent"`
		SessionBreakAfter  int       `json:"session_break_after" yaml:"session_break_after" toml:"session_break_after"`
		WeekendFactor      float64   `json:"weekend_factor" yaml:"weekend_factor" toml:"weekend_factor"`
	} `json:"human_behavior" yaml:"human_behavior" toml:"human_behavior"`

	PDF struct {
		OutputFilename string `json:"output_filename" yaml:"output_filename" toml:"output_filename"`
		PageSize       string `json:"page_size" yaml:"page_size" toml:"page_size"`
		Orientation    string `json:"orientation" yaml:"orientation" toml:"orientation"`
		IncludeTOC     *bool  `json:"include_toc" yaml:"include_toc" toml:"include_toc"`
	} `json:"pdf" yaml:"pdf" toml:"pdf"`

	Markdown struct {
		OutputFilename string `json:"output_filename" yaml:"output_filename" toml:"output_filename"`
		MultiFile      *bool  `json:"multi_file" yaml:"multi_file" toml:"multi_file"`
		IncludeTOC     *bool  `json:"include_toc" yaml:"include_toc" toml:"include_toc"`
	} `json:"markdown" yaml:"markdown" toml:"markdown"`

	Cache struct {
		Enabled          *bool  `json:"enabled" yaml:"enabled" toml:"enabled"`
		Directory        string `json:"directory" yaml:"directory" toml:"directory"`
		Compression      *bool  `json:"compression" yaml:"compression" toml:"compression"`
		CompressionLevel int    `json:"compression_level" yaml:"compression_level" toml:"compression_level"`
		MaxSessions      int    `json:"max_sessions" yaml:"max_sessions" toml:"max_sessions"`
		AutoCleanup      *bool  `json:"auto_cleanup" yaml:"auto_cleanup" toml:"auto_cleanup"`
		CleanupSettings  struct {
			MaxAgeDays    int `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
			KeepCompleted int `json:"keep_completed" yaml:"keep_completed" toml:"keep_completed"`
		} `json:"cleanup_settings" yaml:"cleanup_settings" toml:"cleanup_settings"`
		SessionTimeoutHours int `json:"session_timeout_hours" yaml:"session_timeout_hours" toml:"session_timeout_hours"`
	} `json:"cache" yaml:"cache" toml:"cache"`

	Chunking struct {
		DefaultMaxSize string `json:"default_max_size" yaml:"default_max_size" toml:"default_max_size"`
		SizeEstimation struct {
			MarkdownOverhead float64 `json:"markdown_overhead" yaml:"markdown_overhead" toml:"markdown_overhead"`
			PDFOverhead      float64 `json:"pdf_overhead" yaml:"pdf_overhead" toml:"pdf_overhead"`
		} `json:"size_estimation" yaml:"size_estimation" toml:"size_estimation"`
	} `json:"chunking" yaml:"chunking" toml:"chunking"`

	Filters struct {
		ExcludePatterns []string `json:"exclude_patterns" yaml:"exclude_patterns" toml:"exclude_patterns"`
		TrackingKeys    []string `json:"tracking_keys" yaml:"tracking_keys" toml:"tracking_keys"`
	} `json:"filters" yaml:"filters" toml:"filters"`
}

// ParseByteSize parses a human-readable size like "10MB", "512KB" or
// "1.5 GB" into bytes. A bare number is bytes.
func ParseByteSize(s string) (int64, error) {
	var value float64
	var unit string
	trimmed := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			trimmed = append(trimmed, s[i])
		}
	}
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("%w: empty size", ErrInvalidConfig)
	}
	if _, err := fmt.Sscanf(string(trimmed), "%f%s", &value, &unit); err != nil {
		if _, err2 := fmt.Sscanf(string(trimmed), "%f", &value); err2 != nil {
			return 0, fmt.Errorf("%w: cannot parse size %q", ErrInvalidConfig, s)
		}
	}
	if value < 0 {
		return 0, fmt.Errorf("%w: negative size %q", ErrInvalidConfig, s)
	}

	multiplier := float64(1)
	switch {
	case unit == "" || equalFold(unit, "B"):
	case equalFold(unit, "KB") || equalFold(unit, "K"):
		multiplier = 1 << 10
	case equalFold(unit, "MB") || equalFold(unit, "M"):
		multiplier = 1 << 20
	case equalFold(unit, "GB") || equalFold(unit, "G"):
		multiplier = 1 << 30
	case equalFold(unit, "TB") || equalFold(unit, "T"):
		multiplier = 1 << 40
	default:
		return 0, fmt.Errorf("%w: unknown size unit %q", ErrInvalidConfig, unit)
	}
	return int64(value * multiplier), nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'a' && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if cb >= 'a' && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func newConfigFromDTO(dto configDTO, seedURL url.URL) (Config, error) {
	// Start with default config
	builder := WithDefault(seedURL)

	// Crawling
	if dto.Crawling.MaxDepth != 0 {
		builder.maxDepth = dto.Crawling.MaxDepth
	}
	if dto.Crawling.MaxPages != 0 {
		builder.maxPages = dto.Crawling.MaxPages
	}
	if dto.Crawling.RequestDelay != 0 {
		builder.requestDelay = secondsToDuration(dto.Crawling.RequestDelay)
	}
	if dto.Crawling.RespectRobots != nil {
		builder.respectRobots = *dto.Crawling.RespectRobots
	}
	if dto.Crawling.UserAgent != "" {
		builder.userAgent = dto.Crawling.UserAgent
	}
	if dto.Crawling.Timeout != 0 {
		builder.timeout = secondsToDuration(dto.Crawling.Timeout)
	}
	if dto.Crawling.MaxRetries != 0 {
		builder.maxAttempt = dto.Crawling.MaxRetries
	}

	// Path scoping
	if dto.PathScoping.Enabled != nil {
		builder.pathScopingEnabled = *dto.PathScoping.Enabled
	}
	if dto.PathScoping.AllowParentLevels != 0 {
		builder.allowParentLevels = dto.PathScoping.AllowParentLevels
	}
	if dto.PathScoping.AllowHomepage != nil {
		builder.allowHomepage = *dto.PathScoping.AllowHomepage
	}
	if dto.PathScoping.AllowSiblings != nil {
		builder.allowSiblings = *dto.PathScoping.AllowSiblings
	}
	if dto.PathScoping.AllowNavigation != "" {
		builder.allowNavigation = NavigationPolicy(dto.PathScoping.AllowNavigation)
	}

	// Content
	if dto.Content.IncludeMenus != nil {
		builder.includeMenus = *dto.Content.IncludeMenus
	}
	if dto.Content.IncludeImages != nil {
		builder.includeImages = *dto.Content.IncludeImages
	}
	if dto.Content.RemoveImages != nil {
		builder.removeImages = *dto.Content.RemoveImages
	}
	if dto.Content.MinContentLength != 0 {
		builder.minContentLength = dto.Content.MinContentLength
	}
	if dto.Content.IncludeMetadata != nil {
		builder.includeMetadata = *dto.Content.IncludeMetadata
	}

	// Human behavior; ranges are [min, max] second pairs
	if len(dto.HumanBehavior.BaseReadingTime) == 2 {
		builder.baseReadingMin = secondsToDuration(dto.HumanBehavior.BaseReadingTime[0])
		builder.baseReadingMax = secondsToDuration(dto.HumanBehavior.BaseReadingTime[1])
	}
	if len(dto.HumanBehavior.NavigationDecision) == 2 {
		builder.navigationDecisionMin = secondsToDuration(dto.HumanBehavior.NavigationDecision[0])
		builder.navigationDecisionMax = secondsToDuration(dto.HumanBehavior.NavigationDecision[1])
	}
	if dto.HumanBehavior.VariancePercent != 0 {
		builder.variancePercent = dto.HumanBehavior.VariancePercent
	}
	if dto.HumanBehavior.SessionBreakAfter != 0 {
		builder.sessionBreakAfter = dto.HumanBehavior.SessionBreakAfter
	}
	if dto.HumanBehavior.WeekendFactor != 0 {
		builder.weekendFactor = dto.HumanBehavior.WeekendFactor
	}

	// PDF
	if dto.PDF.OutputFilename != "" && builder.outputFormat == "pdf" {
		builder.outputFilename = dto.PDF.OutputFilename
	}
	if dto.PDF.PageSize != "" {
		builder.pdfPageSize = dto.PDF.PageSize
	}
	if dto.PDF.Orientation != "" {
		builder.pdfOrientation = dto.PDF.Orientation
	}
	if dto.PDF.IncludeTOC != nil {
		builder.pdfIncludeTOC = *dto.PDF.IncludeTOC
	}

	// Markdown
	if dto.Markdown.OutputFilename != "" && builder.outputFormat == "markdown" {
		builder.outputFilename = dto.Markdown.OutputFilename
	}
	if dto.Markdown.MultiFile != nil {
		builder.markdownMultiFile = *dto.Markdown.MultiFile
	}
	if dto.Markdown.IncludeTOC != nil {
		builder.markdownIncludeTOC = *dto.Markdown.IncludeTOC
	}

	// Cache
	if dto.Cache.Enabled != nil {
		builder.cacheEnabled = *dto.Cache.Enabled
	}
	if dto.Cache.Directory != "" {
		builder.cacheDirectory = dto.Cache.Directory
	}
	if dto.Cache.Compression != nil {
		builder.cacheCompression = *dto.Cache.Compression
	}
	if dto.Cache.CompressionLevel != 0 {
		builder.compressionLevel = dto.Cache.CompressionLevel
	}
	if dto.Cache.MaxSessions != 0 {
		builder.maxSessions = dto.Cache.MaxSessions
	}
	if dto.Cache.AutoCleanup != nil {
		builder.autoCleanup = *dto.Cache.AutoCleanup
	}
	if dto.Cache.CleanupSettings.MaxAgeDays != 0 {
		builder.cleanupMaxAgeDays = dto.Cache.CleanupSettings.MaxAgeDays
	}
	if dto.Cache.CleanupSettings.KeepCompleted != 0 {
		builder.cleanupKeepComplete = dto.Cache.CleanupSettings.KeepCompleted
	}
	if dto.Cache.SessionTimeoutHours != 0 {
		builder.sessionTimeoutHours = dto.Cache.SessionTimeoutHours
	}

	// Chunking
	if dto.Chunking.DefaultMaxSize != "" {
		size, err := ParseByteSize(dto.Chunking.DefaultMaxSize)
		if err != nil {
			return Config{}, err
		}
		builder.chunkMaxSize = size
	}
	if dto.Chunking.SizeEstimation.MarkdownOverhead != 0 {
		builder.markdownOverhead = dto.Chunking.SizeEstimation.MarkdownOverhead
	}
	if dto.Chunking.SizeEstimation.PDFOverhead != 0 {
		builder.pdfOverhead = dto.Chunking.SizeEstimation.PDFOverhead
	}

	// Filters
	if len(dto.Filters.ExcludePatterns) > 0 {
		builder.excludePatterns = dto.Filters.ExcludePatterns
	}
	if len(dto.Filters.TrackingKeys) > 0 {
		builder.trackingKeys = dto.Filters.TrackingKeys
	}

	return builder.Build()
}

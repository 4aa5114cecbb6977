package cache

import "time"

// Session status machine: active -> completed | failed, failed -> active
// on resume. "partial" is a doctor-reported view of a session with
// missing or corrupt pages and is never persisted.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

// SessionMetadata is the on-disk session descriptor, rewritten
// atomically on every page commit and status transition. Field names
// are part of the on-disk format; do not rename without a cache
// migration.
type SessionMetadata struct {
	SessionID       string    `json:"session_id"`
	BaseURL         string    `json:"base_url"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	LastModified    time.Time `json:"last_modified"`
	PagesScraped    int       `json:"pages_scraped"`
	ConfigHash      string    `json:"config_hash"`
	ExcludePatterns []string  `json:"exclude_patterns"`
	CacheSize       int64     `json:"cache_size"`

	// Why the session failed ("cancelled", a fetch message). Set on
	// the failed transition, cleared when the session completes or is
	// resumed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// LoadReport describes how a session read went. Corrupt page files are
// skipped rather than failing the load; Partial is set when any page
// covered by the metadata snapshot could not be returned.
type LoadReport struct {
	PagesRead    int
	CorruptPages int
	Partial      bool
}

// ResumeState carries what the orchestrator needs to continue an
// interrupted session: every URL already persisted (to rebuild the
// admitted set) and the outbound links harvested from the most recent
// pages (to reseed the frontier).
type ResumeState struct {
	PersistedURLs []string
	RecentLinks   []string
}

// CacheStats is an aggregate view over every session under the cache
// root.
type CacheStats struct {
	TotalSessions     int
	ActiveSessions    int
	CompletedSessions int
	FailedSessions    int
	TotalPages        int
	TotalBytes        int64
}

// CleanupResult reports what a cleanup pass removed.
type CleanupResult struct {
	Removed    []string
	BytesFreed int64
}

// PreviewSession holds user-reviewed URL decisions from a discovery
// run. Immutable once consumed by admission.
type PreviewSession struct {
	PreviewID    string    `json:"preview_id"`
	BaseURL      string    `json:"base_url"`
	ApprovedURLs []string  `json:"approved_urls"`
	ExcludedURLs []string  `json:"excluded_urls"`
	CreatedAt    time.Time `json:"created_at"`
}

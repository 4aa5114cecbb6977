package scheduler

import (
	"time"

	"github.com/rohmanhakim/site-archiver/internal/cache"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/storage"
)

// ReasonCancelled marks a failed session that ended on a cancellation
// signal rather than an error.
const ReasonCancelled = "cancelled"

// Sink is the full observational surface the orchestrator threads to
// its collaborators. metadata.Recorder and metadata.NoopSink both
// satisfy it.
type Sink interface {
	metadata.MetadataSink
	metadata.CrawlFinalizer
	RecordAssetFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		retryCount int,
	)
}

// CrawlingExecution is the outcome of one crawl run.
type CrawlingExecution struct {
	SessionID     string
	Status        cache.Status
	Reason        string
	PagesArchived int
	ErrorCount    int
	AssetCount    int
	Duration      time.Duration

	// AdmittedURLs is populated only on dry runs, in admission order.
	AdmittedURLs []string

	// WriteResults is populated only in direct-output mode, where each
	// page lands as its own markdown file instead of a cache record.
	WriteResults []storage.WriteResult
}

// Completed reports whether the run finished the frontier and produced
// at least one record (or admitted at least one URL on a dry run).
func (e CrawlingExecution) Completed() bool {
	if e.Status != cache.StatusCompleted {
		return false
	}
	return e.PagesArchived > 0 || len(e.AdmittedURLs) > 0
}

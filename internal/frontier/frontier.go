package frontier

import (
	"container/heap"
	"sync"

	"github.com/rohmanhakim/site-archiver/internal/config"
)

/*
Frontier Responsibilities
- Maintain priority ordering (priority desc, depth asc, submission order)
- Deduplicate URLs by canonical string form
- Enforce the depth ceiling at submission time
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
The page-count limit is an admission concern; the frontier never
counts pages.
*/

// CrawlFrontier is the ordered, deduplicated set of admitted URLs
// awaiting fetch. Safe for concurrent Submit/Dequeue.
type CrawlFrontier struct {
	mu       sync.Mutex
	pending  entryHeap
	seen     Set[string]
	maxDepth int
	nextSeq  uint64
}

func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{}
}

// Init wires the frontier to the session config. Must be called before
// Submit or Dequeue.
func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = entryHeap{}
	f.seen = NewSet[string]()
	f.maxDepth = cfg.MaxDepth()
	f.nextSeq = 0
}

// Submit offers an admitted candidate to the frontier. Returns false
// when the URL was already seen or its depth exceeds the ceiling.
//
// Deduplication keys on url.URL.String(), not the struct value: url.URL
// carries a *Userinfo pointer, so semantically equal URLs can compare
// unequal as map keys.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.discoveryMetadata.depth
	if f.maxDepth > 0 && depth > f.maxDepth {
		return false
	}

	target := candidate.targetURL
	key := target.String()
	if f.seen.Contains(key) {
		return false
	}
	f.seen.Add(key)

	token := CrawlToken{
		url:           target,
		depth:         depth,
		priority:      candidate.priority,
		referrer:      candidate.referrer,
		delayOverride: candidate.discoveryMetadata.delayOverride,
	}
	heap.Push(&f.pending, orderedEntry{token: token, seq: f.nextSeq})
	f.nextSeq++
	return true
}

// Dequeue removes and returns the best pending token. The second return
// is false when the frontier is empty.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pending.Len() == 0 {
		return CrawlToken{}, false
	}
	entry := heap.Pop(&f.pending).(orderedEntry)
	return entry.token, true
}

// Size reports the number of pending tokens.
func (f *CrawlFrontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

// Seen reports whether a URL (canonical string form) was ever submitted,
// whether or not it has been dequeued since.
func (f *CrawlFrontier) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Contains(key)
}

// MarkSeen records a URL as already handled without enqueueing it.
// Resume uses this to suppress re-admission of cached pages.
func (f *CrawlFrontier) MarkSeen(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen.Add(key)
}

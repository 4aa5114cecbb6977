package frontier

// orderedEntry is one heap slot. seq preserves submission order among
// entries with equal priority and depth.
type orderedEntry struct {
	token CrawlToken
	seq   uint64
}

// entryHeap orders the frontier: priority descending, then depth
// ascending, then submission order. Implements container/heap.Interface.
type entryHeap []orderedEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].token.priority != h[j].token.priority {
		return h[i].token.priority > h[j].token.priority
	}
	if h[i].token.depth != h[j].token.depth {
		return h[i].token.depth < h[j].token.depth
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(orderedEntry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

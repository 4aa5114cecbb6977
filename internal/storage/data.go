package storage

// WriteResult identifies one markdown file written to the output tree.
// The URL hash doubles as the filename stem, so two writes of the same
// canonical URL land on the same path.
type WriteResult struct {
	urlHash     string
	path        string
	contentHash string
}

func NewWriteResult(
	urlHash string,
	path string,
	contentHash string,
) WriteResult {
	return WriteResult{
		urlHash:     urlHash,
		path:        path,
		contentHash: contentHash,
	}
}

func (w *WriteResult) URLHash() string {
	return w.urlHash
}

func (w *WriteResult) Path() string {
	return w.path
}

// ContentHash is the hash of the written body, frontmatter included.
func (w *WriteResult) ContentHash() string {
	return w.contentHash
}

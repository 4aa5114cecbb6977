package assembler

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
)

/*
Responsibilities
- Split a session's records into size- or page-bounded chunks
- Delegate per-chunk rendering to the wrapped format writer
- Emit the chunk index artifact listing every chunk and page

Output Characteristics
- <prefix>_chunk_NNN_of_MMM.<ext> plus <prefix>_INDEX.<ext>
- Contiguous, deterministic partitioning for a given session and config
*/

// imageWeightBytes is the per-image contribution to a record's size
// estimate. Image bytes are not loaded during partitioning.
const imageWeightBytes = 50 * 1024

// ChunkNav carries the neighbouring chunk file names so a writer can
// emit navigation links. Empty strings mark the ends of the sequence.
type ChunkNav struct {
	Prev string
	Next string
}

// ChunkInfo describes one chunk's place in the partition. Page
// ordinals are 1-based positions within the assembled session.
type ChunkInfo struct {
	FileName       string
	Index          int
	Total          int
	FirstPage      int
	LastPage       int
	EstimatedBytes int64
}

// IndexEntry maps one page to the chunk file that contains it.
type IndexEntry struct {
	Title     string
	URL       string
	ChunkFile string
}

// ChunkWriter is the capability a format generator exposes to the
// chunker: render a bounded slice of records to one file, and render
// the index artifact.
type ChunkWriter interface {
	WriteChunk(records []record.PageRecord, baseURL string, path string, info ChunkInfo, nav ChunkNav) failure.ClassifiedError
	WriteIndex(path string, baseURL string, chunks []ChunkInfo, pages []IndexEntry) failure.ClassifiedError
	Extension() string
	OverheadFactor() float64
}

type ChunkParam struct {
	outputDir     string
	prefix        string
	maxChunkBytes int64
	chunkPages    int
}

func NewChunkParam(outputDir string, prefix string, maxChunkBytes int64, chunkPages int) ChunkParam {
	return ChunkParam{
		outputDir:     outputDir,
		prefix:        prefix,
		maxChunkBytes: maxChunkBytes,
		chunkPages:    chunkPages,
	}
}

func (p ChunkParam) OutputDir() string {
	return p.outputDir
}

func (p ChunkParam) Prefix() string {
	return p.prefix
}

func (p ChunkParam) MaxChunkBytes() int64 {
	return p.maxChunkBytes
}

func (p ChunkParam) ChunkPages() int {
	return p.chunkPages
}

// Chunker decorates a ChunkWriter with partitioning. Size-based
// partitioning takes precedence when both bounds are configured.
type Chunker struct {
	writer       ChunkWriter
	metadataSink metadata.MetadataSink
	param        ChunkParam
}

func NewChunker(writer ChunkWriter, metadataSink metadata.MetadataSink, param ChunkParam) Chunker {
	return Chunker{
		writer:       writer,
		metadataSink: metadataSink,
		param:        param,
	}
}

var _ Generator = (*Chunker)(nil)

func (c *Chunker) Generate(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError) {
	spans, err := c.partition(records)
	if err != nil {
		c.recordError("Chunker.Generate", err, baseURL)
		return nil, err
	}

	ext := c.writer.Extension()
	total := len(spans)
	chunks := make([]ChunkInfo, total)
	names := make([]string, total)
	for i, span := range spans {
		names[i] = chunkFileName(c.param.prefix, i+1, total, ext)
		chunks[i] = ChunkInfo{
			FileName:       names[i],
			Index:          i + 1,
			Total:          total,
			FirstPage:      span.first + 1,
			LastPage:       span.last + 1,
			EstimatedBytes: span.estimatedBytes,
		}
	}

	var pages []IndexEntry
	for i, span := range spans {
		for _, rec := range records[span.first : span.last+1] {
			pages = append(pages, IndexEntry{
				Title:     rec.Title,
				URL:       rec.URL,
				ChunkFile: names[i],
			})
		}
	}

	paths := make([]string, 0, total+1)
	for i, span := range spans {
		nav := ChunkNav{}
		if i > 0 {
			nav.Prev = names[i-1]
		}
		if i < total-1 {
			nav.Next = names[i+1]
		}
		path := filepath.Join(c.param.outputDir, names[i])
		if writeErr := c.writer.WriteChunk(records[span.first:span.last+1], baseURL, path, chunks[i], nav); writeErr != nil {
			chunkErr := &AssemblerError{
				Message:   writeErr.Error(),
				Retryable: false,
				Cause:     ErrCauseChunkWriteFailed,
			}
			c.recordError("Chunker.Generate", chunkErr, baseURL)
			return nil, chunkErr
		}
		c.metadataSink.RecordArtifact(
			metadata.ArtifactChunk,
			path,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, baseURL),
				metadata.NewAttr(metadata.AttrCount, strconv.Itoa(span.last-span.first+1)),
			},
		)
		paths = append(paths, path)
	}

	indexPath := filepath.Join(c.param.outputDir, fmt.Sprintf("%s_INDEX.%s", c.param.prefix, ext))
	if indexErr := c.writer.WriteIndex(indexPath, baseURL, chunks, pages); indexErr != nil {
		wrapped := &AssemblerError{
			Message:   indexErr.Error(),
			Retryable: false,
			Cause:     ErrCauseIndexWriteFailed,
		}
		c.recordError("Chunker.Generate", wrapped, baseURL)
		return nil, wrapped
	}
	c.metadataSink.RecordArtifact(
		metadata.ArtifactChunkIndex,
		indexPath,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, baseURL),
			metadata.NewAttr(metadata.AttrCount, strconv.Itoa(total)),
		},
	)
	return append(paths, indexPath), nil
}

// span is a contiguous half-open record range [first, last] with its
// size estimate after the format overhead factor.
type span struct {
	first          int
	last           int
	estimatedBytes int64
}

func (c *Chunker) partition(records []record.PageRecord) ([]span, *AssemblerError) {
	if len(records) == 0 {
		return nil, &AssemblerError{
			Message:   "empty session",
			Retryable: false,
			Cause:     ErrCauseNoRecords,
		}
	}
	if c.param.maxChunkBytes > 0 {
		return c.partitionBySize(records), nil
	}
	if c.param.chunkPages > 0 {
		return c.partitionByPages(records), nil
	}
	return nil, &AssemblerError{
		Message:   "neither chunk size nor chunk pages configured",
		Retryable: false,
		Cause:     ErrCauseInvalidChunkSpec,
	}
}

// partitionBySize packs records greedily in order. A record whose own
// estimate exceeds the bound becomes a chunk of one rather than
// failing the partition.
func (c *Chunker) partitionBySize(records []record.PageRecord) []span {
	overhead := c.writer.OverheadFactor()
	limit := c.param.maxChunkBytes

	var spans []span
	current := span{first: 0, last: -1}
	var rawBytes int64
	for i, rec := range records {
		est := estimateRecordBytes(rec)
		projected := int64(float64(rawBytes+est) * overhead)
		if current.last >= current.first && projected > limit {
			current.estimatedBytes = int64(float64(rawBytes) * overhead)
			spans = append(spans, current)
			current = span{first: i, last: -1}
			rawBytes = 0
		}
		current.last = i
		rawBytes += est
	}
	current.estimatedBytes = int64(float64(rawBytes) * overhead)
	spans = append(spans, current)
	return spans
}

func (c *Chunker) partitionByPages(records []record.PageRecord) []span {
	overhead := c.writer.OverheadFactor()
	per := c.param.chunkPages

	var spans []span
	for first := 0; first < len(records); first += per {
		last := first + per - 1
		if last >= len(records) {
			last = len(records) - 1
		}
		var rawBytes int64
		for _, rec := range records[first : last+1] {
			rawBytes += estimateRecordBytes(rec)
		}
		spans = append(spans, span{
			first:          first,
			last:           last,
			estimatedBytes: int64(float64(rawBytes) * overhead),
		})
	}
	return spans
}

// estimateRecordBytes approximates a record's rendered footprint
// without rendering: the larger of the HTML and text bodies, the
// metadata strings, and a fixed weight per image.
func estimateRecordBytes(rec record.PageRecord) int64 {
	content := len(rec.Content)
	if len(rec.TextContent) > content {
		content = len(rec.TextContent)
	}
	meta := len(rec.Title) + len(rec.URL) + len(rec.FinalURL) +
		len(rec.Metadata.Description) + len(rec.Metadata.Author)
	for _, keyword := range rec.Metadata.Keywords {
		meta += len(keyword)
	}
	return int64(content + meta + len(rec.Images)*imageWeightBytes)
}

// chunkFileName zero-pads to three digits, widening only when the
// partition outgrows 999 chunks.
func chunkFileName(prefix string, index int, total int, ext string) string {
	width := 3
	for limit := 1000; total >= limit; limit *= 10 {
		width++
	}
	return fmt.Sprintf("%s_chunk_%0*d_of_%0*d.%s", prefix, width, index, width, total, ext)
}

func (c *Chunker) recordError(action string, err *AssemblerError, baseURL string) {
	c.metadataSink.RecordError(
		time.Now(),
		"assembler",
		action,
		mapAssemblerErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, baseURL),
		},
	)
}

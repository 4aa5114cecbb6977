package mdgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohmanhakim/site-archiver/internal/assembler"
	"github.com/rohmanhakim/site-archiver/internal/mdconvert"
	"github.com/rohmanhakim/site-archiver/internal/metadata"
	"github.com/rohmanhakim/site-archiver/internal/record"
	"github.com/rohmanhakim/site-archiver/internal/sanitizer"
	"github.com/rohmanhakim/site-archiver/pkg/failure"
	"github.com/rohmanhakim/site-archiver/pkg/fileutil"
)

/*
Responsibilities
- Assemble cached page records into Markdown artifacts
- Single-file: header, optional table of contents, separator-delimited
  sections with stable page anchors
- Multi-file: a directory with a README index and one slug-named file
  per page
- Chunk writing on behalf of the chunker, with prev/index/next links

Output Characteristics
- Deterministic section order and anchor assignment
- Per-record degradation: a page that cannot be converted falls back
  to its text content
*/

const markdownOverheadFactor = 1.2

type GenerateParam struct {
	outputDir  string
	filename   string
	multiFile  bool
	includeTOC bool
}

func NewGenerateParam(outputDir string, filename string, multiFile bool, includeTOC bool) GenerateParam {
	return GenerateParam{
		outputDir:  outputDir,
		filename:   filename,
		multiFile:  multiFile,
		includeTOC: includeTOC,
	}
}

func (p GenerateParam) OutputDir() string {
	return p.outputDir
}

func (p GenerateParam) Filename() string {
	return p.filename
}

type MarkdownGenerator struct {
	metadataSink  metadata.MetadataSink
	htmlSanitizer sanitizer.HtmlSanitizer
	rule          *mdconvert.StrictConversionRule
	param         GenerateParam
	now           func() time.Time
}

func NewMarkdownGenerator(metadataSink metadata.MetadataSink, param GenerateParam) MarkdownGenerator {
	return MarkdownGenerator{
		metadataSink:  metadataSink,
		htmlSanitizer: sanitizer.NewHTMLSanitizer(metadataSink),
		rule:          mdconvert.NewRule(metadataSink),
		param:         param,
		now:           time.Now,
	}
}

// NewMarkdownGeneratorForTest pins the generation timestamp.
func NewMarkdownGeneratorForTest(metadataSink metadata.MetadataSink, param GenerateParam, now func() time.Time) MarkdownGenerator {
	gen := NewMarkdownGenerator(metadataSink, param)
	gen.now = now
	return gen
}

var _ assembler.Generator = (*MarkdownGenerator)(nil)
var _ assembler.ChunkWriter = (*MarkdownGenerator)(nil)

func (g *MarkdownGenerator) Generate(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError) {
	if len(records) == 0 {
		return nil, g.recordError("MarkdownGenerator.Generate", &MarkdownGenError{
			Message:   "empty session",
			Retryable: false,
			Cause:     ErrCauseNoRecords,
		}, baseURL)
	}
	if g.param.multiFile {
		return g.generateMultiFile(records, baseURL)
	}
	return g.generateSingleFile(records, baseURL)
}

func (g *MarkdownGenerator) generateSingleFile(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError) {
	bodies := make([][]byte, len(records))
	titles := make([]string, len(records))
	for i, rec := range records {
		bodies[i] = g.renderSectionBody(rec)
		titles[i] = sectionTitle(rec, bodies[i])
	}

	var sb strings.Builder
	g.writeHeader(&sb, baseURL, len(records))

	if g.param.includeTOC {
		// Entries point at the positional page anchors the sections
		// emit, so duplicate titles cannot break the links.
		sb.WriteString("## Contents\n\n")
		for i, title := range titles {
			fmt.Fprintf(&sb, "- [%s](#page-%d)\n", title, i+1)
		}
		sb.WriteString("\n")
	}

	for i := range records {
		sb.WriteString("---\n\n")
		g.writeSection(&sb, records[i], titles[i], bodies[i], i+1)
	}

	path := filepath.Join(g.param.outputDir, g.param.filename+".md")
	if err := g.writeArtifact(path, []byte(sb.String()), baseURL); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (g *MarkdownGenerator) generateMultiFile(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError) {
	dir := filepath.Join(g.param.outputDir, g.param.filename)

	bodies := make([][]byte, len(records))
	titles := make([]string, len(records))
	files := make([]string, len(records))
	slugs := slugTable{}
	for i, rec := range records {
		bodies[i] = g.renderSectionBody(rec)
		titles[i] = sectionTitle(rec, bodies[i])
		files[i] = slugs.claim(titles[i]) + ".md"
	}

	var index strings.Builder
	g.writeHeader(&index, baseURL, len(records))
	index.WriteString("## Pages\n\n")
	for i := range records {
		fmt.Fprintf(&index, "- [%s](%s)\n", titles[i], files[i])
	}

	readmePath := filepath.Join(dir, "README.md")
	if err := g.writeArtifact(readmePath, []byte(index.String()), baseURL); err != nil {
		return nil, err
	}

	paths := []string{readmePath}
	for i, rec := range records {
		var sb strings.Builder
		fmt.Fprintf(&sb, "# %s\n\n", titles[i])
		fmt.Fprintf(&sb, "[Source](%s)\n\n", rec.URL)
		sb.Write(bodies[i])
		sb.WriteString("\n\n---\n\n[Back to index](README.md)\n")

		path := filepath.Join(dir, files[i])
		if err := g.writeArtifact(path, []byte(sb.String()), rec.URL); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (g *MarkdownGenerator) WriteChunk(records []record.PageRecord, baseURL string, path string, info assembler.ChunkInfo, nav assembler.ChunkNav) failure.ClassifiedError {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Site Archive: %s\n\n", baseURL)
	fmt.Fprintf(&sb, "Chunk %d of %d. Pages %d to %d.\n\n", info.Index, info.Total, info.FirstPage, info.LastPage)

	navLine := chunkNavLine(info.FileName, nav)
	sb.WriteString(navLine)
	sb.WriteString("\n")

	for i, rec := range records {
		body := g.renderSectionBody(rec)
		title := sectionTitle(rec, body)
		sb.WriteString("---\n\n")
		g.writeSection(&sb, rec, title, body, info.FirstPage+i)
	}

	sb.WriteString("---\n\n")
	sb.WriteString(navLine)

	return g.writeArtifact(path, []byte(sb.String()), baseURL)
}

func (g *MarkdownGenerator) WriteIndex(path string, baseURL string, chunks []assembler.ChunkInfo, pages []assembler.IndexEntry) failure.ClassifiedError {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Archive Index: %s\n\n", baseURL)
	fmt.Fprintf(&sb, "%d chunks, %d pages.\n\n", len(chunks), len(pages))

	sb.WriteString("## Chunks\n\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&sb, "- [%s](%s): pages %d to %d, about %s\n",
			chunk.FileName, chunk.FileName, chunk.FirstPage, chunk.LastPage, humanSize(chunk.EstimatedBytes))
	}

	sb.WriteString("\n## All Pages\n\n")
	for _, page := range pages {
		title := page.Title
		if title == "" {
			title = page.URL
		}
		fmt.Fprintf(&sb, "- [%s](%s) (%s)\n", title, page.ChunkFile, page.URL)
	}

	return g.writeArtifact(path, []byte(sb.String()), baseURL)
}

func (g *MarkdownGenerator) Extension() string {
	return "md"
}

func (g *MarkdownGenerator) OverheadFactor() float64 {
	return markdownOverheadFactor
}

func (g *MarkdownGenerator) writeHeader(sb *strings.Builder, baseURL string, pageCount int) {
	fmt.Fprintf(sb, "# Site Archive: %s\n\n", baseURL)
	fmt.Fprintf(sb, "Generated %s. %d pages.\n\n", g.now().UTC().Format(time.RFC3339), pageCount)
}

// writeSection emits one page section with its stable anchor. The
// anchor survives TOC slug collisions because it is positional.
func (g *MarkdownGenerator) writeSection(sb *strings.Builder, rec record.PageRecord, title string, body []byte, ordinal int) {
	fmt.Fprintf(sb, "<a id=\"page-%d\"></a>\n\n", ordinal)
	fmt.Fprintf(sb, "## %s\n\n", title)
	fmt.Fprintf(sb, "[Source](%s)\n\n", rec.URL)
	sb.Write(body)
	sb.WriteString("\n\n")
}

func chunkNavLine(fileName string, nav assembler.ChunkNav) string {
	indexFile := "INDEX.md"
	if prefix, _, ok := strings.Cut(fileName, "_chunk_"); ok {
		indexFile = prefix + "_INDEX.md"
	}
	parts := make([]string, 0, 3)
	if nav.Prev != "" {
		parts = append(parts, fmt.Sprintf("[Previous](%s)", nav.Prev))
	}
	parts = append(parts, fmt.Sprintf("[Index](%s)", indexFile))
	if nav.Next != "" {
		parts = append(parts, fmt.Sprintf("[Next](%s)", nav.Next))
	}
	return strings.Join(parts, " | ") + "\n"
}

func humanSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func (g *MarkdownGenerator) writeArtifact(path string, content []byte, subjectURL string) failure.ClassifiedError {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return g.recordError("MarkdownGenerator.writeArtifact", &MarkdownGenError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
		}, subjectURL)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return g.recordError("MarkdownGenerator.writeArtifact", &MarkdownGenError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		}, subjectURL)
	}
	g.metadataSink.RecordArtifact(
		metadata.ArtifactMarkdown,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, path),
			metadata.NewAttr(metadata.AttrURL, subjectURL),
		},
	)
	return nil
}

func (g *MarkdownGenerator) recordError(action string, err *MarkdownGenError, subjectURL string) *MarkdownGenError {
	g.metadataSink.RecordError(
		time.Now(),
		"mdgen",
		action,
		mapMarkdownGenErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, subjectURL),
		},
	)
	return err
}

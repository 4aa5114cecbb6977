package pdfgen

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

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
- Assemble cached page records into a PDF artifact
- Cover page with archive title, base URL, generation timestamp and
  page count; optional table of contents; one bookmarked section per
  record; footer page numbers
- Chunk writing on behalf of the chunker
- Validate the written file with pdfcpu before reporting success

Output Characteristics
- Per-record degradation: stored HTML that cannot be converted falls
  back to the harvested text content, then to a placeholder note
- Images never render; they appear as bracketed placeholder text
*/

const pdfOverheadFactor = 2.5

type GenerateParam struct {
	outputDir   string
	filename    string
	pageSize    string
	orientation string
	includeTOC  bool
}

func NewGenerateParam(outputDir string, filename string, pageSize string, orientation string, includeTOC bool) GenerateParam {
	if pageSize == "" {
		pageSize = "A4"
	}
	if orientation == "" {
		orientation = "P"
	}
	return GenerateParam{
		outputDir:   outputDir,
		filename:    filename,
		pageSize:    pageSize,
		orientation: orientation,
		includeTOC:  includeTOC,
	}
}

func (p GenerateParam) OutputDir() string {
	return p.outputDir
}

func (p GenerateParam) Filename() string {
	return p.filename
}

type PDFGenerator struct {
	metadataSink  metadata.MetadataSink
	htmlSanitizer sanitizer.HtmlSanitizer
	rule          *mdconvert.StrictConversionRule
	param         GenerateParam
	now           func() time.Time
}

func NewPDFGenerator(metadataSink metadata.MetadataSink, param GenerateParam) PDFGenerator {
	return PDFGenerator{
		metadataSink:  metadataSink,
		htmlSanitizer: sanitizer.NewHTMLSanitizer(metadataSink),
		rule:          mdconvert.NewRule(metadataSink),
		param:         param,
		now:           time.Now,
	}
}

// NewPDFGeneratorForTest pins the generation timestamp.
func NewPDFGeneratorForTest(metadataSink metadata.MetadataSink, param GenerateParam, now func() time.Time) PDFGenerator {
	gen := NewPDFGenerator(metadataSink, param)
	gen.now = now
	return gen
}

var _ assembler.Generator = (*PDFGenerator)(nil)
var _ assembler.ChunkWriter = (*PDFGenerator)(nil)

func (g *PDFGenerator) Generate(records []record.PageRecord, baseURL string) ([]string, failure.ClassifiedError) {
	if len(records) == 0 {
		return nil, g.recordError("PDFGenerator.Generate", &PdfGenError{
			Message:   "empty session",
			Retryable: false,
			Cause:     ErrCauseNoRecords,
		}, baseURL)
	}

	doc := g.newDocument()

	titles := make([]string, len(records))
	bodies := make([][]byte, len(records))
	for i, rec := range records {
		bodies[i] = g.renderSectionMarkdown(rec)
		titles[i] = sectionTitle(rec, bodies[i])
	}

	g.writeCover(doc, baseURL, len(records))
	if g.param.includeTOC {
		g.writeTOC(doc, titles)
	}
	for i, rec := range records {
		g.writeSection(doc, rec, titles[i], bodies[i], i+1)
	}

	path := filepath.Join(g.param.outputDir, g.param.filename+".pdf")
	if err := g.writeDocument(doc, path, baseURL); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func (g *PDFGenerator) WriteChunk(records []record.PageRecord, baseURL string, path string, info assembler.ChunkInfo, nav assembler.ChunkNav) failure.ClassifiedError {
	doc := g.newDocument()

	doc.AddPage()
	doc.SetFont(bodyFont, "B", 16)
	doc.MultiCell(0, 8, fmt.Sprintf("Site Archive: %s", baseURL), "", "L", false)
	doc.Ln(4)
	doc.SetFont(bodyFont, "", 10)
	doc.MultiCell(0, 6, fmt.Sprintf("Chunk %d of %d. Pages %d to %d.", info.Index, info.Total, info.FirstPage, info.LastPage), "", "L", false)
	if line := chunkNavText(info.FileName, nav); line != "" {
		doc.MultiCell(0, 6, line, "", "L", false)
	}

	for i, rec := range records {
		body := g.renderSectionMarkdown(rec)
		title := sectionTitle(rec, body)
		g.writeSection(doc, rec, title, body, info.FirstPage+i)
	}

	return g.writeDocument(doc, path, baseURL)
}

func (g *PDFGenerator) WriteIndex(path string, baseURL string, chunks []assembler.ChunkInfo, pages []assembler.IndexEntry) failure.ClassifiedError {
	doc := g.newDocument()

	doc.AddPage()
	doc.SetFont(bodyFont, "B", 16)
	doc.MultiCell(0, 8, fmt.Sprintf("Archive Index: %s", baseURL), "", "L", false)
	doc.Ln(2)
	doc.SetFont(bodyFont, "", 10)
	doc.MultiCell(0, 6, fmt.Sprintf("%d chunks, %d pages.", len(chunks), len(pages)), "", "L", false)
	doc.Ln(4)

	doc.SetFont(bodyFont, "B", 12)
	doc.MultiCell(0, 7, "Chunks", "", "L", false)
	doc.SetFont(bodyFont, "", 9)
	for _, chunk := range chunks {
		doc.MultiCell(0, 5, fmt.Sprintf("%s: pages %d to %d", chunk.FileName, chunk.FirstPage, chunk.LastPage), "", "L", false)
	}
	doc.Ln(4)

	doc.SetFont(bodyFont, "B", 12)
	doc.MultiCell(0, 7, "All Pages", "", "L", false)
	doc.SetFont(bodyFont, "", 9)
	for _, page := range pages {
		title := page.Title
		if title == "" {
			title = page.URL
		}
		doc.MultiCell(0, 5, fmt.Sprintf("%s (%s) in %s", title, page.URL, page.ChunkFile), "", "L", false)
	}

	return g.writeDocument(doc, path, baseURL)
}

func (g *PDFGenerator) Extension() string {
	return "pdf"
}

func (g *PDFGenerator) OverheadFactor() float64 {
	return pdfOverheadFactor
}

func (g *PDFGenerator) newDocument() *fpdf.Fpdf {
	doc := fpdf.New(g.param.orientation, "mm", g.param.pageSize, "")
	doc.SetMargins(10, 10, 10)
	doc.SetAutoPageBreak(true, 15)
	doc.AliasNbPages("")
	doc.SetFooterFunc(func() {
		doc.SetY(-12)
		doc.SetFont(bodyFont, "I", 8)
		doc.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", doc.PageNo()), "", 0, "C", false, 0, "")
	})
	return doc
}

func (g *PDFGenerator) writeCover(doc *fpdf.Fpdf, baseURL string, pageCount int) {
	doc.AddPage()
	doc.Ln(60)
	doc.SetFont(bodyFont, "B", 22)
	doc.MultiCell(0, 10, "Site Archive", "", "C", false)
	doc.Ln(6)
	doc.SetFont(bodyFont, "", 12)
	doc.MultiCell(0, 7, baseURL, "", "C", false)
	doc.Ln(10)
	doc.SetFont(bodyFont, "", 10)
	doc.MultiCell(0, 6, fmt.Sprintf("Generated %s", g.now().UTC().Format(time.RFC3339)), "", "C", false)
	doc.MultiCell(0, 6, fmt.Sprintf("%d pages", pageCount), "", "C", false)
}

func (g *PDFGenerator) writeTOC(doc *fpdf.Fpdf, titles []string) {
	doc.AddPage()
	doc.SetFont(bodyFont, "B", 14)
	doc.MultiCell(0, 8, "Contents", "", "L", false)
	doc.Ln(2)
	doc.SetFont(bodyFont, "", 10)
	for i, title := range titles {
		doc.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, title), "", "L", false)
	}
}

// writeSection draws one record on a fresh page with a sidebar
// bookmark. The ordinal is the session-wide page number, so chunk
// sections keep their position in the whole archive.
func (g *PDFGenerator) writeSection(doc *fpdf.Fpdf, rec record.PageRecord, title string, body []byte, ordinal int) {
	doc.AddPage()
	doc.Bookmark(fmt.Sprintf("%d. %s", ordinal, title), 0, -1)

	doc.SetFont(bodyFont, "B", 13)
	doc.MultiCell(0, 7, title, "", "L", false)
	doc.SetFont(bodyFont, "I", 8)
	doc.SetTextColor(100, 100, 100)
	doc.MultiCell(0, 5, rec.URL, "", "L", false)
	doc.SetTextColor(0, 0, 0)
	doc.Ln(3)

	renderMarkdown(doc, body)
}

// renderSectionMarkdown converts one record's harvested HTML into
// Markdown for the PDF walker. Degradation is per record: sanitize
// and convert, then the harvested text content, then a placeholder
// note so the section is never silently missing.
func (g *PDFGenerator) renderSectionMarkdown(rec record.PageRecord) []byte {
	if body := parseRecordBody(rec.Content); body != nil {
		sanitizer.ReplaceImagesWithPlaceholders(body)
		if doc, err := g.htmlSanitizer.Sanitize(body); err == nil {
			if result, convErr := g.rule.Convert(doc); convErr == nil {
				if md := strings.TrimSpace(string(result.GetMarkdownContent())); md != "" {
					return []byte(md)
				}
			}
		}
	}
	if text := strings.TrimSpace(rec.TextContent); text != "" {
		var sb strings.Builder
		sb.WriteString(text)
		if desc := strings.TrimSpace(rec.Metadata.Description); desc != "" {
			sb.WriteString("\n\n*")
			sb.WriteString(desc)
			sb.WriteString("*")
		}
		return []byte(sb.String())
	}
	return []byte("*Content for this page could not be rendered.*")
}

func parseRecordBody(content string) *html.Node {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil
	}
	return findElement(root, atom.Body)
}

func findElement(node *html.Node, a atom.Atom) *html.Node {
	if node.Type == html.ElementNode && node.DataAtom == a {
		return node
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}

func sectionTitle(rec record.PageRecord, body []byte) string {
	if title := strings.TrimSpace(rec.Title); title != "" {
		return title
	}
	for _, line := range strings.Split(string(body), "\n") {
		if heading, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(heading)
		}
	}
	return rec.URL
}

func chunkNavText(fileName string, nav assembler.ChunkNav) string {
	indexFile := "INDEX.pdf"
	if prefix, _, ok := strings.Cut(fileName, "_chunk_"); ok {
		indexFile = prefix + "_INDEX.pdf"
	}
	parts := make([]string, 0, 3)
	if nav.Prev != "" {
		parts = append(parts, "Previous: "+nav.Prev)
	}
	parts = append(parts, "Index: "+indexFile)
	if nav.Next != "" {
		parts = append(parts, "Next: "+nav.Next)
	}
	return strings.Join(parts, "  |  ")
}

// writeDocument flushes the PDF to disk and validates the result so a
// truncated or malformed artifact never reports success.
func (g *PDFGenerator) writeDocument(doc *fpdf.Fpdf, path string, baseURL string) failure.ClassifiedError {
	if err := fileutil.EnsureDir(filepath.Dir(path)); err != nil {
		return g.recordError("PDFGenerator.writeDocument", &PdfGenError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCausePathError,
		}, baseURL)
	}
	if err := doc.OutputFileAndClose(path); err != nil {
		return g.recordError("PDFGenerator.writeDocument", &PdfGenError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseWriteFailure,
		}, baseURL)
	}

	pageCount, err := validatePDF(path)
	if err != nil {
		return g.recordError("PDFGenerator.writeDocument", &PdfGenError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseValidationFailure,
		}, baseURL)
	}

	g.metadataSink.RecordArtifact(
		metadata.ArtifactPDF,
		path,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrWritePath, path),
			metadata.NewAttr(metadata.AttrURL, baseURL),
			metadata.NewAttr(metadata.AttrCount, strconv.Itoa(pageCount)),
		},
	)
	return nil
}

// validatePDF checks the written file with pdfcpu and returns its
// physical page count.
func validatePDF(path string) (int, error) {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return 0, err
	}
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, err
	}
	return ctx.PageCount, nil
}

func (g *PDFGenerator) recordError(action string, err *PdfGenError, subjectURL string) *PdfGenError {
	g.metadataSink.RecordError(
		time.Now(),
		"pdfgen",
		action,
		mapPdfGenErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, subjectURL),
		},
	)
	return err
}

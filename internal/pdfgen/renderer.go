package pdfgen

import (
	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

const (
	bodyFont     = "Arial"
	codeFont     = "Courier"
	bodyFontSize = 9.0
	lineHeight   = 5.0
)

func newMarkdownParser() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
}

// markdownRenderer walks a goldmark AST and draws it onto an open
// fpdf document at the current position. One renderer is used per
// section; inline style state does not leak across sections.
type markdownRenderer struct {
	doc       *fpdf.Fpdf
	source    []byte
	bold      bool
	italic    bool
	listDepth int
}

// renderMarkdown parses md and draws it onto doc. A parse never
// fails in goldmark; draw errors surface through the document's
// sticky error, which the caller checks when writing the file.
func renderMarkdown(doc *fpdf.Fpdf, md []byte) {
	parsed := newMarkdownParser().Parser().Parse(text.NewReader(md))
	r := &markdownRenderer{doc: doc, source: md}
	r.resetFont()
	ast.Walk(parsed, r.walk)
	doc.Ln(lineHeight)
}

func (r *markdownRenderer) resetFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.doc.SetFont(bodyFont, style, bodyFontSize)
}

func (r *markdownRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		r.heading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.doc.Ln(7)
		}
	case ast.KindText:
		if entering {
			r.doc.Write(lineHeight, string(n.Text(r.source)))
		}
	case ast.KindEmphasis:
		r.emphasis(n.(*ast.Emphasis), entering)
	case ast.KindCodeSpan:
		return r.codeSpan(n, entering), nil
	case ast.KindFencedCodeBlock:
		if entering {
			r.codeBlock(n.(*ast.FencedCodeBlock).Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindCodeBlock:
		if entering {
			r.codeBlock(n.(*ast.CodeBlock).Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindList:
		r.list(entering)
	case ast.KindListItem:
		if entering {
			r.doc.Ln(lineHeight)
			r.doc.SetX(15 + float64(r.listDepth)*5)
			r.doc.Write(lineHeight, "- ")
		}
	case ast.KindAutoLink:
		if entering {
			r.doc.Write(lineHeight, string(n.(*ast.AutoLink).URL(r.source)))
		}
	case ast.KindThematicBreak:
		if entering {
			r.doc.Ln(2)
			r.doc.Line(15, r.doc.GetY(), 195, r.doc.GetY())
			r.doc.Ln(2)
		}
	case extast.KindTable:
		if entering {
			r.table(n.(*extast.Table))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *markdownRenderer) heading(n *ast.Heading, entering bool) {
	if entering {
		r.doc.Ln(6)
		size := 10.0
		switch n.Level {
		case 1:
			size = 14
		case 2:
			size = 12
		case 3:
			size = 11
		}
		r.doc.SetFont(bodyFont, "B", size)
		return
	}
	r.doc.Ln(6)
	r.resetFont()
}

func (r *markdownRenderer) emphasis(n *ast.Emphasis, entering bool) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.resetFont()
}

func (r *markdownRenderer) codeSpan(n ast.Node, entering bool) ast.WalkStatus {
	if entering {
		r.doc.SetFont(codeFont, "", 10)
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if textNode, ok := c.(*ast.Text); ok {
				r.doc.Write(lineHeight, string(textNode.Segment.Value(r.source)))
			}
		}
	} else {
		r.resetFont()
	}
	return ast.WalkSkipChildren
}

func (r *markdownRenderer) codeBlock(lines *text.Segments) {
	r.doc.Ln(2)
	r.doc.SetFont(codeFont, "", 9)
	r.doc.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		r.doc.MultiCell(0, lineHeight, string(segment.Value(r.source)), "", "L", true)
	}
	r.doc.SetFillColor(255, 255, 255)
	r.resetFont()
	r.doc.Ln(2)
}

func (r *markdownRenderer) list(entering bool) {
	if entering {
		r.listDepth++
		return
	}
	r.listDepth--
	if r.listDepth == 0 {
		r.doc.Ln(2)
	}
}

// table draws a table with equal column widths. Cell text is clipped
// to its column; archived reference tables favor a predictable layout
// over exact fidelity.
func (r *markdownRenderer) table(n *extast.Table) {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch row := child.(type) {
			case *extast.TableRow:
				rows = append(rows, r.tableRow(row))
			case *extast.TableHeader:
				collect(row)
			}
		}
	}
	collect(n)
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const tableWidth = 180.0
	const rowHeight = 6.0
	const fontSize = 8.0
	colWidth := tableWidth / float64(len(rows[0]))

	r.doc.Ln(2)
	for i, row := range rows {
		if i == 0 {
			r.doc.SetFont(bodyFont, "B", fontSize)
			r.doc.SetFillColor(230, 230, 230)
		} else {
			r.doc.SetFont(bodyFont, "", fontSize)
			r.doc.SetFillColor(255, 255, 255)
		}
		// Page break before the row, not inside it.
		if r.doc.GetY()+rowHeight > 297-15 {
			r.doc.AddPage()
		}
		for _, cell := range row {
			r.doc.CellFormat(colWidth, rowHeight, r.clipCell(cell, colWidth-2), "1", 0, "L", i == 0, 0, "")
		}
		r.doc.Ln(rowHeight)
	}
	r.doc.Ln(3)
	r.resetFont()
}

func (r *markdownRenderer) tableRow(n *extast.TableRow) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, string(cell.Text(r.source)))
		}
	}
	return row
}

func (r *markdownRenderer) clipCell(cell string, width float64) string {
	if r.doc.GetStringWidth(cell) <= width {
		return cell
	}
	for len(cell) > 3 && r.doc.GetStringWidth(cell+"...") > width {
		cell = cell[:len(cell)-1]
	}
	return cell + "..."
}

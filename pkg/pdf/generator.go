package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders HTML documents to PDF bytes
type Generator interface {
	Render(htmlDoc string) ([]byte, error)
}

// Options configures PDF layout
type Options struct {
	PageSize       string     `json:"page_size"`   // A4, Letter, Legal
	Orientation    string     `json:"orientation"` // portrait, landscape
	FontFamily     string     `json:"font_family"`
	FontSize       float64    `json:"font_size"`
	HeadingSizes   [3]float64 `json:"heading_sizes"`
	LineHeight     float64    `json:"line_height"`
	IncludePageNum bool       `json:"include_page_num"`
	HeaderColor    Color      `json:"header_color"`
	Margins        Margins    `json:"margins"`
}

// Color represents an RGB color
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Margins represents page margins
type Margins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultOptions returns A4 portrait with h1/h2/h3 at 18/16/14pt
func DefaultOptions() Options {
	return Options{
		PageSize:       "A4",
		Orientation:    "portrait",
		FontFamily:     "Arial",
		FontSize:       11,
		HeadingSizes:   [3]float64{18, 16, 14},
		LineHeight:     6,
		IncludePageNum: true,
		HeaderColor:    Color{R: 255, G: 215, B: 0},
		Margins: Margins{
			Left:   15,
			Right:  15,
			Top:    20,
			Bottom: 20,
		},
	}
}

type generator struct {
	options Options
}

func NewGenerator(options Options) Generator {
	return &generator{options: options}
}

// Render lays out the structured document. If that fails the visible text is
// typeset as plain paragraphs instead.
func (g *generator) Render(htmlDoc string) ([]byte, error) {
	if doc, err := Parse(htmlDoc); err == nil {
		if out, err := g.layout(doc); err == nil {
			return out, nil
		}
	}
	return g.renderPlainText(ExtractText(htmlDoc))
}

func (g *generator) newPDF() (*gofpdf.Fpdf, func(string) string) {
	orientation := "P"
	if g.options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", g.options.PageSize, "")
	pdf.SetMargins(g.options.Margins.Left, g.options.Margins.Top, g.options.Margins.Right)
	pdf.SetAutoPageBreak(true, g.options.Margins.Bottom)
	g.setFooter(pdf)

	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

func (g *generator) layout(doc *Document) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("layout failed: %v", r)
		}
	}()

	pdf, tr := g.newPDF()
	if doc.Title != "" {
		pdf.SetTitle(doc.Title, true)
	}
	pdf.AddPage()

	for i, block := range doc.Blocks {
		switch block.Kind {
		case BlockHeading:
			g.addHeading(pdf, tr, block)
		case BlockParagraph:
			g.addRuns(pdf, tr, block.Runs)
			pdf.Ln(g.options.LineHeight + 1)
		case BlockListItem:
			g.addListItem(pdf, tr, block)
		case BlockTableRow:
			g.addTableRow(pdf, tr, doc.Blocks, i)
		case BlockRule:
			g.addRule(pdf)
		}
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}

	return output(pdf)
}

func (g *generator) addHeading(pdf *gofpdf.Fpdf, tr func(string) string, block Block) {
	level := block.Level
	if level < 1 {
		level = 1
	}
	size := g.options.HeadingSizes[level-1]

	pdf.Ln(2)
	pdf.SetFont(g.options.FontFamily, "B", size)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, size*0.45, tr(block.Text()), "", "L", false)
	pdf.Ln(2)
}

func (g *generator) addRuns(pdf *gofpdf.Fpdf, tr func(string) string, runs []Run) {
	pdf.SetTextColor(0, 0, 0)
	for _, run := range runs {
		style := ""
		if run.Bold {
			style = "B"
		}
		pdf.SetFont(g.options.FontFamily, style, g.options.FontSize)
		pdf.Write(g.options.LineHeight, tr(run.Text))
	}
}

func (g *generator) addListItem(pdf *gofpdf.Fpdf, tr func(string) string, block Block) {
	depth := block.Level
	if depth < 1 {
		depth = 1
	}
	indent := g.options.Margins.Left + float64(depth)*5

	pdf.SetLeftMargin(indent)
	pdf.SetX(indent - 4)
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	pdf.Write(g.options.LineHeight, "- ")
	g.addRuns(pdf, tr, block.Runs)
	pdf.Ln(g.options.LineHeight)
	pdf.SetLeftMargin(g.options.Margins.Left)
}

// addTableRow spreads the row across the page, sizing columns by the widest
// row of the contiguous table it belongs to.
func (g *generator) addTableRow(pdf *gofpdf.Fpdf, tr func(string) string, blocks []Block, index int) {
	row := blocks[index]
	cols := 0
	for i := index; i >= 0 && blocks[i].Kind == BlockTableRow; i-- {
		if len(blocks[i].Cells) > cols {
			cols = len(blocks[i].Cells)
		}
	}
	for i := index; i < len(blocks) && blocks[i].Kind == BlockTableRow; i++ {
		if len(blocks[i].Cells) > cols {
			cols = len(blocks[i].Cells)
		}
	}

	pageWidth, _ := pdf.GetPageSize()
	width := (pageWidth - g.options.Margins.Left - g.options.Margins.Right) / float64(cols)

	if row.Header {
		pdf.SetFont(g.options.FontFamily, "B", g.options.FontSize)
		pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	} else {
		pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
		pdf.SetFillColor(255, 255, 255)
	}
	pdf.SetTextColor(0, 0, 0)

	for c := 0; c < cols; c++ {
		text := ""
		if c < len(row.Cells) {
			text = fitText(pdf, tr(row.Cells[c]), width-2)
		}
		pdf.CellFormat(width, 8, text, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	if index+1 == len(blocks) || blocks[index+1].Kind != BlockTableRow {
		pdf.Ln(4)
	}
}

func (g *generator) addRule(pdf *gofpdf.Fpdf) {
	pageWidth, _ := pdf.GetPageSize()
	y := pdf.GetY() + 2
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(g.options.Margins.Left, y, pageWidth-g.options.Margins.Right, y)
	pdf.Ln(5)
}

func (g *generator) renderPlainText(text string) ([]byte, error) {
	pdf, tr := g.newPDF()
	pdf.AddPage()
	pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	pdf.SetTextColor(0, 0, 0)

	for _, line := range strings.Split(text, "\n") {
		pdf.MultiCell(0, g.options.LineHeight, tr(line), "", "L", false)
	}

	return output(pdf)
}

// setFooter sets up the page footer
func (g *generator) setFooter(pdf *gofpdf.Fpdf) {
	pdf.SetFooterFunc(func() {
		if !g.options.IncludePageNum {
			return
		}
		pdf.SetY(-15)
		pdf.SetFont(g.options.FontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

func fitText(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	// text is already single-byte encoded for the core fonts
	for len(text) > 0 && pdf.GetStringWidth(text+"...") > width {
		text = text[:len(text)-1]
	}
	return text + "..."
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

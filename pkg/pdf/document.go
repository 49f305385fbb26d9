package pdf

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrEmptyDocument is returned when HTML contains no renderable blocks
var ErrEmptyDocument = errors.New("document has no renderable content")

// BlockKind identifies a layout primitive
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
	BlockListItem
	BlockTableRow
	BlockRule
)

// Run is a span of text sharing one weight
type Run struct {
	Text string
	Bold bool
}

// Block is one unit of the document description consumed by the layout engine
type Block struct {
	Kind   BlockKind
	Level  int // heading level 1..3, list depth for list items
	Runs   []Run
	Cells  []string
	Header bool
}

// Text joins the runs of a block
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Document is an ordered list of blocks
type Document struct {
	Title  string
	Blocks []Block
}

var whitespace = regexp.MustCompile(`\s+`)

// Parse converts HTML into a document description
func Parse(htmlDoc string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(htmlDoc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &parser{doc: &Document{}}
	p.walk(root, 0)
	p.flush()

	if len(p.doc.Blocks) == 0 {
		return nil, ErrEmptyDocument
	}
	return p.doc, nil
}

type parser struct {
	doc       *Document
	runs      []Run
	kind      BlockKind
	level     int
	bold      int
	listDepth int
}

func (p *parser) flush() {
	runs := normalizeRuns(p.runs)
	p.runs = nil
	kind, level := p.kind, p.level
	p.kind, p.level = BlockParagraph, 0
	if len(runs) == 0 {
		return
	}
	p.doc.Blocks = append(p.doc.Blocks, Block{Kind: kind, Level: level, Runs: runs})
}

func (p *parser) start(kind BlockKind, level int) {
	p.flush()
	p.kind, p.level = kind, level
}

func (p *parser) walk(n *html.Node, depth int) {
	switch n.Type {
	case html.TextNode:
		text := SanitizeText(n.Data)
		if text != "" {
			p.runs = append(p.runs, Run{Text: text, Bold: p.bold > 0})
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Style, atom.Script, atom.Head, atom.Svg:
			if n.DataAtom == atom.Head {
				p.doc.Title = findTitle(n)
			}
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(n.Data[1] - '0')
			if level > 3 {
				level = 3
			}
			p.start(BlockHeading, level)
			p.children(n, depth)
			p.flush()
			return
		case atom.Li:
			p.start(BlockListItem, p.listDepth)
			p.children(n, depth)
			p.flush()
			return
		case atom.Ul, atom.Ol:
			p.flush()
			p.listDepth++
			p.children(n, depth)
			p.listDepth--
			return
		case atom.Tr:
			p.flush()
			p.tableRow(n)
			return
		case atom.Hr:
			p.flush()
			p.doc.Blocks = append(p.doc.Blocks, Block{Kind: BlockRule})
			return
		case atom.Br:
			p.flush()
			return
		case atom.B, atom.Strong:
			p.bold++
			p.children(n, depth)
			p.bold--
			return
		case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Table, atom.Tbody, atom.Thead, atom.Blockquote, atom.Pre:
			p.flush()
			p.children(n, depth)
			p.flush()
			return
		}
	}
	p.children(n, depth)
}

func (p *parser) children(n *html.Node, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, depth+1)
	}
}

func (p *parser) tableRow(tr *html.Node) {
	var cells []string
	header := false
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == atom.Th {
			header = true
		}
		if c.DataAtom == atom.Th || c.DataAtom == atom.Td {
			cells = append(cells, strings.TrimSpace(whitespace.ReplaceAllString(textContent(c), " ")))
		}
	}
	if len(cells) == 0 {
		return
	}
	p.doc.Blocks = append(p.doc.Blocks, Block{Kind: BlockTableRow, Cells: cells, Header: header})
}

func findTitle(head *html.Node) string {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Title {
			return strings.TrimSpace(SanitizeText(textContent(c)))
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return SanitizeText(n.Data)
	}
	if n.Type == html.ElementNode && (n.DataAtom == atom.Style || n.DataAtom == atom.Script) {
		return ""
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

// normalizeRuns collapses whitespace and merges adjacent runs of equal weight
func normalizeRuns(runs []Run) []Run {
	var out []Run
	for _, r := range runs {
		text := whitespace.ReplaceAllString(r.Text, " ")
		if text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Bold == r.Bold {
			out[n-1].Text += text
			continue
		}
		out = append(out, Run{Text: text, Bold: r.Bold})
	}
	if len(out) == 0 {
		return nil
	}
	out[0].Text = strings.TrimLeft(out[0].Text, " ")
	last := len(out) - 1
	out[last].Text = strings.TrimRight(out[last].Text, " ")

	trimmed := out[:0]
	for _, r := range out {
		if r.Text != "" {
			trimmed = append(trimmed, r)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}

// ExtractText returns the visible text of an HTML document, one line per block
func ExtractText(htmlDoc string) string {
	z := html.NewTokenizer(strings.NewReader(htmlDoc))
	var sb strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(collapseBlankLines(sb.String()))
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script":
				skip++
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "style", "script":
				if skip > 0 {
					skip--
				}
			case "td", "th":
				sb.WriteString("  ")
			}
		case html.TextToken:
			if skip == 0 {
				sb.WriteString(whitespace.ReplaceAllString(SanitizeText(string(z.Text())), " "))
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

package parser

import (
	"io"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark with GFM tables.
// Thematic breaks act as page breaks.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) ([]*layout.Element, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	b := newPageBuilder()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			b.nextPage()

		case *ast.Heading:
			b.addHeading(node.Level, nodeText(node, src))

		case *extast.Table:
			b.add(layout.TypeTable, "", markdownTable(tableRows(node, src)))

		case *ast.FencedCodeBlock:
			body := blockLines(node, src)
			switch strings.ToLower(string(node.Language(src))) {
			case "math", "latex", "tex":
				b.add(layout.TypeEquation, "", body)
			default:
				b.add(layout.TypeText, body, "")
			}

		case *ast.Paragraph:
			if img, ok := soleImage(node); ok {
				alt := nodeText(img, src)
				if alt == "" {
					alt = string(img.Destination)
				}
				b.add(layout.TypeFigure, "", alt)
				continue
			}
			b.addBlock(nodeText(node, src))

		default:
			b.add(layout.TypeText, nodeText(n, src), "")
		}
	}

	return b.elements, nil
}

func soleImage(p *ast.Paragraph) (*ast.Image, bool) {
	if p.ChildCount() != 1 {
		return nil, false
	}
	img, ok := p.FirstChild().(*ast.Image)
	return img, ok
}

func tableRows(table *extast.Table, src []byte) [][]string {
	var rows [][]string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, src))
		}
		rows = append(rows, cells)
	}
	return rows
}

func blockLines(n ast.Node, src []byte) string {
	var buf strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSpace(buf.String())
}

// nodeText gets the text content of a goldmark AST node. Leaf blocks use
// their source lines, inline containers their text children, and container
// blocks join their children with newlines.
func nodeText(n ast.Node, src []byte) string {
	switch node := n.(type) {
	case *ast.Text:
		s := string(node.Value(src))
		if node.SoftLineBreak() || node.HardLineBreak() {
			s += "\n"
		}
		return s
	case *ast.String:
		return string(node.Value)
	}

	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		return blockLines(n, src)
	}

	var buf strings.Builder
	inline := n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t := nodeText(c, src)
		if t == "" {
			continue
		}
		if !inline && buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(t)
	}
	return strings.TrimSpace(buf.String())
}

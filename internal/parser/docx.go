package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Paragraphs become text elements and
// tables become table elements. DOCX has no fixed pagination, so every
// element is placed on page 1.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) ([]*layout.Element, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docresearch-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	b := newPageBuilder()
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if level := docxHeadingLevel(it); level > 0 {
				b.addHeading(level, docxParagraphText(it))
				continue
			}
			b.addBlock(docxParagraphText(it))
		case *docx.Table:
			b.add(layout.TypeTable, "", markdownTable(docxTableRows(it)))
		}
	}
	return b.elements, nil
}

func docxTableRows(table *docx.Table) [][]string {
	var rows [][]string
	for _, row := range table.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		rows = append(rows, cells)
	}
	return rows
}

// docxHeadingLevel reads the level from Heading1..Heading6 paragraph styles.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if len(style) == len("heading1") && strings.HasPrefix(style, "heading") {
		if n := int(style[len(style)-1] - '0'); n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

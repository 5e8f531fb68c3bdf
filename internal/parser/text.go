package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
)

// TextParser handles plain text files. Blank lines separate blocks and a
// form feed starts a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) ([]*layout.Element, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newPageBuilder()
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			b.addBlock(current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		for strings.Contains(line, "\f") {
			before, after, _ := strings.Cut(line, "\f")
			if strings.TrimSpace(before) != "" {
				appendLine(&current, before)
			}
			flush()
			b.nextPage()
			line = after
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		appendLine(&current, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return b.elements, nil
}

func appendLine(buf *strings.Builder, line string) {
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(line)
}

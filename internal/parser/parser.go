package parser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
)

// Parser converts raw document bytes into layout elements in reading order.
type Parser interface {
	Parse(r io.Reader, filename string) ([]*layout.Element, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// FileExtractor reads a file from disk and extracts its layout elements
// with the parser registered for its extension.
type FileExtractor struct {
	// NoPdftotext disables the pdftotext fallback for PDFs.
	NoPdftotext bool
}

// Extract parses the file at path and stamps every element with docID.
func (x FileExtractor) Extract(ctx context.Context, path, docID string) ([]*layout.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*PDFParser); ok && x.NoPdftotext {
		pdf.FallbackPdftotext = false
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	elements, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		el.DocID = docID
	}
	return elements, nil
}

// Synthetic page geometry for formats without layout coordinates: every
// element occupies a full-width band below the previous one.
const (
	pageWidth  = 612.0
	bandHeight = 24.0
)

// pageBuilder assigns page, sequence and geometry to elements in reading order.
type pageBuilder struct {
	page     int
	seq      int
	row      int
	elements []*layout.Element
}

func newPageBuilder() *pageBuilder {
	return &pageBuilder{page: 1}
}

// add appends an element. Visual elements carry their source form in both
// fields until transcription replaces Content.
func (b *pageBuilder) add(t layout.Type, content, raw string) {
	content = strings.TrimSpace(content)
	raw = strings.TrimSpace(raw)
	if t.Visual() && content == "" {
		content = raw
	}
	if content == "" && raw == "" {
		return
	}
	top := float64(b.row) * bandHeight
	b.seq++
	b.row++
	b.elements = append(b.elements, &layout.Element{
		PageID:     b.page,
		SequenceID: b.seq,
		Type:       t,
		BBox:       layout.BoundingBox{X1: 0, Y1: top, X2: pageWidth, Y2: top + bandHeight},
		Content:    content,
		RawContent: raw,
	})
}

// addHeading appends a text element marked with its heading level.
func (b *pageBuilder) addHeading(level int, content string) {
	n := len(b.elements)
	b.add(layout.TypeText, content, "")
	if len(b.elements) > n {
		b.elements[n].Heading = level
	}
}

// addBlock classifies a plain-text block and appends it.
func (b *pageBuilder) addBlock(block string) {
	t, raw := classifyBlock(block)
	if t == layout.TypeText {
		b.add(t, block, "")
		return
	}
	b.add(t, "", raw)
}

// nextPage starts a new page unless the current one is still empty.
func (b *pageBuilder) nextPage() {
	if b.row == 0 {
		return
	}
	b.page++
	b.row = 0
}

// setPage moves to an explicit page number.
func (b *pageBuilder) setPage(n int) {
	if n != b.page {
		b.page = n
		b.row = 0
	}
}

var imageRe = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)]*)\)$`)

// classifyBlock recognizes the inline conventions plain-text sources use for
// visual content: $$-delimited equations, pipe tables and image references.
func classifyBlock(block string) (layout.Type, string) {
	s := strings.TrimSpace(block)
	if len(s) > 4 && strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$") {
		return layout.TypeEquation, strings.TrimSpace(s[2 : len(s)-2])
	}
	if m := imageRe.FindStringSubmatch(s); m != nil {
		if m[1] != "" {
			return layout.TypeFigure, m[1]
		}
		return layout.TypeFigure, m[2]
	}
	lines := strings.Split(s, "\n")
	isTable := len(lines) > 1
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "|") {
			isTable = false
			break
		}
	}
	if isTable {
		return layout.TypeTable, s
	}
	return layout.TypeText, s
}

// markdownTable renders rows as a pipe table. The first row is the header.
func markdownTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}
	var buf strings.Builder
	writeRow := func(cells []string) {
		buf.WriteString("|")
		for _, c := range cells {
			buf.WriteString(" ")
			buf.WriteString(strings.ReplaceAll(strings.TrimSpace(c), "|", `\|`))
			buf.WriteString(" |")
		}
		buf.WriteString("\n")
	}
	writeRow(rows[0])
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	writeRow(sep)
	for _, row := range rows[1:] {
		writeRow(row)
	}
	return strings.TrimRight(buf.String(), "\n")
}

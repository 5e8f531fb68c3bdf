package layout

import (
	"sort"
	"strings"
)

// Type classifies a layout element.
type Type string

const (
	TypeText     Type = "text"
	TypeTable    Type = "table"
	TypeFigure   Type = "figure"
	TypeEquation Type = "equation"
)

// Visual reports whether elements of this type need transcription.
func (t Type) Visual() bool {
	return t == TypeTable || t == TypeFigure || t == TypeEquation
}

// Element is one region of a page produced by layout extraction.
type Element struct {
	DocID      string      `json:"doc_id"`
	PageID     int         `json:"page_id"`
	SequenceID int         `json:"sequence_id"`
	Type       Type        `json:"type"`
	BBox       BoundingBox `json:"bbox"`
	Content    string      `json:"content"`               // Searchable text; transcribed for visual types.
	RawContent string      `json:"raw_content,omitempty"` // Source representation (markdown table, alt text, latex).
	Heading    int         `json:"heading,omitempty"`     // Heading level; 0 for body text.
}

// Chunk is a run of consecutive elements packed up to a length budget.
type Chunk struct {
	DocID    string     `json:"doc_id"`
	ChunkID  int        `json:"chunk_id"`
	PageID   int        `json:"page_id"`
	Content  string     `json:"content"`
	Elements []*Element `json:"-"`
}

// Page groups the elements that share a page id.
type Page struct {
	PageID   int        `json:"page_id"`
	Elements []*Element `json:"-"`
}

// Content joins the page's element contents with newlines.
func (p *Page) Content() string {
	return joinContent(p.Elements, "\n")
}

// Document is the multi-view representation of one parsed source file.
type Document struct {
	DocID    string     `json:"doc_id"`
	Title    string     `json:"title"`
	Source   string     `json:"source"`
	FullText string     `json:"full_text"`
	Summary  string     `json:"summary"`
	Pages    []*Page    `json:"pages"`
	Chunks   []*Chunk   `json:"chunks"`
	Elements []*Element `json:"-"`
}

// SortElements orders elements by page, then sequence. Equal keys keep
// their relative order.
func SortElements(elements []*Element) {
	sort.SliceStable(elements, func(i, j int) bool {
		if elements[i].PageID != elements[j].PageID {
			return elements[i].PageID < elements[j].PageID
		}
		return elements[i].SequenceID < elements[j].SequenceID
	})
}

// GroupPages groups sorted elements by page id in order of first occurrence.
func GroupPages(elements []*Element) []*Page {
	var pages []*Page
	byID := make(map[int]*Page)
	for _, el := range elements {
		p, ok := byID[el.PageID]
		if !ok {
			p = &Page{PageID: el.PageID}
			byID[el.PageID] = p
			pages = append(pages, p)
		}
		p.Elements = append(p.Elements, el)
	}
	return pages
}

// FullText joins element contents with blank lines.
func FullText(elements []*Element) string {
	return joinContent(elements, "\n\n")
}

// DropOverlapping removes elements that duplicate an earlier element of the
// same page and type, where duplicate means bounding-box IoU >= threshold.
// A threshold <= 0 disables suppression.
func DropOverlapping(elements []*Element, threshold float64) []*Element {
	if threshold <= 0 {
		return elements
	}
	kept := make([]*Element, 0, len(elements))
	for _, el := range elements {
		dup := false
		for _, k := range kept {
			if k.PageID == el.PageID && k.Type == el.Type && k.BBox.Overlap(el.BBox) >= threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, el)
		}
	}
	return kept
}

func joinContent(elements []*Element, sep string) string {
	parts := make([]string, len(elements))
	for i, el := range elements {
		parts[i] = el.Content
	}
	return strings.Join(parts, sep)
}

// FirstHeading returns the content of the first heading element, or "".
func FirstHeading(elements []*Element) string {
	for _, el := range elements {
		if el.Heading > 0 && el.Content != "" {
			return el.Content
		}
	}
	return ""
}

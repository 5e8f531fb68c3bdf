package pipeline

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
	lru "github.com/hashicorp/golang-lru/v2"
)

// RawTranscriber renders visual elements from their source form without a
// model. Output depends only on the element, so repeated calls agree.
type RawTranscriber struct{}

func (RawTranscriber) Transcribe(ctx context.Context, el *layout.Element) (string, error) {
	raw := strings.TrimSpace(el.RawContent)
	switch el.Type {
	case layout.TypeTable:
		return describeTable(raw), nil
	case layout.TypeFigure:
		if raw == "" {
			return fmt.Sprintf("[figure] page %d", el.PageID), nil
		}
		return "[figure] " + raw, nil
	case layout.TypeEquation:
		if raw == "" {
			return "[equation]", nil
		}
		return "$" + raw + "$", nil
	default:
		return el.Content, nil
	}
}

// describeTable flattens a pipe table into one line: a coarse shape summary
// followed by header and row values.
func describeTable(raw string) string {
	rows := ParseMarkdownTable(raw)
	if len(rows) == 0 {
		if raw == "" {
			return "[table]"
		}
		return "[table] " + raw
	}
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = strings.Join(r, ", ")
	}
	return fmt.Sprintf("[table] %d rows x %d columns: %s", len(rows)-1, cols, strings.Join(parts, "; "))
}

// ParseMarkdownTable splits a pipe table into trimmed cells. Separator rows
// are skipped. The first returned row is the header.
func ParseMarkdownTable(raw string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		line = strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
		cells := splitCells(line)
		if isSeparatorRow(cells) {
			continue
		}
		rows = append(rows, cells)
	}
	return rows
}

func splitCells(line string) []string {
	var cells []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" || c == "" {
			return false
		}
	}
	return true
}

// CachedTranscriber memoizes another transcriber. Elements with the same
// type and source form share one transcription; elements without a source
// form are keyed by their location.
type CachedTranscriber struct {
	next  Transcriber
	cache *lru.Cache[string, string]
}

// NewCachedTranscriber wraps next with an LRU cache of size entries.
func NewCachedTranscriber(next Transcriber, size int) (*CachedTranscriber, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create transcription cache: %w", err)
	}
	return &CachedTranscriber{next: next, cache: cache}, nil
}

func (c *CachedTranscriber) Transcribe(ctx context.Context, el *layout.Element) (string, error) {
	key := cacheKey(el)
	if text, ok := c.cache.Get(key); ok {
		return text, nil
	}
	text, err := c.next.Transcribe(ctx, el)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, text)
	return text, nil
}

// Len returns the number of cached transcriptions.
func (c *CachedTranscriber) Len() int { return c.cache.Len() }

func cacheKey(el *layout.Element) string {
	src := el.RawContent
	if strings.TrimSpace(src) == "" {
		src = fmt.Sprintf("%s/%d/%d", el.DocID, el.PageID, el.SequenceID)
	}
	return string(el.Type) + ":" + ContentHashHex([]byte(src))
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// Package index holds the lexical multi-granularity retrieval index.
package index

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/docresearch/internal/layout"
)

// Granularity selects which view family of a document is searched.
type Granularity string

const (
	Chunk   Granularity = "chunk"
	Page    Granularity = "page"
	Full    Granularity = "full"
	Summary Granularity = "summary"
)

// ParseGranularity maps a name (case-insensitive) to a Granularity.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Chunk:
		return Chunk, true
	case Page:
		return Page, true
	case Full:
		return Full, true
	case Summary:
		return Summary, true
	}
	return "", false
}

// NoID marks an absent page or chunk locator.
const NoID = -1

// DefaultTopK is used when a non-positive top-k is requested.
const DefaultTopK = 10

// Entry is one searchable view of a document.
type Entry struct {
	Key         string
	Granularity Granularity
	Content     string
	DocID       string
	PageID      int
	ChunkID     int
	Elements    []*layout.Element
}

// Hit is a scored entry.
type Hit struct {
	Entry *Entry
	Score float64
}

// Index maps entry keys to views. Entries keep insertion order, which is the
// tie-break order of retrieval.
type Index struct {
	mu      sync.RWMutex
	entries []*Entry
	byKey   map[string]int
}

// New returns an empty index.
func New() *Index {
	return &Index{byKey: make(map[string]int)}
}

// IndexDocument registers every view of doc. Re-indexing a document id
// replaces all of its previous entries.
func (ix *Index) IndexDocument(doc *layout.Document) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(doc.DocID)

	for _, c := range doc.Chunks {
		ix.putLocked(&Entry{
			Key:         fmt.Sprintf("%s_chunk_%d", doc.DocID, c.ChunkID),
			Granularity: Chunk,
			Content:     c.Content,
			DocID:       doc.DocID,
			PageID:      c.PageID,
			ChunkID:     c.ChunkID,
			Elements:    c.Elements,
		})
	}
	for _, p := range doc.Pages {
		ix.putLocked(&Entry{
			Key:         fmt.Sprintf("%s_page_%d", doc.DocID, p.PageID),
			Granularity: Page,
			Content:     p.Content(),
			DocID:       doc.DocID,
			PageID:      p.PageID,
			ChunkID:     NoID,
			Elements:    p.Elements,
		})
	}
	ix.putLocked(&Entry{
		Key:         doc.DocID + "_full",
		Granularity: Full,
		Content:     doc.FullText,
		DocID:       doc.DocID,
		PageID:      NoID,
		ChunkID:     NoID,
	})
	ix.putLocked(&Entry{
		Key:         doc.DocID + "_summary",
		Granularity: Summary,
		Content:     doc.Summary,
		DocID:       doc.DocID,
		PageID:      NoID,
		ChunkID:     NoID,
	})
}

// RemoveDocument drops every entry of docID and reports how many were removed.
func (ix *Index) RemoveDocument(docID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.removeLocked(docID)
}

func (ix *Index) putLocked(e *Entry) {
	if i, ok := ix.byKey[e.Key]; ok {
		ix.entries[i] = e
		return
	}
	ix.byKey[e.Key] = len(ix.entries)
	ix.entries = append(ix.entries, e)
}

func (ix *Index) removeLocked(docID string) int {
	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.DocID == docID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0
	}
	for i := len(kept); i < len(ix.entries); i++ {
		ix.entries[i] = nil
	}
	ix.entries = kept
	ix.byKey = make(map[string]int, len(kept))
	for i, e := range kept {
		ix.byKey[e.Key] = i
	}
	return removed
}

// Get returns the entry stored under key.
func (ix *Index) Get(key string) (*Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byKey[key]
	if !ok {
		return nil, false
	}
	return ix.entries[i], true
}

// Len returns the total number of entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Count returns the number of entries of one granularity.
func (ix *Index) Count(g Granularity) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n := 0
	for _, e := range ix.entries {
		if e.Granularity == g {
			n++
		}
	}
	return n
}

// Retrieve scores every entry of granularity g against query and returns the
// topK best, highest first. Ties keep insertion order.
func (ix *Index) Retrieve(query string, g Granularity, topK int) []Hit {
	return ix.RetrieveFrom(query, g, topK, nil)
}

// RetrieveFrom is Retrieve restricted to the given documents. A nil set
// searches every document; an empty non-nil set matches nothing.
func (ix *Index) RetrieveFrom(query string, g Granularity, topK int, docIDs []string) []Hit {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var allow map[string]bool
	if docIDs != nil {
		allow = make(map[string]bool, len(docIDs))
		for _, id := range docIDs {
			allow[id] = true
		}
	}

	q := Terms(query)

	ix.mu.RLock()
	hits := make([]Hit, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.Granularity != g {
			continue
		}
		if allow != nil && !allow[e.DocID] {
			continue
		}
		hits = append(hits, Hit{Entry: e, Score: scoreTerms(q, e.Content)})
	}
	ix.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Score is the fraction of distinct query terms that occur in content.
// An empty query scores 0.
func Score(query, content string) float64 {
	return scoreTerms(Terms(query), content)
}

func scoreTerms(q map[string]struct{}, content string) float64 {
	if len(q) == 0 {
		return 0
	}
	c := Terms(content)
	shared := 0
	for t := range q {
		if _, ok := c[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(q))
}

// Terms lowercases s and splits it on whitespace into a set.
func Terms(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

package research

import (
	"context"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
)

// Searcher runs subqueries against the index.
type Searcher struct {
	Index *index.Index
	TopK  int
}

// Search concatenates the hits of every subquery, in subquery order, from the
// given documents only. Duplicates across subqueries are kept; refinement
// removes them.
func (s *Searcher) Search(ctx context.Context, subqueries []string, g index.Granularity, docs []*layout.Document) []SearchResult {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocID
	}

	var results []SearchResult
	for _, q := range subqueries {
		if ctx.Err() != nil {
			break
		}
		for _, h := range s.Index.RetrieveFrom(q, g, s.TopK, ids) {
			results = append(results, SearchResult{
				Relevance:   h.Score,
				Content:     h.Entry.Content,
				DocID:       h.Entry.DocID,
				PageID:      h.Entry.PageID,
				ChunkID:     h.Entry.ChunkID,
				Granularity: h.Entry.Granularity,
				Elements:    h.Entry.Elements,
			})
		}
	}
	return results
}

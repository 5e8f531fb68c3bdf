package research

import "context"

// Expander proposes new subqueries when evidence is insufficient.
type Expander interface {
	Expand(ctx context.Context, query string, evidence []SearchResult) ([]string, error)
}

// SuffixExpander broadens a query with fixed suffixes.
type SuffixExpander struct{}

func (SuffixExpander) Expand(ctx context.Context, query string, evidence []SearchResult) ([]string, error) {
	return []string{query + " detail", query + " background"}, nil
}

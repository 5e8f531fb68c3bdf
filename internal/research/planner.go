package research

import (
	"context"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
)

// Planner decides which documents, granularity and subqueries a query uses.
type Planner interface {
	Plan(ctx context.Context, query string, history []Turn, docs []*layout.Document) (Plan, error)
}

// RulePlanner plans with keyword rules and connective splitting.
type RulePlanner struct{}

func (RulePlanner) Plan(ctx context.Context, query string, history []Turn, docs []*layout.Document) (Plan, error) {
	return Plan{
		RelevantDocs: FilterDocuments(query, docs),
		Granularity:  SelectGranularity(query),
		Subqueries:   Decompose(query),
		Intent:       DetectIntent(query),
	}, nil
}

// FilterDocuments keeps the documents whose summary shares a term with the
// query. When none do, every document is kept.
func FilterDocuments(query string, docs []*layout.Document) []*layout.Document {
	q := index.Terms(query)
	var relevant []*layout.Document
	for _, d := range docs {
		for t := range index.Terms(d.Summary) {
			if _, ok := q[t]; ok {
				relevant = append(relevant, d)
				break
			}
		}
	}
	if len(relevant) == 0 {
		return docs
	}
	return relevant
}

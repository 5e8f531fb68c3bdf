package research

import (
	"context"
	"sort"
)

// DefaultRelevanceThreshold is the minimum relevance a result needs to
// survive refinement.
const DefaultRelevanceThreshold = 0.1

// Refiner cleans search results and judges whether they suffice.
type Refiner interface {
	Refine(ctx context.Context, results []SearchResult, query string) []SearchResult
	EvaluateSufficiency(ctx context.Context, results []SearchResult, query string) float64
}

// RuleRefiner deduplicates, thresholds and reranks results, and scores
// sufficiency from relevance and coverage.
type RuleRefiner struct {
	Threshold float64
}

func (r RuleRefiner) Refine(ctx context.Context, results []SearchResult, query string) []SearchResult {
	return Rerank(FilterByRelevance(Dedup(results), r.Threshold))
}

func (r RuleRefiner) EvaluateSufficiency(ctx context.Context, results []SearchResult, query string) float64 {
	return Sufficiency(results)
}

// Dedup keeps the first result of each (doc, page, chunk) key.
func Dedup(results []SearchResult) []SearchResult {
	seen := make(map[Key]bool, len(results))
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		k := r.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// FilterByRelevance drops results below threshold.
func FilterByRelevance(results []SearchResult, threshold float64) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Relevance >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// Rerank sorts by relevance, highest first. Ties keep their order.
func Rerank(results []SearchResult) []SearchResult {
	out := append([]SearchResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Relevance > out[j].Relevance })
	return out
}

// coverageTarget is the result count at which coverage saturates.
const coverageTarget = 5

// Sufficiency averages mean relevance with coverage min(n/5, 1).
// No results score 0.
func Sufficiency(results []SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Relevance
	}
	avg := sum / float64(len(results))
	coverage := min(float64(len(results))/coverageTarget, 1)
	return (avg + coverage) / 2
}

package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Reporter turns accumulated evidence into a report.
type Reporter interface {
	GenerateReport(ctx context.Context, query string, results []SearchResult, history []Turn) (string, error)
}

// Template limits per intent.
const (
	comparisonPerDoc = 2
	comparisonChars  = 100
	summaryItems     = 3
	summaryChars     = 150
	explanationItems = 3
	explanationChars = 150
	factualItems     = 3
	factualChars     = 200
	referenceCount   = 5
)

// NoEvidence is the report body used when nothing was retrieved.
const NoEvidence = "No supporting evidence was found in the indexed documents for this query."

// TemplateReporter fills an intent-specific template from the evidence.
type TemplateReporter struct{}

func (TemplateReporter) GenerateReport(ctx context.Context, query string, results []SearchResult, history []Turn) (string, error) {
	return TemplateReport(query, results), nil
}

// TemplateReport renders the heuristic report. It never returns an empty
// string.
func TemplateReport(query string, results []SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research report\n\nQuery: %s\n\n", query)

	if len(results) == 0 {
		sb.WriteString(NoEvidence)
		sb.WriteString("\n")
		return sb.String()
	}

	switch DetectIntent(query) {
	case IntentComparison:
		sb.WriteString("## Comparison\n")
		for _, g := range GroupByDocument(results) {
			fmt.Fprintf(&sb, "\n### Document %s\n", g.DocID)
			for _, r := range firstN(g.Results, comparisonPerDoc) {
				fmt.Fprintf(&sb, "- %s\n", Truncate(r.Content, comparisonChars))
			}
		}
	case IntentSummary:
		sb.WriteString("## Summary\n\n")
		writeItems(&sb, topByRelevance(results, summaryItems), summaryChars)
	case IntentExplanation:
		sb.WriteString("## Explanation\n\n")
		writeItems(&sb, firstN(results, explanationItems), explanationChars)
	default:
		sb.WriteString("## Answer\n\n")
		writeItems(&sb, firstN(results, factualItems), factualChars)
	}

	sb.WriteString("\n")
	sb.WriteString(References(results))
	return sb.String()
}

func writeItems(sb *strings.Builder, results []SearchResult, n int) {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = Truncate(r.Content, n)
	}
	sb.WriteString(strings.Join(parts, "\n\n"))
	sb.WriteString("\n")
}

// References lists the first five results as numbered citations.
func References(results []SearchResult) string {
	var sb strings.Builder
	sb.WriteString("## References\n\n")
	for i, r := range firstN(results, referenceCount) {
		fmt.Fprintf(&sb, "[%d] %s\n", i+1, r.Locator())
	}
	return sb.String()
}

// DocumentGroup is the evidence from one document.
type DocumentGroup struct {
	DocID   string
	Results []SearchResult
}

// GroupByDocument partitions results by document in first-occurrence order,
// preserving order within each group.
func GroupByDocument(results []SearchResult) []DocumentGroup {
	var groups []DocumentGroup
	pos := make(map[string]int)
	for _, r := range results {
		i, ok := pos[r.DocID]
		if !ok {
			i = len(groups)
			pos[r.DocID] = i
			groups = append(groups, DocumentGroup{DocID: r.DocID})
		}
		groups[i].Results = append(groups[i].Results, r)
	}
	return groups
}

func topByRelevance(results []SearchResult, n int) []SearchResult {
	sorted := append([]SearchResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Relevance > sorted[j].Relevance })
	return firstN(sorted, n)
}

func firstN(results []SearchResult, n int) []SearchResult {
	if len(results) > n {
		return results[:n]
	}
	return results
}

// Truncate cuts s to n characters, marking the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

package research

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/docresearch/internal/index"
)

// Rule maps a query pattern to a result. Rule tables are evaluated in order
// and the first match wins.
type Rule[T any] struct {
	Match  *regexp.Regexp
	Result T
}

func firstMatch[T any](rules []Rule[T], query string, fallback T) T {
	for _, r := range rules {
		if r.Match.MatchString(query) {
			return r.Result
		}
	}
	return fallback
}

// keywords compiles a case-insensitive matcher. ASCII words match on word
// boundaries; other words (CJK) match as substrings since they are not
// space-delimited.
func keywords(words ...string) *regexp.Regexp {
	var latin, other []string
	for _, w := range words {
		if isASCII(w) {
			latin = append(latin, regexp.QuoteMeta(w))
		} else {
			other = append(other, regexp.QuoteMeta(w))
		}
	}
	var alts []string
	if len(latin) > 0 {
		alts = append(alts, `\b(?:`+strings.Join(latin, "|")+`)\b`)
	}
	alts = append(alts, other...)
	return regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

var granularityRules = []Rule[index.Granularity]{
	{keywords("summarize", "summarise", "summary", "summaries", "overview", "总结", "概述", "摘要"), index.Summary},
	{keywords("full", "entire", "whole", "complete", "全部", "完整", "整个"), index.Full},
	{keywords("page", "pages", "页面"), index.Page},
}

// SelectGranularity picks the view family a query should search.
func SelectGranularity(query string) index.Granularity {
	return firstMatch(granularityRules, query, index.Chunk)
}

var intentRules = []Rule[Intent]{
	{keywords("compare", "compared", "comparison", "versus", "vs", "difference", "differences", "比较", "对比"), IntentComparison},
	{keywords("summarize", "summarise", "summary", "overview", "总结", "概述"), IntentSummary},
	{keywords("why", "explain", "explanation", "reason", "reasons", "cause", "为什么", "原因"), IntentExplanation},
}

// DetectIntent classifies a query for report templating.
func DetectIntent(query string) Intent {
	return firstMatch(intentRules, query, IntentFactual)
}

var connectives = regexp.MustCompile(`(?i)\b(?:as\s+well\s+as|and|also)\b|以及|还有|和`)

// Decompose splits a query on connectives into trimmed, non-empty
// subqueries. A query without connectives is returned as is.
func Decompose(query string) []string {
	parts := connectives.Split(query, -1)
	if len(parts) <= 1 {
		return []string{query}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{query}
	}
	return out
}

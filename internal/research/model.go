package research

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/dgallion1/docresearch/internal/llm"
)

// Subquery limits for the model-backed variants.
const (
	modelSubqueries  = 3
	modelExpansions  = 2
	expansionRequest = " (need more information)"
)

// ModelPlanner asks the model for intent, granularity and subqueries. Any
// unusable reply falls back to factual intent, chunk granularity and the
// query itself.
type ModelPlanner struct {
	Model llm.Completer
	Log   *slog.Logger
}

func (p ModelPlanner) Plan(ctx context.Context, query string, history []Turn, docs []*layout.Document) (Plan, error) {
	log := orDiscard(p.Log)

	in := llm.DefaultIntent()
	reply, err := p.Model.Complete(llm.WithOperation(ctx, llm.OpIntent), llm.IntentSystem, llm.BuildIntentPrompt(query))
	if err == nil {
		in, err = llm.ParseIntent(reply)
	}
	if err != nil {
		log.Warn("intent analysis failed, using defaults", "error", err)
	}

	subqueries := []string{query}
	reply, err = p.Model.Complete(llm.WithOperation(ctx, llm.OpSubqueries), llm.SubquerySystem, llm.BuildSubqueryPrompt(query, modelSubqueries))
	if err == nil {
		var qs []string
		if qs, err = llm.ParseSubqueries(reply, modelSubqueries); err == nil {
			subqueries = qs
		}
	}
	if err != nil {
		log.Warn("subquery generation failed, using query", "error", err)
	}

	g, ok := index.ParseGranularity(in.Granularity)
	if !ok {
		g = index.Chunk
	}
	return Plan{
		RelevantDocs: FilterDocuments(query, docs),
		Granularity:  g,
		Subqueries:   subqueries,
		Intent:       Intent(in.IntentType),
	}, nil
}

// ModelRefiner refines like RuleRefiner and asks the model to judge
// sufficiency, defaulting to llm.DefaultSufficiency.
type ModelRefiner struct {
	Model     llm.Completer
	Threshold float64
	Log       *slog.Logger
}

func (r ModelRefiner) Refine(ctx context.Context, results []SearchResult, query string) []SearchResult {
	return RuleRefiner{Threshold: r.Threshold}.Refine(ctx, results, query)
}

func (r ModelRefiner) EvaluateSufficiency(ctx context.Context, results []SearchResult, query string) float64 {
	if len(results) == 0 {
		return 0
	}
	contents := make([]string, len(results))
	for i, res := range results {
		contents[i] = res.Content
	}
	reply, err := r.Model.Complete(llm.WithOperation(ctx, llm.OpSufficiency), llm.SufficiencySystem, llm.BuildSufficiencyPrompt(query, contents))
	if err != nil {
		orDiscard(r.Log).Warn("sufficiency assessment failed", "error", err)
		return llm.DefaultSufficiency
	}
	score, reason, err := llm.ParseSufficiency(reply)
	if err != nil {
		orDiscard(r.Log).Warn("sufficiency reply unusable", "error", err)
		return llm.DefaultSufficiency
	}
	orDiscard(r.Log).Debug("sufficiency assessed", "score", score, "reason", reason)
	return score
}

// ModelReporter writes the report with the model and appends references.
// On failure it returns the template report.
type ModelReporter struct {
	Model llm.Completer
	Log   *slog.Logger
}

func (r ModelReporter) GenerateReport(ctx context.Context, query string, results []SearchResult, history []Turn) (string, error) {
	if len(results) == 0 {
		return TemplateReport(query, results), nil
	}

	evidence := make([]llm.Evidence, len(results))
	for i, res := range results {
		evidence[i] = llm.Evidence{DocID: res.DocID, Content: res.Content, Relevance: res.Relevance}
	}
	msgs := make([]llm.Message, len(history))
	for i, t := range history {
		msgs[i] = llm.Message{Role: t.Role, Content: t.Content}
	}

	reply, err := r.Model.Complete(llm.WithOperation(ctx, llm.OpReport), llm.ReportSystem, llm.BuildReportPrompt(query, evidence, msgs))
	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = llm.ErrUnparseable
	}
	if err != nil {
		orDiscard(r.Log).Warn("report generation failed, using template", "error", err)
		return TemplateReport(query, results), nil
	}
	return reply + "\n\n" + References(results), nil
}

// ModelExpander asks the model for follow-up subqueries. Errors are returned
// so the caller can keep its previous subqueries.
type ModelExpander struct {
	Model llm.Completer
}

func (e ModelExpander) Expand(ctx context.Context, query string, evidence []SearchResult) ([]string, error) {
	q := query + expansionRequest
	reply, err := e.Model.Complete(llm.WithOperation(ctx, llm.OpSubqueries), llm.SubquerySystem, llm.BuildSubqueryPrompt(q, modelExpansions))
	if err != nil {
		return nil, err
	}
	return llm.ParseSubqueries(reply, modelExpansions)
}

func orDiscard(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return log
}

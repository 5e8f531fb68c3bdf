package llm

import (
	"fmt"
	"strings"
)

// Message is one conversation turn passed to prompts.
type Message struct {
	Role    string
	Content string
}

// Evidence is one retrieved passage passed to prompts.
type Evidence struct {
	DocID     string
	Content   string
	Relevance float64
}

// Operation labels used with WithOperation.
const (
	OpTable       = "table"
	OpFigure      = "figure"
	OpEquation    = "equation"
	OpSummary     = "summary"
	OpIntent      = "intent"
	OpSubqueries  = "subqueries"
	OpSufficiency = "sufficiency"
	OpReport      = "report"
)

const TableSystem = "You are a data analyst who reads tables and describes them precisely."

// BuildTablePrompt asks for a coarse and a fine description of a table.
func BuildTablePrompt(tableMarkdown string) string {
	return fmt.Sprintf(`Analyze the following table and describe it at two levels.

Table (Markdown):
`+"```"+`
%s
`+"```"+`

Answer in this format:

[Coarse description]
(one or two sentences on what the table covers and why)

[Fine description]
(structure, meaning of each column, notable values and trends)`, tableMarkdown)
}

const FigureSystem = "You are a visual content analyst who describes charts and diagrams."

// BuildFigurePrompt asks for a coarse and a fine description of a figure
// known only through its caption or alt text.
func BuildFigurePrompt(figureContext string) string {
	if strings.TrimSpace(figureContext) == "" {
		figureContext = "(no caption available)"
	}
	return fmt.Sprintf(`Describe a figure from a document. You cannot see the image; its context is:

%s

Produce a plausible description grounded only in that context, in this format:

[Coarse description]
(one or two sentences on the subject and kind of figure)

[Fine description]
(likely elements, structure, flow or relationships shown)`, figureContext)
}

const EquationSystem = "You are a mathematician who transcribes formulas into LaTeX."

// BuildEquationPrompt asks for a LaTeX rendering and a one-line reading.
func BuildEquationPrompt(raw string) string {
	return fmt.Sprintf(`Transcribe the following formula as LaTeX wrapped in $...$, then explain in one sentence what it states.

%s`, raw)
}

const SummarySystem = "You are a document summarization expert who extracts the core content of a document."

// summaryPreviewChars bounds how much document text is sent for summarization.
const summaryPreviewChars = 3000

// BuildSummaryPrompt asks for a summary of at most maxChars characters.
func BuildSummaryPrompt(fullText string, maxChars int) string {
	preview := truncate(fullText, summaryPreviewChars)
	return fmt.Sprintf(`Summarize the following document in at most %d characters, covering its topic, purpose, key points and important facts. Stay objective and accurate.

%s`, maxChars, preview)
}

const IntentSystem = "You are a query analysis expert who understands what users are asking for."

// BuildIntentPrompt asks for a JSON intent analysis of query.
func BuildIntentPrompt(query string) string {
	return fmt.Sprintf(`Analyze the intent of the following user query and return the analysis as JSON.

Query: %s

Fields:
1. intent_type: factual, comparison, summary or explanation
2. granularity: suggested retrieval granularity, one of chunk, page, full, summary
3. complexity: simple, medium or complex
4. needs_multi_doc: whether several documents are needed (true/false)

Return only JSON:
`+"```json"+`
{"intent_type": "...", "granularity": "...", "complexity": "...", "needs_multi_doc": false}
`+"```", query)
}

const SubquerySystem = "You are a query decomposition expert who splits complex questions into simple ones."

// BuildSubqueryPrompt asks for at most n subqueries as a JSON array.
func BuildSubqueryPrompt(query string, n int) string {
	return fmt.Sprintf(`Split the following query into at most %d simpler, more specific subqueries.

Original query: %s

Requirements:
1. Each subquery is independent and answerable.
2. Together they cover the different aspects of the original query.
3. Keep the core intent.
4. If the query is already simple, return a single subquery.

Return only a JSON array of strings:
`+"```json"+`
["subquery 1", "subquery 2"]
`+"```", n, query)
}

const SufficiencySystem = "You are an information assessment expert who judges whether evidence answers a question."

// Sufficiency prompt limits.
const (
	sufficiencyPassages     = 5
	sufficiencyPassageChars = 500
	sufficiencyTotalChars   = 2000
)

// BuildSufficiencyPrompt asks for a JSON sufficiency score of the first
// passages against query.
func BuildSufficiencyPrompt(query string, contents []string) string {
	if len(contents) > sufficiencyPassages {
		contents = contents[:sufficiencyPassages]
	}
	parts := make([]string, len(contents))
	for i, c := range contents {
		parts[i] = truncate(c, sufficiencyPassageChars)
	}
	combined := truncate(strings.Join(parts, "\n\n---\n\n"), sufficiencyTotalChars)

	return fmt.Sprintf(`Judge whether the retrieved information sufficiently answers the user's query.

Query: %s

Retrieved information:
%s

Score sufficiency between 0 and 1 and give a short reason. Return only JSON:
`+"```json"+`
{"sufficiency_score": 0.0, "reason": "..."}
`+"```", query, combined)
}

const ReportSystem = `You are a research report writer who synthesizes several sources into a high-quality answer.

Requirements:
1. Base the analysis only on the evidence provided.
2. Stay objective and accurate; never invent information.
3. Organize the content with a clear structure.
4. Cite sources inline as [Evidence N].
5. Say so explicitly when the evidence is insufficient.`

// Report prompt limits.
const (
	reportEvidence      = 10
	reportEvidenceChars = 300
	reportHistoryTurns  = 4
	reportHistoryChars  = 100
)

// BuildReportPrompt asks for a cited report from the strongest evidence and
// the most recent conversation turns. History is only included once the
// conversation has more than the current turn.
func BuildReportPrompt(query string, evidence []Evidence, history []Message) string {
	var sb strings.Builder

	if len(history) > 1 {
		recent := history[max(0, len(history)-reportHistoryTurns):]
		sb.WriteString("Conversation history:\n")
		for _, m := range recent {
			role := "Assistant"
			if m.Role == "user" {
				role = "User"
			}
			fmt.Fprintf(&sb, "%s: %s\n", role, truncate(m.Content, reportHistoryChars))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Current query: %s\n\nRetrieved evidence:\n", query)
	if len(evidence) > reportEvidence {
		evidence = evidence[:reportEvidence]
	}
	for i, ev := range evidence {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[Evidence %d] (source: %s)\n%s\n", i+1, ev.DocID, truncate(ev.Content, reportEvidenceChars))
	}

	sb.WriteString(`
Write a thorough, accurate research report for the query based on the evidence above. The report should:
1. Answer the question directly.
2. Combine several evidence sources.
3. Mark sources with [Evidence N].
4. Be clearly structured and easy to read.
5. Be of moderate length (roughly 300 to 800 words).`)
	return sb.String()
}

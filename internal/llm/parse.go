package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var codeBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// ExtractJSON returns the JSON payload of a model reply: the body of the
// first fenced code block, else the outermost {...} or [...] span, else
// the trimmed reply.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	if span, ok := outerSpan(s, '{', '}'); ok {
		return span
	}
	if span, ok := outerSpan(s, '[', ']'); ok {
		return span
	}
	return s
}

func outerSpan(s string, open, close byte) (string, bool) {
	i := strings.IndexByte(s, open)
	j := strings.LastIndexByte(s, close)
	if i < 0 || j <= i {
		return "", false
	}
	return s[i : j+1], true
}

// Intent is the model's analysis of a query.
type Intent struct {
	IntentType    string `json:"intent_type"`
	Granularity   string `json:"granularity"`
	Complexity    string `json:"complexity"`
	NeedsMultiDoc bool   `json:"needs_multi_doc"`
}

// DefaultIntent is used whenever the model's intent analysis is unusable.
func DefaultIntent() Intent {
	return Intent{
		IntentType:  "factual",
		Granularity: "chunk",
		Complexity:  "medium",
	}
}

var (
	validIntents       = map[string]bool{"factual": true, "comparison": true, "summary": true, "explanation": true}
	validGranularities = map[string]bool{"chunk": true, "page": true, "full": true, "summary": true}
)

// ErrUnparseable is returned when a model reply cannot be decoded.
var ErrUnparseable = errors.New("unparseable model reply")

// ParseIntent decodes an intent reply. Unknown field values fall back to the
// defaults individually; a reply that is not JSON returns DefaultIntent and
// an error.
func ParseIntent(reply string) (Intent, error) {
	var in Intent
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &in); err != nil {
		return DefaultIntent(), fmt.Errorf("%w: intent: %v (raw: %s)", ErrUnparseable, err, truncate(reply, 200))
	}
	def := DefaultIntent()
	in.IntentType = strings.ToLower(strings.TrimSpace(in.IntentType))
	in.Granularity = strings.ToLower(strings.TrimSpace(in.Granularity))
	if !validIntents[in.IntentType] {
		in.IntentType = def.IntentType
	}
	if !validGranularities[in.Granularity] {
		in.Granularity = def.Granularity
	}
	if in.Complexity == "" {
		in.Complexity = def.Complexity
	}
	return in, nil
}

// ParseSubqueries decodes a JSON array of subqueries, drops blanks and keeps
// at most n. An unusable reply returns an error.
func ParseSubqueries(reply string, n int) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &raw); err != nil {
		return nil, fmt.Errorf("%w: subqueries: %v (raw: %s)", ErrUnparseable, err, truncate(reply, 200))
	}
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: subqueries: empty list", ErrUnparseable)
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// DefaultSufficiency is used whenever the model's assessment is unusable.
const DefaultSufficiency = 0.5

type sufficiencyReply struct {
	Score  *float64 `json:"sufficiency_score"`
	Reason string   `json:"reason"`
}

// ParseSufficiency decodes a sufficiency reply, clamping the score to [0, 1].
// An unusable reply returns DefaultSufficiency and an error.
func ParseSufficiency(reply string) (float64, string, error) {
	var r sufficiencyReply
	if err := json.Unmarshal([]byte(ExtractJSON(reply)), &r); err != nil {
		return DefaultSufficiency, "", fmt.Errorf("%w: sufficiency: %v (raw: %s)", ErrUnparseable, err, truncate(reply, 200))
	}
	if r.Score == nil {
		return DefaultSufficiency, r.Reason, fmt.Errorf("%w: sufficiency: missing score", ErrUnparseable)
	}
	return min(max(*r.Score, 0), 1), r.Reason, nil
}

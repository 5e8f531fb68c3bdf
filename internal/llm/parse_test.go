package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"prose around fence", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`},
		{"prose around object", "Result: {\"a\":1} done", `{"a":1}`},
		{"array only", "  [\"x\"]  ", `["x"]`},
		{"plain", "  nothing  ", "nothing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Intent
		wantErr bool
	}{
		{
			name:  "valid",
			reply: "```json\n{\"intent_type\": \"comparison\", \"granularity\": \"page\", \"complexity\": \"complex\", \"needs_multi_doc\": true}\n```",
			want:  Intent{IntentType: "comparison", Granularity: "page", Complexity: "complex", NeedsMultiDoc: true},
		},
		{
			name:  "unknown values fall back per field",
			reply: `{"intent_type": "poetry", "granularity": "Summary"}`,
			want:  Intent{IntentType: "factual", Granularity: "summary", Complexity: "medium"},
		},
		{
			name:    "garbage",
			reply:   "I think it's factual",
			want:    DefaultIntent(),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIntent(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnparseable) {
				t.Errorf("expected ErrUnparseable, got %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseSubqueries(t *testing.T) {
	got, err := ParseSubqueries("```json\n[\"a\", \" \", \"b\", \"c\", \"d\"]\n```", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("got %q", got)
	}

	if _, err := ParseSubqueries("[]", 3); !errors.Is(err, ErrUnparseable) {
		t.Errorf("empty list should be unparseable, got %v", err)
	}
	if _, err := ParseSubqueries("not json", 3); !errors.Is(err, ErrUnparseable) {
		t.Errorf("garbage should be unparseable, got %v", err)
	}
}

func TestParseSufficiency(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    float64
		wantErr bool
	}{
		{"valid", `{"sufficiency_score": 0.8, "reason": "covers it"}`, 0.8, false},
		{"clamped high", `{"sufficiency_score": 3}`, 1, false},
		{"clamped low", `{"sufficiency_score": -1}`, 0, false},
		{"missing score", `{"reason": "?"}`, DefaultSufficiency, true},
		{"garbage", "maybe", DefaultSufficiency, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := ParseSufficiency(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

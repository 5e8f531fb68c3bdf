package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/dgallion1/docresearch/internal/retry"
)

func testConfig(url string) Config {
	return Config{
		BaseURL: url,
		Model:   "test-model",
		APIKey:  "secret",
		Timeout: 5 * time.Second,
		Retry:   retry.Policy{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxRetries: 2},
	}
}

func writeReply(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
}

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeReply(w, "hello")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/v1/"), nil)
	defer c.Close()

	out, err := c.Complete(WithOperation(context.Background(), OpReport), "sys", "user msg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("reply = %q", out)
	}
	if got.Model != "test-model" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "user msg" {
		t.Errorf("unexpected request: %+v", got)
	}
	if c.Model() != "test-model" {
		t.Errorf("Model() = %q", c.Model())
	}
	if snap := c.Stats().Snapshot(); snap.Operations[OpReport].Count != 1 {
		t.Errorf("expected one recorded report call, got %+v", snap)
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, `{"error":{"type":"overloaded","message":"busy"}}`, http.StatusServiceUnavailable)
			return
		}
		writeReply(w, "finally")
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	out, err := c.Complete(context.Background(), "", "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "finally" || calls.Load() != 3 {
		t.Errorf("out=%q calls=%d", out, calls.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Complete(context.Background(), "", "q")
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error after exhausting retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", calls.Load())
	}
	if snap := c.Stats().Snapshot(); snap.Failures != 1 {
		t.Errorf("expected one failed call, got %+v", snap)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request","message":"bad model"}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Complete(context.Background(), "", "q")
	if err == nil || IsRetryable(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad model") {
		t.Errorf("error should carry api message: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	if _, err := NewClient(testConfig(srv.URL), nil).Complete(context.Background(), "", "q"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

type scriptedModel struct {
	replies map[string]string
	prompts []string
}

func (m *scriptedModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.prompts = append(m.prompts, user)
	return m.replies[system], nil
}

func TestTranscriber(t *testing.T) {
	m := &scriptedModel{replies: map[string]string{
		TableSystem:  "[Coarse description]\nScores per model.",
		FigureSystem: "  A loss curve.  ",
	}}
	tr := Transcriber{Model: m}

	out, err := tr.Transcribe(context.Background(), &layout.Element{Type: layout.TypeTable, RawContent: "| a |"})
	if err != nil || !strings.Contains(out, "Scores per model.") {
		t.Fatalf("table: out=%q err=%v", out, err)
	}
	if !strings.Contains(m.prompts[0], "| a |") {
		t.Errorf("table prompt missing raw content: %q", m.prompts[0])
	}

	out, err = tr.Transcribe(context.Background(), &layout.Element{Type: layout.TypeFigure, RawContent: "loss"})
	if err != nil || out != "A loss curve." {
		t.Fatalf("figure: out=%q err=%v", out, err)
	}

	if _, err := tr.Transcribe(context.Background(), &layout.Element{Type: layout.TypeEquation, RawContent: "x"}); err == nil {
		t.Error("expected error for empty equation description")
	}

	out, err = tr.Transcribe(context.Background(), &layout.Element{Type: layout.TypeText, Content: "plain"})
	if err != nil || out != "plain" {
		t.Errorf("text: out=%q err=%v", out, err)
	}
}

func TestBuildReportPrompt(t *testing.T) {
	var evidence []Evidence
	for i := 0; i < 12; i++ {
		evidence = append(evidence, Evidence{DocID: "doc_1", Content: strings.Repeat("e", 400)})
	}
	history := []Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "answer"},
		{Role: "user", Content: "second"},
		{Role: "assistant", Content: "answer two"},
		{Role: "user", Content: "third"},
	}

	p := BuildReportPrompt("third", evidence, history)
	if strings.Contains(p, "[Evidence 11]") || !strings.Contains(p, "[Evidence 10]") {
		t.Error("report prompt should include exactly ten evidence items")
	}
	if strings.Contains(p, "User: first") || !strings.Contains(p, "Assistant: answer") {
		t.Error("report prompt should include only the last four turns")
	}
	if strings.Contains(p, strings.Repeat("e", 301)) {
		t.Error("evidence should be truncated to 300 characters")
	}

	if p := BuildReportPrompt("q", nil, []Message{{Role: "user", Content: "q"}}); strings.Contains(p, "Conversation history") {
		t.Error("a single-turn history should be omitted")
	}
}

func TestBuildSufficiencyPrompt(t *testing.T) {
	contents := []string{strings.Repeat("a", 600), "b", "c", "d", "e", "sixth"}
	p := BuildSufficiencyPrompt("q", contents)
	if strings.Contains(p, "sixth") {
		t.Error("only the first five passages should be included")
	}
	if strings.Contains(p, strings.Repeat("a", 501)) {
		t.Error("passages should be truncated to 500 characters")
	}
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/dgallion1/docresearch/internal/parser"
)

type fakeExtractor struct {
	elements []*layout.Element
	err      error
}

func (f *fakeExtractor) Extract(ctx context.Context, path, docID string) ([]*layout.Element, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*layout.Element, len(f.elements))
	for i, el := range f.elements {
		cp := *el
		cp.DocID = docID
		out[i] = &cp
	}
	return out, nil
}

type countingTranscriber struct {
	calls atomic.Int32
	err   error
}

func (c *countingTranscriber) Transcribe(ctx context.Context, el *layout.Element) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return "described " + string(el.Type), nil
}

type staticSummarizer struct {
	summary string
	err     error
}

func (s staticSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return s.summary, s.err
}

func band(page, seq int) layout.BoundingBox {
	top := float64(seq) * 10
	return layout.BoundingBox{X1: 0, Y1: top, X2: 100, Y2: top + 10}
}

func sampleElements() []*layout.Element {
	return []*layout.Element{
		{PageID: 2, SequenceID: 1, Type: layout.TypeText, BBox: band(2, 1), Content: "page two text"},
		{PageID: 1, SequenceID: 1, Type: layout.TypeText, BBox: band(1, 1), Content: "intro"},
		{PageID: 1, SequenceID: 2, Type: layout.TypeTable, BBox: band(1, 2), RawContent: "| a | b |\n| --- | --- |\n| 1 | 2 |"},
		{PageID: 1, SequenceID: 3, Type: layout.TypeFigure, BBox: band(1, 3), RawContent: "loss curve"},
	}
}

func TestParse_Views(t *testing.T) {
	tr := &countingTranscriber{}
	p := NewParser(&fakeExtractor{elements: sampleElements()},
		WithTranscriber(tr),
		WithSummarizer(staticSummarizer{summary: "short summary"}),
	)

	doc, err := p.Parse(context.Background(), "/tmp/report.pdf", "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.DocID != "doc_1" || doc.Title != "report" {
		t.Errorf("unexpected identity: %q %q", doc.DocID, doc.Title)
	}
	if got := tr.calls.Load(); got != 2 {
		t.Errorf("transcriber called %d times, want 2", got)
	}
	wantFull := "intro\n\ndescribed table\n\ndescribed figure\n\npage two text"
	if doc.FullText != wantFull {
		t.Errorf("full text = %q, want %q", doc.FullText, wantFull)
	}
	if doc.Summary != "short summary" {
		t.Errorf("summary = %q", doc.Summary)
	}
	if len(doc.Pages) != 2 || doc.Pages[0].PageID != 1 || doc.Pages[1].PageID != 2 {
		t.Fatalf("unexpected pages: %+v", doc.Pages)
	}
	if len(doc.Chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(doc.Chunks))
	}
	if doc.Chunks[0].DocID != "doc_1" {
		t.Errorf("chunk doc id = %q", doc.Chunks[0].DocID)
	}
	for _, el := range doc.Elements {
		if el.Type == layout.TypeText && strings.HasPrefix(el.Content, "described") {
			t.Error("text element was transcribed")
		}
	}
}

func TestParse_PlaceholderSummary(t *testing.T) {
	p := NewParser(&fakeExtractor{elements: []*layout.Element{
		{PageID: 1, SequenceID: 1, Type: layout.TypeText, Content: "hello"},
	}})
	doc, err := p.Parse(context.Background(), "a.txt", "doc_3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Summary != "Document doc_3 (5 characters of extracted content)." {
		t.Errorf("summary = %q", doc.Summary)
	}
}

func TestParse_StageErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		p     *Parser
		stage Stage
	}{
		{"extract", NewParser(&fakeExtractor{err: boom}), StageExtracting},
		{"transcribe", NewParser(&fakeExtractor{elements: sampleElements()}, WithTranscriber(&countingTranscriber{err: boom})), StageTranscribing},
		{"summarize", NewParser(&fakeExtractor{elements: sampleElements()}, WithSummarizer(staticSummarizer{err: boom})), StageSummarizing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Parse(context.Background(), "x.pdf", "doc_1")
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped boom, got %v", err)
			}
			var se *StageError
			if !errors.As(err, &se) || se.Stage != tt.stage {
				t.Errorf("expected stage %s, got %v", tt.stage, err)
			}
		})
	}
}

func TestParse_DropsOverlappingDetections(t *testing.T) {
	els := []*layout.Element{
		{PageID: 1, SequenceID: 1, Type: layout.TypeTable, BBox: layout.BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 50}, RawContent: "| a |\n| - |\n| 1 |"},
		{PageID: 1, SequenceID: 2, Type: layout.TypeTable, BBox: layout.BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 50}, RawContent: "| a |\n| - |\n| 1 |"},
	}
	doc, err := NewParser(&fakeExtractor{elements: els}).Parse(context.Background(), "t.pdf", "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Elements) != 1 {
		t.Errorf("expected duplicate detection to be dropped, got %d elements", len(doc.Elements))
	}

	doc, err = NewParser(&fakeExtractor{elements: els}, WithOverlapThreshold(0)).Parse(context.Background(), "t.pdf", "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Elements) != 2 {
		t.Errorf("expected suppression disabled, got %d elements", len(doc.Elements))
	}
}

func TestParse_ChunkBudget(t *testing.T) {
	els := []*layout.Element{
		{PageID: 1, SequenceID: 1, Type: layout.TypeText, BBox: band(1, 1), Content: strings.Repeat("a", 300)},
		{PageID: 1, SequenceID: 2, Type: layout.TypeText, BBox: band(1, 2), Content: strings.Repeat("b", 300)},
	}
	p := NewParser(&fakeExtractor{elements: els}, WithMaxChunkLength(1000))
	doc, err := p.Parse(context.Background(), "a.txt", "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Chunks) != 1 {
		t.Errorf("expected 1 chunk under a 1000 budget, got %d", len(doc.Chunks))
	}
	if p.MaxChunkLength() != 1000 {
		t.Errorf("MaxChunkLength = %d", p.MaxChunkLength())
	}
}

func TestParse_TitleFromFirstHeading(t *testing.T) {
	p := NewParser(&fakeExtractor{elements: []*layout.Element{
		{PageID: 1, SequenceID: 1, Type: layout.TypeText, Content: "preamble"},
		{PageID: 1, SequenceID: 2, Type: layout.TypeText, Content: "Quarterly Evaluation", Heading: 1},
	}})
	doc, err := p.Parse(context.Background(), "/tmp/notes_v2.md", "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Quarterly Evaluation" {
		t.Errorf("title = %q, want first heading", doc.Title)
	}
}

func TestParse_MarkdownHeadingTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes_v2.md")
	src := "# Quarterly Evaluation\n\nAccuracy improved on every split.\n\n## Details\n\nRecall held steady.\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewParser(parser.FileExtractor{}).Parse(context.Background(), path, "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Quarterly Evaluation" {
		t.Errorf("title = %q, want %q", doc.Title, "Quarterly Evaluation")
	}
}

func TestParse_TitleFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes_v2.txt")
	if err := os.WriteFile(path, []byte("Accuracy improved on every split."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewParser(parser.FileExtractor{}).Parse(context.Background(), path, "doc_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "notes_v2" {
		t.Errorf("title = %q, want notes_v2", doc.Title)
	}
}

func TestParse_BlankSummaryUsesPlaceholder(t *testing.T) {
	p := NewParser(&fakeExtractor{elements: []*layout.Element{
		{PageID: 1, SequenceID: 1, Type: layout.TypeText, Content: "hello"},
	}}, WithSummarizer(staticSummarizer{summary: "  \n"}))

	doc, err := p.Parse(context.Background(), "a.txt", "doc_4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Summary != "Document doc_4 (5 characters of extracted content)." {
		t.Errorf("summary = %q", doc.Summary)
	}
}

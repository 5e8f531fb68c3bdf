package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dgallion1/docresearch/internal/chunker"
	"github.com/dgallion1/docresearch/internal/layout"
)

// Extractor produces the layout elements of a source file.
type Extractor interface {
	Extract(ctx context.Context, path, docID string) ([]*layout.Element, error)
}

// Transcriber renders a visual element (table, figure, equation) as text.
type Transcriber interface {
	Transcribe(ctx context.Context, el *layout.Element) (string, error)
}

// Summarizer condenses a document's full text.
type Summarizer interface {
	Summarize(ctx context.Context, fullText string) (string, error)
}

// Stage names a step of document parsing.
type Stage string

const (
	StageExtracting   Stage = "extracting"
	StageTranscribing Stage = "transcribing"
	StageChunking     Stage = "chunking"
	StageSummarizing  Stage = "summarizing"
)

// StageError reports which parsing stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// DefaultOverlapThreshold is the IoU above which two same-type elements on a
// page are treated as one detection.
const DefaultOverlapThreshold = 0.95

// Parser turns a source file into a multi-view Document.
type Parser struct {
	extractor   Extractor
	transcriber Transcriber
	summarizer  Summarizer
	log         *slog.Logger

	maxChunkLength          int
	overlapThreshold        float64
	maxConcurrentTranscribe int
}

// Option configures a Parser.
type Option func(*Parser)

// WithTranscriber sets the capability used for visual elements.
func WithTranscriber(t Transcriber) Option {
	return func(p *Parser) {
		if t != nil {
			p.transcriber = t
		}
	}
}

// WithSummarizer sets the summary capability. Without one, documents get a
// placeholder summary.
func WithSummarizer(s Summarizer) Option {
	return func(p *Parser) { p.summarizer = s }
}

// WithMaxChunkLength sets the chunk budget in characters.
func WithMaxChunkLength(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxChunkLength = n
		}
	}
}

// WithOverlapThreshold sets the duplicate-detection IoU. Zero disables it.
func WithOverlapThreshold(t float64) Option {
	return func(p *Parser) { p.overlapThreshold = t }
}

// WithMaxConcurrentTranscribe bounds in-flight transcription calls.
func WithMaxConcurrentTranscribe(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxConcurrentTranscribe = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// NewParser builds a Parser around an extractor.
func NewParser(extractor Extractor, opts ...Option) *Parser {
	p := &Parser{
		extractor:               extractor,
		transcriber:             RawTranscriber{},
		log:                     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxChunkLength:          chunker.DefaultMaxLength,
		overlapThreshold:        DefaultOverlapThreshold,
		maxConcurrentTranscribe: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxChunkLength returns the configured chunk budget.
func (p *Parser) MaxChunkLength() int { return p.maxChunkLength }

// Parse runs extraction, transcription, chunking and view derivation. Any
// stage failure fails the whole document.
func (p *Parser) Parse(ctx context.Context, path, docID string) (*layout.Document, error) {
	log := p.log.With("doc_id", docID, "source", filepath.Base(path))

	// Phase 1: Extract
	elements, err := p.extractor.Extract(ctx, path, docID)
	if err != nil {
		return nil, &StageError{Stage: StageExtracting, Err: err}
	}
	before := len(elements)
	elements = layout.DropOverlapping(elements, p.overlapThreshold)
	if dropped := before - len(elements); dropped > 0 {
		log.Debug("dropped overlapping detections", "count", dropped)
	}

	// Phase 2: Transcribe visual elements
	if err := p.transcribe(ctx, elements); err != nil {
		return nil, &StageError{Stage: StageTranscribing, Err: err}
	}

	// Phase 3: Chunk
	chunks := chunker.Pack(elements, p.maxChunkLength)

	// Phase 4: Derive views
	title := layout.FirstHeading(elements)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	doc := &layout.Document{
		DocID:    docID,
		Title:    title,
		Source:   path,
		FullText: layout.FullText(elements),
		Pages:    layout.GroupPages(elements),
		Chunks:   chunks,
		Elements: elements,
	}
	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, doc.FullText)
		if err != nil {
			return nil, &StageError{Stage: StageSummarizing, Err: err}
		}
		doc.Summary = strings.TrimSpace(summary)
	}
	if doc.Summary == "" {
		doc.Summary = PlaceholderSummary(docID, doc.FullText)
	}

	log.Info("parsed document",
		"elements", len(elements),
		"pages", len(doc.Pages),
		"chunks", len(chunks),
	)
	return doc, nil
}

// transcribe overwrites the content of every visual element with bounded
// concurrency. Text elements are left alone.
func (p *Parser) transcribe(ctx context.Context, elements []*layout.Element) error {
	var visual []*layout.Element
	for _, el := range elements {
		if el.Type.Visual() {
			visual = append(visual, el)
		}
	}
	if len(visual) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	sem := make(chan struct{}, p.maxConcurrentTranscribe)
	results := make([]string, len(visual))

	for i, el := range visual {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			text, err := p.transcriber.Transcribe(ctx, el)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s element %d on page %d: %w", el.Type, el.SequenceID, el.PageID, err)
					cancel()
				}
				mu.Unlock()
				return
			}
			results[i] = text
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, el := range visual {
		el.Content = results[i]
	}
	return nil
}

// PlaceholderSummary is the summary used when no summarizer is configured.
func PlaceholderSummary(docID, fullText string) string {
	return fmt.Sprintf("Document %s (%d characters of extracted content).", docID, chunker.Length(fullText))
}

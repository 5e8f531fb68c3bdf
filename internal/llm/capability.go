package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/docresearch/internal/layout"
)

// Completer is the model call the capabilities depend on. *Client
// implements it.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Transcriber describes visual elements with a model.
type Transcriber struct {
	Model Completer
}

func (t Transcriber) Transcribe(ctx context.Context, el *layout.Element) (string, error) {
	var op, system, prompt string
	switch el.Type {
	case layout.TypeTable:
		op, system, prompt = OpTable, TableSystem, BuildTablePrompt(el.RawContent)
	case layout.TypeFigure:
		op, system, prompt = OpFigure, FigureSystem, BuildFigurePrompt(el.RawContent)
	case layout.TypeEquation:
		op, system, prompt = OpEquation, EquationSystem, BuildEquationPrompt(el.RawContent)
	default:
		return el.Content, nil
	}

	out, err := t.Model.Complete(WithOperation(ctx, op), system, prompt)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: empty description", op)
	}
	return out, nil
}

// DefaultSummaryChars bounds model summaries.
const DefaultSummaryChars = 500

// Summarizer produces document summaries with a model.
type Summarizer struct {
	Model    Completer
	MaxChars int
}

func (s Summarizer) Summarize(ctx context.Context, fullText string) (string, error) {
	n := s.MaxChars
	if n <= 0 {
		n = DefaultSummaryChars
	}
	out, err := s.Model.Complete(WithOperation(ctx, OpSummary), SummarySystem, BuildSummaryPrompt(fullText, n))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

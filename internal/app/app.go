// Package app assembles the parser, model client and researcher options
// from configuration for both entrypoints.
package app

import (
	"fmt"
	"log/slog"

	"github.com/dgallion1/docresearch/internal/config"
	"github.com/dgallion1/docresearch/internal/llm"
	"github.com/dgallion1/docresearch/internal/parser"
	"github.com/dgallion1/docresearch/internal/pipeline"
	"github.com/dgallion1/docresearch/internal/research"
	"github.com/dgallion1/docresearch/internal/retry"
)

// summarySentences is the length of heuristic summaries.
const summarySentences = 3

// NewModel returns a model client, or nil when no endpoint is configured.
func NewModel(cfg config.Config, log *slog.Logger) *llm.Client {
	if !cfg.ModelEnabled() {
		return nil
	}
	policy := retry.DefaultPolicy()
	policy.MaxRetries = uint64(max(cfg.LLMMaxRetries, 0))
	return llm.NewClient(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		Timeout:     cfg.LLMTimeout,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Retry:       policy,
	}, log.With("component", "llm"))
}

// NewParser builds the document parser. With a model, visual elements are
// described and documents summarized by the model; otherwise both are
// heuristic. Transcriptions are cached either way.
func NewParser(cfg config.Config, model *llm.Client, log *slog.Logger) (*pipeline.Parser, error) {
	var (
		transcriber pipeline.Transcriber = pipeline.RawTranscriber{}
		summarizer  pipeline.Summarizer  = pipeline.NewFrequencySummarizer(summarySentences)
	)
	if model != nil {
		transcriber = llm.Transcriber{Model: model}
		summarizer = llm.Summarizer{Model: model}
	}
	cached, err := pipeline.NewCachedTranscriber(transcriber, cfg.TranscriptionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("transcription cache: %w", err)
	}

	return pipeline.NewParser(
		parser.FileExtractor{NoPdftotext: !cfg.PDFFallbackPdftotext},
		pipeline.WithTranscriber(cached),
		pipeline.WithSummarizer(summarizer),
		pipeline.WithMaxChunkLength(cfg.MaxChunkLength),
		pipeline.WithOverlapThreshold(cfg.OverlapThreshold),
		pipeline.WithMaxConcurrentTranscribe(cfg.MaxConcurrentTranscribe),
		pipeline.WithLogger(log.With("component", "parser")),
	), nil
}

// ResearcherOptions maps configuration onto researcher options. obs may be
// nil.
func ResearcherOptions(cfg config.Config, model *llm.Client, obs research.Observer, log *slog.Logger) []research.Option {
	opts := []research.Option{
		research.WithMaxIterations(cfg.MaxIterations),
		research.WithSufficiencyThreshold(cfg.SufficiencyThreshold),
		research.WithRelevanceThreshold(cfg.RelevanceThreshold),
		research.WithTopK(cfg.TopK),
		research.WithGlobalDedup(cfg.GlobalDedup),
		research.WithParseConcurrency(cfg.ParseConcurrency),
		research.WithLogger(log.With("component", "research")),
	}
	if model != nil {
		opts = append(opts, research.WithModel(model))
	}
	if obs != nil {
		opts = append(opts, research.WithObserver(obs))
	}
	return opts
}

package research

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/dgallion1/docresearch/internal/parser"
	"github.com/dgallion1/docresearch/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newResearcher(t *testing.T, opts ...Option) *Researcher {
	t.Helper()
	r, err := New(pipeline.NewParser(parser.FileExtractor{}), opts...)
	require.NoError(t, err)
	return r
}

const metricsDoc = "Evaluation covers accuracy and recall on the benchmark\n"

type recordingObserver struct {
	mu       sync.Mutex
	parsed   map[string]error
	outcomes []*Outcome
}

func (o *recordingObserver) DocumentParsed(docID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.parsed == nil {
		o.parsed = make(map[string]error)
	}
	o.parsed[docID] = err
}

func (o *recordingObserver) ResearchCompleted(out *Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

type failingExpander struct{ calls int }

func (e *failingExpander) Expand(ctx context.Context, query string, evidence []SearchResult) ([]string, error) {
	e.calls++
	return nil, errors.New("expansion unavailable")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		opt   Option
		field string
	}{
		{"zero iterations", WithMaxIterations(0), "max_iterations"},
		{"negative iterations", WithMaxIterations(-2), "max_iterations"},
		{"zero threshold", WithSufficiencyThreshold(0), "sufficiency_threshold"},
		{"threshold above one", WithSufficiencyThreshold(1.5), "sufficiency_threshold"},
		{"negative relevance", WithRelevanceThreshold(-0.1), "relevance_threshold"},
		{"zero top k", WithTopK(0), "top_k"},
		{"zero concurrency", WithParseConcurrency(0), "parse_concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(pipeline.NewParser(parser.FileExtractor{}), tt.opt)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	t.Run("nil parser", func(t *testing.T) {
		_, err := New(nil)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("threshold of one is allowed", func(t *testing.T) {
		_, err := New(pipeline.NewParser(parser.FileExtractor{}), WithSufficiencyThreshold(1))
		assert.NoError(t, err)
	})
}

func TestResearcher_AddDocuments(t *testing.T) {
	t.Run("Should index good documents and report failures", func(t *testing.T) {
		obs := &recordingObserver{}
		r := newResearcher(t, WithObserver(obs))
		good := writeDoc(t, "metrics.txt", metricsDoc)
		missing := filepath.Join(t.TempDir(), "missing.txt")
		unsupported := writeDoc(t, "image.bmp", "binary")

		err := r.AddDocuments(context.Background(), []string{good, missing, unsupported})

		var ingestErr *IngestError
		require.ErrorAs(t, err, &ingestErr)
		require.Len(t, ingestErr.Failures, 2)
		assert.Equal(t, "doc_2", ingestErr.Failures[0].DocID)
		assert.Equal(t, "doc_3", ingestErr.Failures[1].DocID)
		assert.Equal(t, 1, r.DocumentCount())
		assert.Equal(t, "doc_1", r.Documents()[0].DocID)
		assert.NoError(t, obs.parsed["doc_1"])
		assert.Error(t, obs.parsed["doc_2"])
	})

	t.Run("Should keep ids unique across batches", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "a.txt", "alpha")}))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "b.txt", "beta")}))

		docs := r.Documents()
		require.Len(t, docs, 2)
		assert.Equal(t, "doc_1", docs[0].DocID)
		assert.Equal(t, "doc_2", docs[1].DocID)
	})

	t.Run("Should accept an empty batch", func(t *testing.T) {
		r := newResearcher(t)
		assert.NoError(t, r.AddDocuments(context.Background(), nil))
		assert.Equal(t, 0, r.DocumentCount())
	})

	t.Run("Should remove a document and its entries", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{
			writeDoc(t, "a.txt", "alpha"),
			writeDoc(t, "b.txt", "beta"),
		}))

		assert.True(t, r.RemoveDocument("doc_1"))
		assert.False(t, r.RemoveDocument("doc_1"))
		require.Equal(t, 1, r.DocumentCount())
		assert.Equal(t, "doc_2", r.Documents()[0].DocID)
		assert.Equal(t, 1, r.Index().Count(index.Chunk))
	})

	t.Run("Should replace a document added under the same id", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocument(context.Background(), writeDoc(t, "v1.txt", "first version"), "paper"))
		require.NoError(t, r.AddDocument(context.Background(), writeDoc(t, "v2.txt", "second version"), "paper"))

		assert.Equal(t, 1, r.DocumentCount())
		assert.Equal(t, "second version", r.Documents()[0].FullText)
		assert.Equal(t, 1, r.Index().Count(index.Chunk))
	})
}

func TestResearcher_Research(t *testing.T) {
	t.Run("Should answer from the indexed chunk", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		report, err := r.Research(context.Background(), "accuracy")
		require.NoError(t, err)

		assert.Contains(t, report, "Evaluation covers accuracy and recall")
		assert.Contains(t, report, "[1] Document doc_1, page 1, chunk 0")
		assert.Equal(t, 2, r.ConversationLength())

		history := r.History()
		assert.Equal(t, RoleUser, history[0].Role)
		assert.Equal(t, "accuracy", history[0].Content)
		assert.Equal(t, RoleAssistant, history[1].Role)
		assert.Equal(t, report, history[1].Content)
	})

	t.Run("Should stop at max iterations when never sufficient", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		o, err := r.Investigate(context.Background(), "accuracy")
		require.NoError(t, err)

		assert.Equal(t, DefaultMaxIterations, o.Iterations)
		assert.False(t, o.Converged)
		require.Len(t, o.Steps, 3)
		assert.Equal(t, []string{"accuracy"}, o.Steps[0].Subqueries)
		assert.Equal(t, []string{"accuracy detail", "accuracy background"}, o.Steps[1].Subqueries)
		// Per-batch dedup keeps the same chunk once per iteration.
		assert.Len(t, o.Evidence, 3)
		assert.InDelta(t, (2.0/3.0+0.6)/2, o.Sufficiency, 1e-9)
		assert.Equal(t, []State{
			StatePlanned,
			StateSearching, StateRefining,
			StateSearching, StateRefining,
			StateSearching, StateRefining,
			StateReported,
		}, o.States)
	})

	t.Run("Should deduplicate the pool when enabled", func(t *testing.T) {
		r := newResearcher(t, WithGlobalDedup(true))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		o, err := r.Investigate(context.Background(), "accuracy")
		require.NoError(t, err)

		assert.Equal(t, 3, o.Iterations)
		require.Len(t, o.Evidence, 1)
		assert.Equal(t, 1.0, o.Evidence[0].Relevance)
		assert.InDelta(t, 0.6, o.Sufficiency, 1e-9)
	})

	t.Run("Should stop once sufficient", func(t *testing.T) {
		r := newResearcher(t, WithSufficiencyThreshold(0.5))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		o, err := r.Investigate(context.Background(), "accuracy")
		require.NoError(t, err)

		assert.Equal(t, 1, o.Iterations)
		assert.True(t, o.Converged)
	})

	t.Run("Should honor a single iteration", func(t *testing.T) {
		exp := &failingExpander{}
		r := newResearcher(t, WithMaxIterations(1), WithExpander(exp))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		o, err := r.Investigate(context.Background(), "accuracy")
		require.NoError(t, err)
		assert.Equal(t, 1, o.Iterations)
		assert.Equal(t, 0, exp.calls)
	})

	t.Run("Should reuse subqueries when expansion fails", func(t *testing.T) {
		exp := &failingExpander{}
		r := newResearcher(t, WithExpander(exp), WithSufficiencyThreshold(0.95))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		o, err := r.Investigate(context.Background(), "accuracy and recall")
		require.NoError(t, err)

		require.Len(t, o.Steps, 3)
		assert.Equal(t, 2, exp.calls)
		for _, s := range o.Steps {
			assert.Equal(t, []string{"accuracy", "recall"}, s.Subqueries)
		}
	})

	t.Run("Should notify the observer", func(t *testing.T) {
		obs := &recordingObserver{}
		r := newResearcher(t, WithObserver(obs))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		_, err := r.Research(context.Background(), "recall")
		require.NoError(t, err)
		require.Len(t, obs.outcomes, 1)
		assert.Equal(t, "recall", obs.outcomes[0].Query)
	})

	t.Run("Should report missing evidence instead of an empty answer", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		report, err := r.Research(context.Background(), "photosynthesis")
		require.NoError(t, err)
		assert.Contains(t, report, NoEvidence)
	})
}

func TestResearcher_EmptyInput(t *testing.T) {
	t.Run("Should reject an empty query", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		_, err := r.Research(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyQuery)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Equal(t, 0, r.ConversationLength())
	})

	t.Run("Should reject research without documents", func(t *testing.T) {
		r := newResearcher(t)
		require.NoError(t, r.AddDocuments(context.Background(), []string{}))

		report, err := r.Research(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNoDocuments)
		assert.ErrorIs(t, err, ErrEmptyInput)
		assert.Empty(t, report)
		assert.Equal(t, 0, r.ConversationLength())
	})
}

type failingPlanner struct{}

func (failingPlanner) Plan(ctx context.Context, query string, history []Turn, docs []*layout.Document) (Plan, error) {
	return Plan{}, errors.New("planner unavailable")
}

type failingReporter struct{}

func (failingReporter) GenerateReport(ctx context.Context, query string, results []SearchResult, history []Turn) (string, error) {
	return "", errors.New("reporter unavailable")
}

type historyPlanner struct {
	RulePlanner
	seen []Turn
}

func (p *historyPlanner) Plan(ctx context.Context, query string, history []Turn, docs []*layout.Document) (Plan, error) {
	p.seen = history
	return p.RulePlanner.Plan(ctx, query, history, docs)
}

func TestResearcher_FailedRunKeepsHistory(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		opts []Option
	}{
		{"planner error", context.Background(), []Option{WithPlanner(failingPlanner{})}},
		{"reporter error", context.Background(), []Option{WithReporter(failingReporter{})}},
		{"cancelled context", cancelled, nil},
	}
	for _, tt := range tests {
		t.Run("Should leave the conversation unchanged on "+tt.name, func(t *testing.T) {
			r := newResearcher(t, tt.opts...)
			require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

			_, err := r.Research(tt.ctx, "accuracy")
			require.Error(t, err)
			assert.Equal(t, 0, r.ConversationLength())
			assert.Empty(t, r.History())
		})
	}

	t.Run("Should show the pending question to the planner", func(t *testing.T) {
		p := &historyPlanner{}
		r := newResearcher(t, WithPlanner(p))
		require.NoError(t, r.AddDocuments(context.Background(), []string{writeDoc(t, "metrics.txt", metricsDoc)}))

		_, err := r.Research(context.Background(), "accuracy")
		require.NoError(t, err)
		require.Len(t, p.seen, 1)
		assert.Equal(t, Turn{Role: RoleUser, Content: "accuracy", At: p.seen[0].At}, p.seen[0])
		assert.Equal(t, 2, r.ConversationLength())
	})
}

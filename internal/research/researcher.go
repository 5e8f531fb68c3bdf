package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
	"github.com/dgallion1/docresearch/internal/llm"
	"github.com/dgallion1/docresearch/internal/pipeline"
)

// Defaults for a Researcher.
const (
	DefaultMaxIterations        = 3
	DefaultSufficiencyThreshold = 0.7
	DefaultParseConcurrency     = 4
)

// Observer is notified of ingestion and research outcomes.
type Observer interface {
	DocumentParsed(docID string, err error)
	ResearchCompleted(o *Outcome)
}

// Researcher owns a document set, its index and one conversation. It is
// safe for concurrent use; research calls are serialized.
type Researcher struct {
	parser *pipeline.Parser
	index  *index.Index

	planner  Planner
	refiner  Refiner
	reporter Reporter
	expander Expander
	model    llm.Completer

	maxIterations      int
	threshold          float64
	relevanceThreshold float64
	topK               int
	globalDedup        bool
	parseConcurrency   int

	observer Observer
	log      *slog.Logger

	mu      sync.RWMutex
	docs    map[string]*layout.Document
	order   []string
	history []Turn
	nextID  int

	runMu sync.Mutex
}

// Option configures a Researcher.
type Option func(*Researcher)

// WithMaxIterations bounds the search/refine loop.
func WithMaxIterations(n int) Option {
	return func(r *Researcher) { r.maxIterations = n }
}

// WithSufficiencyThreshold sets the score at which the loop stops.
func WithSufficiencyThreshold(t float64) Option {
	return func(r *Researcher) { r.threshold = t }
}

// WithRelevanceThreshold sets the minimum relevance kept by refinement.
func WithRelevanceThreshold(t float64) Option {
	return func(r *Researcher) { r.relevanceThreshold = t }
}

// WithTopK sets the hits retrieved per subquery.
func WithTopK(k int) Option {
	return func(r *Researcher) { r.topK = k }
}

func WithPlanner(p Planner) Option { return func(r *Researcher) { r.planner = p } }
func WithRefiner(f Refiner) Option { return func(r *Researcher) { r.refiner = f } }
func WithReporter(p Reporter) Option { return func(r *Researcher) { r.reporter = p } }
func WithExpander(e Expander) Option { return func(r *Researcher) { r.expander = e } }

// WithModel backs every capability not set explicitly with the model.
func WithModel(m llm.Completer) Option {
	return func(r *Researcher) { r.model = m }
}

// WithGlobalDedup deduplicates the whole evidence pool after each iteration
// instead of only within each refined batch.
func WithGlobalDedup(on bool) Option {
	return func(r *Researcher) { r.globalDedup = on }
}

// WithParseConcurrency bounds how many documents AddDocuments parses at once.
func WithParseConcurrency(n int) Option {
	return func(r *Researcher) { r.parseConcurrency = n }
}

func WithObserver(o Observer) Option {
	return func(r *Researcher) { r.observer = o }
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Researcher) {
		if log != nil {
			r.log = log
		}
	}
}

// New builds a Researcher around parser. Invalid settings return a
// *ConfigError.
func New(parser *pipeline.Parser, opts ...Option) (*Researcher, error) {
	r := &Researcher{
		parser:             parser,
		index:              index.New(),
		maxIterations:      DefaultMaxIterations,
		threshold:          DefaultSufficiencyThreshold,
		relevanceThreshold: DefaultRelevanceThreshold,
		topK:               index.DefaultTopK,
		parseConcurrency:   DefaultParseConcurrency,
		log:                slog.New(slog.NewTextHandler(io.Discard, nil)),
		docs:               make(map[string]*layout.Document),
		nextID:             1,
	}
	for _, opt := range opts {
		opt(r)
	}

	switch {
	case parser == nil:
		return nil, &ConfigError{Field: "parser", Reason: "must not be nil"}
	case r.maxIterations <= 0:
		return nil, &ConfigError{Field: "max_iterations", Reason: fmt.Sprintf("must be positive, got %d", r.maxIterations)}
	case r.threshold <= 0 || r.threshold > 1:
		return nil, &ConfigError{Field: "sufficiency_threshold", Reason: fmt.Sprintf("must be in (0, 1], got %g", r.threshold)}
	case r.relevanceThreshold < 0 || r.relevanceThreshold > 1:
		return nil, &ConfigError{Field: "relevance_threshold", Reason: fmt.Sprintf("must be in [0, 1], got %g", r.relevanceThreshold)}
	case r.topK <= 0:
		return nil, &ConfigError{Field: "top_k", Reason: fmt.Sprintf("must be positive, got %d", r.topK)}
	case r.parseConcurrency <= 0:
		return nil, &ConfigError{Field: "parse_concurrency", Reason: fmt.Sprintf("must be positive, got %d", r.parseConcurrency)}
	}

	if r.model != nil {
		if r.planner == nil {
			r.planner = ModelPlanner{Model: r.model, Log: r.log}
		}
		if r.refiner == nil {
			r.refiner = ModelRefiner{Model: r.model, Threshold: r.relevanceThreshold, Log: r.log}
		}
		if r.reporter == nil {
			r.reporter = ModelReporter{Model: r.model, Log: r.log}
		}
		if r.expander == nil {
			r.expander = ModelExpander{Model: r.model}
		}
	}
	if r.planner == nil {
		r.planner = RulePlanner{}
	}
	if r.refiner == nil {
		r.refiner = RuleRefiner{Threshold: r.relevanceThreshold}
	}
	if r.reporter == nil {
		r.reporter = TemplateReporter{}
	}
	if r.expander == nil {
		r.expander = SuffixExpander{}
	}
	return r, nil
}

// AddDocuments parses and indexes each path under a fresh id. Documents that
// fail to parse are skipped; their failures are returned together as an
// *IngestError once the rest of the batch is indexed.
func (r *Researcher) AddDocuments(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	r.mu.Lock()
	ids := make([]string, len(paths))
	for i := range paths {
		ids[i] = fmt.Sprintf("doc_%d", r.nextID)
		r.nextID++
	}
	r.mu.Unlock()

	r.log.Info("adding documents", "count", len(paths))

	docs := make([]*layout.Document, len(paths))
	errs := make([]error, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parseConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			docs[i], errs[i] = r.parser.Parse(gctx, path, ids[i])
			return nil
		})
	}
	_ = g.Wait()

	var failures []*ParseError
	for i, path := range paths {
		if errs[i] != nil {
			r.log.Warn("document failed to parse", "doc_id", ids[i], "path", path, "error", errs[i])
			failures = append(failures, &ParseError{Path: path, DocID: ids[i], Err: errs[i]})
			r.notifyParsed(ids[i], errs[i])
			continue
		}
		r.store(docs[i])
		r.notifyParsed(ids[i], nil)
	}

	if len(failures) > 0 {
		return &IngestError{Failures: failures}
	}
	return nil
}

// AddDocument parses and indexes one document under docID, replacing any
// document already indexed under that id.
func (r *Researcher) AddDocument(ctx context.Context, path, docID string) error {
	if strings.TrimSpace(docID) == "" {
		return fmt.Errorf("add document %s: %w", path, ErrEmptyInput)
	}
	doc, err := r.parser.Parse(ctx, path, docID)
	r.notifyParsed(docID, err)
	if err != nil {
		return &ParseError{Path: path, DocID: docID, Err: err}
	}
	r.store(doc)
	return nil
}

func (r *Researcher) store(doc *layout.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[doc.DocID]; !ok {
		r.order = append(r.order, doc.DocID)
	}
	r.docs[doc.DocID] = doc
	r.index.IndexDocument(doc)
}

// RemoveDocument drops a document and its index entries. It reports whether
// the document existed.
func (r *Researcher) RemoveDocument(docID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[docID]; !ok {
		return false
	}
	delete(r.docs, docID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == docID })
	r.index.RemoveDocument(docID)
	return true
}

func (r *Researcher) notifyParsed(docID string, err error) {
	if r.observer != nil {
		r.observer.DocumentParsed(docID, err)
	}
}

// Research runs the research loop and returns the report.
func (r *Researcher) Research(ctx context.Context, query string) (string, error) {
	o, err := r.Investigate(ctx, query)
	if err != nil {
		return "", err
	}
	return o.Report, nil
}

// Investigate runs the research loop and returns the full outcome. The
// conversation only grows when a report is produced: a rejected, failed or
// cancelled run leaves the history unchanged.
func (r *Researcher) Investigate(ctx context.Context, query string) (*Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	r.runMu.Lock()
	defer r.runMu.Unlock()

	docs := r.Documents()
	if len(docs) == 0 {
		return nil, ErrNoDocuments
	}

	log := r.log.With("query", query)
	asked := Turn{Role: RoleUser, Content: query, At: time.Now()}
	history := append(r.History(), asked)

	plan, err := r.planner.Plan(ctx, query, history, docs)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	o := &Outcome{Query: query, Plan: plan, States: []State{StatePlanned}}
	log.Debug("planned",
		"granularity", plan.Granularity,
		"intent", plan.Intent,
		"subqueries", len(plan.Subqueries),
		"docs", len(plan.RelevantDocs),
	)

	searcher := &Searcher{Index: r.index, TopK: r.topK}
	subqueries := plan.Subqueries
	var pool []SearchResult
	sufficiency := 0.0

	for o.Iterations < r.maxIterations && sufficiency < r.threshold {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		o.States = append(o.States, StateSearching)
		hits := searcher.Search(ctx, subqueries, plan.Granularity, plan.RelevantDocs)

		o.States = append(o.States, StateRefining)
		refined := r.refiner.Refine(ctx, hits, query)
		pool = append(pool, refined...)
		if r.globalDedup {
			pool = Dedup(pool)
		}
		sufficiency = r.refiner.EvaluateSufficiency(ctx, pool, query)
		o.Iterations++

		o.Steps = append(o.Steps, Step{
			Iteration:   o.Iterations,
			Subqueries:  subqueries,
			Hits:        len(hits),
			Kept:        len(refined),
			Sufficiency: sufficiency,
		})
		log.Debug("iteration complete",
			"iteration", o.Iterations,
			"hits", len(hits),
			"kept", len(refined),
			"pool", len(pool),
			"sufficiency", sufficiency,
		)

		if sufficiency < r.threshold && o.Iterations < r.maxIterations {
			next, err := r.expander.Expand(ctx, query, pool)
			if err != nil || len(next) == 0 {
				log.Warn("query expansion failed, reusing subqueries", "error", err)
			} else {
				subqueries = next
			}
		}
	}

	report, err := r.reporter.GenerateReport(ctx, query, pool, history)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	r.appendTurns(asked, Turn{Role: RoleAssistant, Content: report, At: time.Now()})

	o.Report = report
	o.Evidence = pool
	o.Sufficiency = sufficiency
	o.Converged = sufficiency >= r.threshold
	o.States = append(o.States, StateReported)

	log.Info("research complete",
		"iterations", o.Iterations,
		"evidence", len(pool),
		"sufficiency", sufficiency,
		"converged", o.Converged,
	)
	if r.observer != nil {
		r.observer.ResearchCompleted(o)
	}
	return o, nil
}

func (r *Researcher) appendTurns(turns ...Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, turns...)
}

// DocumentCount returns the number of indexed documents.
func (r *Researcher) DocumentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ConversationLength returns the number of turns so far.
func (r *Researcher) ConversationLength() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history)
}

// History returns a copy of the conversation.
func (r *Researcher) History() []Turn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Turn(nil), r.history...)
}

// Documents returns the indexed documents in the order they were added.
func (r *Researcher) Documents() []*layout.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]*layout.Document, len(r.order))
	for i, id := range r.order {
		docs[i] = r.docs[id]
	}
	return docs
}

// Index exposes the retrieval index for inspection.
func (r *Researcher) Index() *index.Index { return r.index }

// Package research runs the plan, search, refine and report loop over a
// multi-granularity document index.
package research

import (
	"fmt"
	"time"

	"github.com/dgallion1/docresearch/internal/index"
	"github.com/dgallion1/docresearch/internal/layout"
)

// SearchResult is one retrieved view with its relevance.
type SearchResult struct {
	Relevance   float64           `json:"relevance"`
	Content     string            `json:"content"`
	DocID       string            `json:"doc_id"`
	PageID      int               `json:"page_id"`  // index.NoID when absent.
	ChunkID     int               `json:"chunk_id"` // index.NoID when absent.
	Granularity index.Granularity `json:"granularity"`
	Elements    []*layout.Element `json:"-"`
}

// Key identifies the view a result came from.
type Key struct {
	DocID   string
	PageID  int
	ChunkID int
}

func (r SearchResult) Key() Key {
	return Key{DocID: r.DocID, PageID: r.PageID, ChunkID: r.ChunkID}
}

// Locator renders the result's position, omitting absent parts.
func (r SearchResult) Locator() string {
	s := "Document " + r.DocID
	if r.PageID != index.NoID {
		s += fmt.Sprintf(", page %d", r.PageID)
	}
	if r.ChunkID != index.NoID {
		s += fmt.Sprintf(", chunk %d", r.ChunkID)
	}
	return s
}

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one conversation message.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Intent classifies what a query asks for.
type Intent string

const (
	IntentFactual     Intent = "factual"
	IntentComparison  Intent = "comparison"
	IntentSummary     Intent = "summary"
	IntentExplanation Intent = "explanation"
)

// Plan is the retrieval strategy for one query.
type Plan struct {
	RelevantDocs []*layout.Document `json:"-"`
	Granularity  index.Granularity  `json:"granularity"`
	Subqueries   []string           `json:"subqueries"`
	Intent       Intent             `json:"intent"`
}

// DocIDs lists the ids of the plan's relevant documents.
func (p Plan) DocIDs() []string {
	ids := make([]string, len(p.RelevantDocs))
	for i, d := range p.RelevantDocs {
		ids[i] = d.DocID
	}
	return ids
}

// State is a phase of one research run.
type State string

const (
	StatePlanned   State = "planned"
	StateSearching State = "searching"
	StateRefining  State = "refining"
	StateReported  State = "reported"
)

// Step records one search/refine iteration.
type Step struct {
	Iteration   int      `json:"iteration"`
	Subqueries  []string `json:"subqueries"`
	Hits        int      `json:"hits"`
	Kept        int      `json:"kept"`
	Sufficiency float64  `json:"sufficiency"`
}

// Outcome is the full result of one research run.
type Outcome struct {
	Query       string         `json:"query"`
	Report      string         `json:"report"`
	Iterations  int            `json:"iterations"`
	Sufficiency float64        `json:"sufficiency"`
	Converged   bool           `json:"converged"` // Sufficiency reached the threshold.
	Plan        Plan           `json:"plan"`
	Evidence    []SearchResult `json:"evidence"`
	Steps       []Step         `json:"steps"`
	States      []State        `json:"states"`
}

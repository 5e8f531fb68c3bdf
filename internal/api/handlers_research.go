package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/docresearch/internal/research"
)

type researchRequest struct {
	Query string `json:"query" validate:"required,max=4000"`
}

type researchResponse struct {
	Query       string                  `json:"query"`
	Report      string                  `json:"report"`
	Iterations  int                     `json:"iterations"`
	Sufficiency float64                 `json:"sufficiency"`
	Converged   bool                    `json:"converged"`
	Plan        research.Plan           `json:"plan"`
	Steps       []research.Step         `json:"steps"`
	Evidence    []research.SearchResult `json:"evidence,omitempty"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		jsonError(w, "query is required", http.StatusBadRequest)
		return
	}

	o, err := sess.Researcher().Investigate(r.Context(), req.Query)
	switch {
	case errors.Is(err, research.ErrEmptyQuery):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, research.ErrNoDocuments):
		jsonError(w, "upload documents before researching", http.StatusConflict)
		return
	case err != nil:
		s.log.Error("research failed", "session_id", sess.ID, "error", err)
		jsonError(w, "research failed", http.StatusInternalServerError)
		return
	}

	resp := researchResponse{
		Query:       o.Query,
		Report:      o.Report,
		Iterations:  o.Iterations,
		Sufficiency: o.Sufficiency,
		Converged:   o.Converged,
		Plan:        o.Plan,
		Steps:       o.Steps,
	}
	if r.URL.Query().Get("evidence") == "true" {
		resp.Evidence = o.Evidence
	}
	writeJSON(w, http.StatusOK, resp)
}

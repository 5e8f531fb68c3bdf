package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists the documents indexed in a session.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": sess.Snapshot().Documents})
}

// handleDeleteDocument removes one document from a session's index.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	docID := chi.URLParam(r, "docID")
	if !sess.RemoveDocument(docID) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": true})
}

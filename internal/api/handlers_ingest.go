package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docresearch/internal/parser"
	"github.com/dgallion1/docresearch/internal/session"
)

// maxUploadFiles bounds the files accepted in one request.
const maxUploadFiles = 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxUploadFiles+10*1024*1024)
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required in field \"documents\"", http.StatusBadRequest)
		return
	}
	if len(files) > maxUploadFiles {
		jsonError(w, fmt.Sprintf("at most %d files per request", maxUploadFiles), http.StatusBadRequest)
		return
	}

	var (
		uploads  []session.Upload
		rejected []session.UploadResult
	)
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !parser.IsSupportedExtension(filename) {
			rejected = append(rejected, session.UploadResult{
				Filename: filename,
				Status:   session.StatusFailed,
				Error:    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, session.UploadResult{Filename: filename, Status: session.StatusFailed, Error: "failed to open file"})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			rejected = append(rejected, session.UploadResult{
				Filename: filename,
				Status:   session.StatusFailed,
				Error:    fmt.Sprintf("file too large or read error (max %d bytes)", s.cfg.MaxUploadBytes),
			})
			continue
		}
		uploads = append(uploads, session.Upload{Filename: filename, Data: data})
	}

	if len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "no supported files",
			"results": rejected,
		})
		return
	}

	results, err := sess.Ingest(r.Context(), uploads)
	if err != nil {
		s.log.Error("ingest failed", "session_id", sess.ID, "error", err)
		jsonError(w, "ingest failed", http.StatusInternalServerError)
		return
	}
	results = append(results, rejected...)

	code := http.StatusUnprocessableEntity
	for _, res := range results {
		if res.Status != session.StatusFailed {
			code = http.StatusOK
			break
		}
	}
	writeJSON(w, code, map[string]any{
		"session_id":      sess.ID,
		"results":         results,
		"documents_count": sess.Researcher().DocumentCount(),
	})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}

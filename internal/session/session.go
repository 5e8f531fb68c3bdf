// Package session keeps per-client research sessions with TTL eviction.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docresearch/internal/pipeline"
	"github.com/dgallion1/docresearch/internal/research"
)

// UploadStatus is the ingestion result of one uploaded file.
type UploadStatus string

const (
	StatusIndexed    UploadStatus = "indexed"
	StatusFailed     UploadStatus = "failed"
	StatusDupSkipped UploadStatus = "duplicate_skipped"
)

// Session is one client's researcher plus its uploaded files.
type Session struct {
	mu sync.Mutex

	ID        string
	CreatedAt time.Time
	updatedAt time.Time

	researcher *research.Researcher
	dir        string
	hashes     map[string]string // content hash -> doc id
	saved      int
}

func newSession(id, dir string, r *research.Researcher) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		updatedAt:  now,
		researcher: r,
		dir:        dir,
		hashes:     make(map[string]string),
	}
}

// Researcher returns the session's researcher.
func (s *Session) Researcher() *research.Researcher { return s.researcher }

// Touch marks the session as used.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// UpdatedAt returns when the session was last used.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

// UploadResult reports what happened to one upload.
type UploadResult struct {
	Filename string       `json:"filename"`
	DocID    string       `json:"doc_id,omitempty"`
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// Ingest stores the uploads in the session directory and indexes them.
// Files whose content was already indexed in this session are skipped.
// Per-file failures are reported in the results, not as an error.
func (s *Session) Ingest(ctx context.Context, uploads []Upload) ([]UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()

	results := make([]UploadResult, len(uploads))
	var paths []string
	pending := make(map[string]int) // path -> result index
	hashOf := make(map[string]string)
	firstOf := make(map[string]int) // content hash -> result index in this batch
	dupOf := make(map[int]int)
	for i, u := range uploads {
		results[i].Filename = u.Filename
		hash := pipeline.ContentHashHex(u.Data)
		if docID, ok := s.hashes[hash]; ok {
			results[i].DocID = docID
			results[i].Status = StatusDupSkipped
			continue
		}
		if j, ok := firstOf[hash]; ok {
			results[i].Status = StatusDupSkipped
			dupOf[i] = j
			continue
		}
		firstOf[hash] = i
		path, err := s.save(u)
		if err != nil {
			results[i].Status = StatusFailed
			results[i].Error = err.Error()
			continue
		}
		paths = append(paths, path)
		pending[path] = i
		hashOf[path] = hash
	}

	err := s.researcher.AddDocuments(ctx, paths)
	var ingestErr *research.IngestError
	if err != nil && !errors.As(err, &ingestErr) {
		return nil, err
	}
	if ingestErr != nil {
		for _, f := range ingestErr.Failures {
			i := pending[f.Path]
			results[i].DocID = f.DocID
			results[i].Status = StatusFailed
			results[i].Error = f.Err.Error()
			delete(pending, f.Path)
		}
	}
	for _, doc := range s.researcher.Documents() {
		i, ok := pending[doc.Source]
		if !ok {
			continue
		}
		results[i].DocID = doc.DocID
		results[i].Status = StatusIndexed
		s.hashes[hashOf[doc.Source]] = doc.DocID
	}
	for i, j := range dupOf {
		results[i].DocID = results[j].DocID
		if results[j].Status == StatusFailed {
			results[i].Status = StatusFailed
			results[i].Error = results[j].Error
		}
	}
	return results, nil
}

// RemoveDocument drops an indexed document so its content can be uploaded
// again.
func (s *Session) RemoveDocument(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	if !s.researcher.RemoveDocument(docID) {
		return false
	}
	for hash, id := range s.hashes {
		if id == docID {
			delete(s.hashes, hash)
		}
	}
	return true
}

// save writes an upload under a name that keeps its extension and cannot
// escape the session directory.
func (s *Session) save(u Upload) (string, error) {
	name := filepath.Base(strings.ReplaceAll(u.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("invalid filename %q", u.Filename)
	}
	s.saved++
	path := filepath.Join(s.dir, fmt.Sprintf("%03d_%s", s.saved, name))
	if err := os.WriteFile(path, u.Data, 0o600); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return path, nil
}

// Snapshot is a read-only, JSON-safe view of a session.
type Snapshot struct {
	ID                 string         `json:"session_id"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DocumentsCount     int            `json:"documents_count"`
	ConversationsCount int            `json:"conversations_count"`
	Documents          []DocumentInfo `json:"documents"`
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	DocID  string `json:"doc_id"`
	Title  string `json:"title"`
	Pages  int    `json:"pages"`
	Chunks int    `json:"chunks"`
}

func (s *Session) Snapshot() Snapshot {
	docs := s.researcher.Documents()
	infos := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		infos[i] = DocumentInfo{DocID: d.DocID, Title: d.Title, Pages: len(d.Pages), Chunks: len(d.Chunks)}
	}
	return Snapshot{
		ID:                 s.ID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt(),
		DocumentsCount:     len(infos),
		ConversationsCount: s.researcher.ConversationLength(),
		Documents:          infos,
	}
}

func (s *Session) removeFiles() error {
	return os.RemoveAll(s.dir)
}

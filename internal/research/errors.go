package research

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is the parent of the empty-input errors below.
var ErrEmptyInput = errors.New("empty input")

var (
	ErrEmptyQuery  = fmt.Errorf("%w: query is empty", ErrEmptyInput)
	ErrNoDocuments = fmt.Errorf("%w: no documents indexed", ErrEmptyInput)
)

// ConfigError reports an invalid Researcher setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ParseError is a per-document ingestion failure.
type ParseError struct {
	Path  string
	DocID string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s (%s): %v", e.Path, e.DocID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IngestError aggregates the failures of a batch. Documents not listed were
// indexed.
type IngestError struct {
	Failures []*ParseError
}

func (e *IngestError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d document(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *IngestError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

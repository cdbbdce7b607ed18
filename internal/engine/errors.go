package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/store"
)

// CommitError is a commit rejected at the engine boundary. Nothing was
// appended to the log.
//
// CommitError supports errors.Is against the sentinels below by code, so
// callers can test errors.Is(err, ErrNotebookExists) while still getting
// the event and detail from errors.As.
type CommitError struct {
	// Code identifies the error category.
	Code CommitErrorCode

	// Event is the event name being committed.
	Event event.Name

	// Message is a human-readable description.
	Message string
}

// CommitErrorCode categorizes commit errors.
type CommitErrorCode string

const (
	// CodeMissingActor indicates a commit without an authenticated actor id.
	CodeMissingActor CommitErrorCode = "MISSING_ACTOR"

	// CodeNotebookExists indicates a second NotebookInitialized for a store.
	CodeNotebookExists CommitErrorCode = "NOTEBOOK_EXISTS"

	// CodeCellUnavailable indicates a helper targeted an absent or deleted cell.
	CodeCellUnavailable CommitErrorCode = "CELL_UNAVAILABLE"

	// CodeClosed indicates the engine was closed.
	CodeClosed CommitErrorCode = "ENGINE_CLOSED"
)

// Sentinels for errors.Is.
var (
	ErrMissingActor    = &CommitError{Code: CodeMissingActor, Message: "actor id is required"}
	ErrNotebookExists  = &CommitError{Code: CodeNotebookExists, Message: "store already has a notebook"}
	ErrCellUnavailable = &CommitError{Code: CodeCellUnavailable, Message: "cell is absent or deleted"}
	ErrClosed          = &CommitError{Code: CodeClosed, Message: "engine is closed"}
)

// Error implements the error interface.
func (e *CommitError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any CommitError with the same code.
func (e *CommitError) Is(target error) bool {
	var t *CommitError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newCommitError(code CommitErrorCode, name event.Name, format string, args ...any) *CommitError {
	return &CommitError{Code: code, Event: name, Message: fmt.Sprintf(format, args...)}
}

// IsConflict reports whether err is an exhausted optimistic-concurrency
// retry. Uses errors.Is to handle wrapped errors.
func IsConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

// IsRejected reports whether err means the event was refused before
// reaching the log: a schema error or a CommitError.
func IsRejected(err error) bool {
	if event.IsSchemaError(err) {
		return true
	}
	var ce *CommitError
	return errors.As(err, &ce)
}

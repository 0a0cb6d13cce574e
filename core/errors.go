package core

import (
	"errors"
	"fmt"
)

// PreconditionError marks a request rejected before the graph runs; no state
// has been mutated when it is returned.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

// NewPreconditionError creates a PreconditionError.
func NewPreconditionError(reason string) *PreconditionError {
	return &PreconditionError{Reason: reason}
}

// IsPrecondition reports whether err is a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// ModelError wraps a failure of a model invocation inside a graph node.
// There are no retries; a ModelError fails the whole turn.
type ModelError struct {
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError wraps err as a ModelError for the named provider.
func NewModelError(provider string, err error) *ModelError {
	return &ModelError{Provider: provider, Err: err}
}

// LoopLimitError is returned when the tool loop reaches its iteration cap
// without the model producing a final answer.
type LoopLimitError struct {
	Max int
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("tool loop exceeded %d iterations", e.Max)
}

// PersistenceError wraps a checkpoint, transcript, or registry failure so it
// is distinguishable from model errors; a silent persistence failure would
// desync the checkpoint from the transcript.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError wraps err as a PersistenceError for the named operation.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
